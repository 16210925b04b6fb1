package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/salesense/ai/cache"
	"github.com/hrygo/salesense/ai/core/embedding"
	"github.com/hrygo/salesense/ai/core/llm"
	"github.com/hrygo/salesense/ai/engine"
	"github.com/hrygo/salesense/ai/metrics"
	"github.com/hrygo/salesense/ai/retry"
	"github.com/hrygo/salesense/ai/router"
	"github.com/hrygo/salesense/internal/profile"
	"github.com/hrygo/salesense/internal/version"
	"github.com/hrygo/salesense/server"
)

var rootCmd = &cobra.Command{
	Use:   "salesense",
	Short: "Real-time conversational sales agent: situation detection, principle selection, and response generation with two-tier caching and provider racing.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory, absence is fine.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:      viper.GetString("mode"),
			Addr:      viper.GetString("addr"),
			Port:      viper.GetInt("port"),
			ConfigDir: viper.GetString("config-dir"),
			Version:   version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		srv, warmup, err := bootstrap(instanceProfile)
		if err != nil {
			slog.Error("failed to bootstrap", "error", err)
			os.Exit(1)
		}

		// Best-effort connection warmup, failures only slow the first request.
		go warmup()

		addr := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
		go func() {
			if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("server stopped", "error", err)
				os.Exit(1)
			}
		}()

		printGreetings(instanceProfile)

		// Graceful shutdown on SIGINT or SIGTERM.
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	},
}

// bootstrap assembles the full pipeline from the profile: LLM clients,
// racing router, caches, stage engines, orchestrator, and HTTP server.
func bootstrap(p *profile.Profile) (*server.Server, func(), error) {
	rules, err := engine.LoadRuleSet(p.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load rule tables: %w", err)
	}

	primary, err := llm.NewClient(&llm.Config{
		Provider: p.LLMProvider,
		APIKey:   p.LLMAPIKey,
		BaseURL:  p.LLMBaseURL,
		Model:    p.LLMModel,
		Timeout:  p.LLMTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create primary LLM client: %w", err)
	}

	providers := []router.Provider{{
		Name:      p.LLMProvider,
		Client:    primary,
		Model:     p.LLMModel,
		ModelFast: p.LLMModelFast,
	}}

	warmupClients := []llm.Client{primary}
	if p.IsRaceEnabled() {
		secondary, err := llm.NewClient(&llm.Config{
			Provider: p.RaceProvider,
			APIKey:   p.RaceAPIKey,
			BaseURL:  p.RaceBaseURL,
			Model:    p.RaceModel,
			Timeout:  p.LLMTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create race LLM client: %w", err)
		}
		providers = append(providers, router.Provider{
			Name:      p.RaceProvider,
			Client:    secondary,
			Model:     p.RaceModel,
			ModelFast: p.RaceModelFast,
		})
		warmupClients = append(warmupClients, secondary)
		slog.Info("provider racing enabled", "primary", p.LLMProvider, "secondary", p.RaceProvider)
	}

	llmRouter, err := router.New(providers...)
	if err != nil {
		return nil, nil, fmt.Errorf("create LLM router: %w", err)
	}

	var embedder cache.Embedder
	if p.IsEmbeddingEnabled() {
		embedder, err = embedding.NewProvider(&embedding.Config{
			Provider: p.EmbeddingProvider,
			Model:    p.EmbeddingModel,
			APIKey:   p.EmbeddingAPIKey,
			BaseURL:  p.EmbeddingBaseURL,
		})
		if err != nil {
			slog.Warn("embedding provider unavailable, semantic cache disabled", "error", err)
			embedder = nil
		}
	}

	retryCfg := retry.Config{
		MaxAttempts: p.RetryMaxAttempts,
		BaseDelay:   p.RetryBaseDelay,
		MaxDelay:    p.RetryMaxDelay,
	}
	defaults := engine.DetectorDefaults{
		Situation:  p.DefaultSituation,
		Confidence: p.DefaultConfidence,
		Stage:      p.DefaultStage,
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	llmRouter.Stats().SetObserver(exporter)

	orchestrator := engine.NewOrchestrator(engine.OrchestratorConfig{
		Capture:       engine.NewCaptureEngine(llmRouter, rules, p.MaxTokensCapture, retryCfg),
		Detector:      engine.NewSituationDetector(llmRouter, rules, defaults, p.MaxTokensDetect, retryCfg),
		Selector:      engine.NewPrincipleSelector(rules),
		Generator:     engine.NewResponseGenerator(llmRouter, p.MaxTokensGenerate, p.ResponseMaxSentences, p.ResponseQuotesInPrompt, retryCfg),
		ExactCache:    cache.NewExactCache[engine.Result](p.CacheMaxSize, p.CacheTTL),
		SemanticCache: cache.NewSemanticCache[engine.Result](embedder, p.SemanticSimThreshold, p.CacheMaxSize, p.CacheTTL),
		Reconcile: engine.ReconcileThresholds{
			Confidence: p.ReconcileConfidenceThreshold,
			NewSlots:   p.ReconcileNewSlotsThreshold,
			NewQuotes:  p.ReconcileNewQuotesThreshold,
		},
		Complexity: engine.ComplexityThresholds{
			WordCountSimple:        p.ComplexityWordCountSimple,
			WordCountComplex:       p.ComplexityWordCountComplex,
			ContextRichnessSimple:  p.ComplexityContextRichnessSimple,
			ContextRichnessComplex: p.ComplexityContextRichnessComplex,
		},
		ResponseMaxQuotes: p.ResponseMaxQuotes,
		Metrics:           exporter,
	})

	srv := server.New(server.Config{
		Profile:       p,
		Orchestrator:  orchestrator,
		LLMStats:      llmRouter.Stats(),
		Exporter:      exporter,
		ChatRateLimit: viper.GetFloat64("chat-rate-limit"),
	})

	warmup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, client := range warmupClients {
			client.Warmup(ctx)
		}
	}

	return srv, warmup, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 18080)
	viper.SetDefault("config-dir", "./config")
	viper.SetDefault("chat-rate-limit", 20.0)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 18080, "port of server")
	rootCmd.PersistentFlags().String("config-dir", "./config", "directory holding the rule table YAML files")
	rootCmd.PersistentFlags().Float64("chat-rate-limit", 20.0, "chat requests per second per client IP, 0 disables")

	for _, flag := range []string{"mode", "addr", "port", "config-dir", "chat-rate-limit"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("salesense")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("salesense %s started successfully!\n", p.Version)

	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("LLM provider: %s (%s)\n", p.LLMProvider, p.LLMModel)
	if p.IsRaceEnabled() {
		fmt.Printf("Racing provider: %s (%s)\n", p.RaceProvider, p.RaceModel)
	}
	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
