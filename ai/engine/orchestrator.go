package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/salesense/ai/cache"
	"github.com/hrygo/salesense/ai/router"
)

// criticalSlots are the slots whose first appearance changes what
// situation the customer is most likely in, forcing a re-detection.
var criticalSlots = map[string]bool{
	"pain":            true,
	"objection":       true,
	"budget_signal":   true,
	"emotional_state": true,
	"risk_concern":    true,
	"trigger_event":   true,
	"duration":        true,
}

// Stage interfaces. The concrete engines degrade internally, so stages
// never return errors to the orchestrator.

// Extractor extracts slots and quotes from a message.
type Extractor interface {
	Extract(ctx context.Context, message string, existing Context, complexity router.Complexity) CaptureResult
}

// Detector classifies the customer situation.
type Detector interface {
	Detect(ctx context.Context, message string, conversationCtx Context, complexity router.Complexity) Detection
}

// Selector picks the principle for a turn.
type Selector interface {
	Select(situation string, ctx Context, principleHistory []string, resistanceCount int) Selection
	Fallback(resistanceCount int, ctx Context) Principle
}

// Generator produces the customer-facing reply.
type Generator interface {
	Generate(ctx context.Context, principle Principle, quotes []string, situation string, conversationCtx Context, productContext map[string]string, complexity router.Complexity) Generation
}

// MetricsRecorder receives pipeline observations. Implemented by
// metrics.PrometheusExporter, may be nil.
type MetricsRecorder interface {
	RecordTurn(cacheType string, latency time.Duration)
	RecordStage(stage string, latency time.Duration)
	RecordCacheHit(tier string)
	RecordCacheMiss(tier string)
	RecordReconcile()
}

// ReconcileThresholds tune when detection is re-run after capture.
type ReconcileThresholds struct {
	Confidence float64
	NewSlots   int
	NewQuotes  int
}

// ReconcileStats is a snapshot of reconcile frequency.
type ReconcileStats struct {
	TotalRequests int64   `json:"total_requests"`
	Reconciles    int64   `json:"reconciles"`
	ReconcileRate float64 `json:"reconcile_rate"`
}

// OrchestratorConfig wires the pipeline together.
type OrchestratorConfig struct {
	Capture   Extractor
	Detector  Detector
	Selector  Selector
	Generator Generator

	ExactCache    *cache.ExactCache[Result]
	SemanticCache *cache.SemanticCache[Result]

	Reconcile  ReconcileThresholds
	Complexity ComplexityThresholds

	// ResponseMaxQuotes caps how many of the latest quotes are passed to
	// generation.
	ResponseMaxQuotes int

	Metrics MetricsRecorder
}

// Orchestrator runs the full turn pipeline: cache lookup, parallel
// capture and detection, conditional reconcile, principle selection,
// response generation, dashboard assembly, and cache write-through.
type Orchestrator struct {
	capture   Extractor
	detector  Detector
	selector  Selector
	generator Generator
	builder   *DashboardBuilder

	sessions *SessionStore
	exact    *cache.ExactCache[Result]
	semantic *cache.SemanticCache[Result]

	reconcileThresholds  ReconcileThresholds
	complexityThresholds ComplexityThresholds
	responseMaxQuotes    int

	metrics MetricsRecorder

	mu            sync.Mutex
	totalRequests int64
	reconciles    int64
}

// NewOrchestrator assembles the pipeline.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Reconcile.Confidence <= 0 {
		cfg.Reconcile.Confidence = 0.7
	}
	if cfg.Reconcile.NewSlots <= 0 {
		cfg.Reconcile.NewSlots = 3
	}
	if cfg.Reconcile.NewQuotes <= 0 {
		cfg.Reconcile.NewQuotes = 1
	}
	if cfg.Complexity == (ComplexityThresholds{}) {
		cfg.Complexity = DefaultComplexityThresholds()
	}
	if cfg.ResponseMaxQuotes <= 0 {
		cfg.ResponseMaxQuotes = 5
	}

	return &Orchestrator{
		capture:              cfg.Capture,
		detector:             cfg.Detector,
		selector:             cfg.Selector,
		generator:            cfg.Generator,
		builder:              NewDashboardBuilder(),
		sessions:             NewSessionStore(),
		exact:                cfg.ExactCache,
		semantic:             cfg.SemanticCache,
		reconcileThresholds:  cfg.Reconcile,
		complexityThresholds: cfg.Complexity,
		responseMaxQuotes:    cfg.ResponseMaxQuotes,
		metrics:              cfg.Metrics,
	}
}

// Sessions exposes the session store for the HTTP API.
func (o *Orchestrator) Sessions() *SessionStore {
	return o.sessions
}

// ExactCacheStats returns exact cache statistics.
func (o *Orchestrator) ExactCacheStats() cache.ExactStats {
	return o.exact.Stats()
}

// SemanticCacheStats returns semantic cache statistics.
func (o *Orchestrator) SemanticCacheStats() cache.SemanticStats {
	return o.semantic.Stats()
}

// ReconcileStats returns a snapshot of reconcile frequency.
func (o *Orchestrator) ReconcileStats() ReconcileStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := ReconcileStats{
		TotalRequests: o.totalRequests,
		Reconciles:    o.reconciles,
	}
	if o.totalRequests > 0 {
		stats.ReconcileRate = float64(o.reconciles) / float64(o.totalRequests)
	}
	return stats
}

// Process runs one conversation turn. Turns within the same session are
// serialized, sessions proceed independently. Stage failures degrade
// inside the stages, so the only error surfaced here is context
// cancellation.
func (o *Orchestrator) Process(ctx context.Context, sessionID, message string, productContext map[string]string) (Result, error) {
	start := time.Now()

	session, release := o.sessions.Acquire(sessionID)
	defer release()

	// Cache keys use the context as it was before this turn's capture, so
	// lookups and write-through hash the same snapshot.
	cacheKeyContext := session.Context.Strings()

	cacheStart := time.Now()
	if result, ok := o.exact.Get(message, cacheKeyContext); ok {
		return o.cachedResult(result, "exact", sessionID, time.Since(cacheStart)), nil
	}
	o.recordCacheMiss("exact")

	if result, ok := o.semantic.Get(ctx, message, cacheKeyContext); ok {
		return o.cachedResult(result, "semantic", sessionID, time.Since(cacheStart)), nil
	}
	if o.semantic.Enabled() {
		o.recordCacheMiss("semantic")
	}

	o.mu.Lock()
	o.totalRequests++
	o.mu.Unlock()

	oldContext := session.Context.Clone()

	// Capture and detection run concurrently, detection over the
	// pre-capture context.
	var captureResult CaptureResult
	var preDetection Detection

	parallelStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		complexity := estimateComplexity(message, oldContext, taskCapture, o.complexityThresholds)
		captureResult = o.capture.Extract(gctx, message, oldContext, complexity)
		return nil
	})
	g.Go(func() error {
		complexity := estimateComplexity(message, oldContext, taskDetect, o.complexityThresholds)
		preDetection = o.detector.Detect(gctx, message, oldContext, complexity)
		return nil
	})
	// Stages degrade internally, Wait never returns an error here.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	parallelLatency := time.Since(parallelStart)
	o.recordStage("capture", parallelLatency)

	// The reconcile decision compares against the pre-capture context.
	reconcileStart := time.Now()
	needsReconcile := o.needsReconcile(preDetection, captureResult, oldContext)

	session.Context.Merge(captureResult.Slots)
	session.Quotes = append(session.Quotes, captureResult.Quotes...)

	detection := preDetection
	var reconcileLatency time.Duration
	if needsReconcile {
		slog.Info("reconcile triggered, re-running situation detection", "session_id", sessionID)
		o.mu.Lock()
		o.reconciles++
		o.mu.Unlock()
		if o.metrics != nil {
			o.metrics.RecordReconcile()
		}

		complexity := estimateComplexity(message, session.Context, taskDetect, o.complexityThresholds)
		detection = o.detector.Detect(ctx, message, session.Context, complexity)
		reconcileLatency = time.Since(reconcileStart)
		o.recordStage("reconcile", reconcileLatency)
	}
	detectLatency := parallelLatency + reconcileLatency

	// Resistance goes up on pushback and resets on buying signals.
	if hasResistanceSignals(message, detection.Situation, session.Context) {
		session.ResistanceCount++
	} else if hasPositiveSignals(message, detection.Situation, session.Context) {
		session.ResistanceCount = 0
	}

	selectStart := time.Now()
	selection := o.selector.Select(detection.Situation, session.Context, session.PrincipleHistory, session.ResistanceCount)
	fallbackPlay := o.selector.Fallback(session.ResistanceCount, session.Context)
	selectLatency := time.Since(selectStart)
	o.recordStage("select", selectLatency)

	generateStart := time.Now()
	generateComplexity := estimateComplexity(message, session.Context, taskGenerate, o.complexityThresholds)
	quotes := session.Quotes
	if len(quotes) > o.responseMaxQuotes {
		quotes = quotes[len(quotes)-o.responseMaxQuotes:]
	}
	generation := o.generator.Generate(ctx, selection.Principle, quotes, detection.Situation, session.Context, productContext, generateComplexity)
	generateLatency := time.Since(generateStart)
	o.recordStage("generate", generateLatency)

	totalLatency := time.Since(start)

	turnCount := len(session.History) + 1
	session.History = append(session.History, Turn{Customer: message, Agent: generation.Response})
	session.PrincipleHistory = append(session.PrincipleHistory, selection.Principle.ID)

	result := o.builder.Build(BuildInput{
		CustomerMessage: message,
		Response:        generation.Response,
		Detection:       detection,
		Context:         session.Context,
		Quotes:          session.Quotes,
		Selected:        selection,
		FallbackPlay:    fallbackPlay,
		SessionID:       sessionID,
		TurnCount:       turnCount,
		ResistanceCount: session.ResistanceCount,
		PrinciplesUsed:  session.PrincipleHistory,
		LatencyMs:       totalLatency.Milliseconds(),
		StepLatencies: StepLatencies{
			CaptureMs:          parallelLatency.Milliseconds(),
			DetectMs:           detectLatency.Milliseconds(),
			DetectParallelMs:   parallelLatency.Milliseconds(),
			ReconcileMs:        reconcileLatency.Milliseconds(),
			SelectMs:           selectLatency.Milliseconds(),
			GenerateMs:         generateLatency.Milliseconds(),
			ReconcileTriggered: needsReconcile,
		},
	})

	// Write-through under the pre-capture snapshot used for lookup.
	o.exact.Set(message, cacheKeyContext, result)
	o.semantic.Set(ctx, message, cacheKeyContext, result)

	if o.metrics != nil {
		o.metrics.RecordTurn("none", totalLatency)
	}
	slog.Info("turn completed",
		"session_id", sessionID,
		"turn_count", turnCount,
		"situation", detection.Situation,
		"principle", selection.Principle.ID,
		"reconcile", needsReconcile,
		"latency_ms", totalLatency.Milliseconds(),
	)

	return result, nil
}

// cachedResult marks a cache hit and splices fresh timing into the stored
// copy. Result is a value, the cached entry itself stays untouched.
func (o *Orchestrator) cachedResult(result Result, cacheType, sessionID string, latency time.Duration) Result {
	latencyMs := latency.Milliseconds()
	result.AgentDashboard.CacheHit = true
	result.AgentDashboard.CacheType = cacheType
	result.AgentDashboard.System.LatencyMs = latencyMs
	result.AgentDashboard.System.StepLatencies.CacheMs = latencyMs

	if o.metrics != nil {
		o.metrics.RecordCacheHit(cacheType)
		o.metrics.RecordTurn(cacheType, latency)
	}
	slog.Info("cache hit", "cache_type", cacheType, "session_id", sessionID, "latency_ms", latencyMs)
	return result
}

// needsReconcile decides whether detection must re-run with the
// post-capture context: low pre-capture confidence, a newly captured
// critical slot, or a large context change.
func (o *Orchestrator) needsReconcile(pre Detection, captured CaptureResult, oldContext Context) bool {
	if pre.Confidence < o.reconcileThresholds.Confidence {
		slog.Debug("reconcile trigger: low confidence", "confidence", pre.Confidence)
		return true
	}

	newSlotCount := 0
	for name := range captured.Slots {
		if _, existed := oldContext[name]; existed {
			continue
		}
		if criticalSlots[name] {
			slog.Debug("reconcile trigger: new critical slot", "slot", name)
			return true
		}
		newSlotCount++
	}

	if newSlotCount > o.reconcileThresholds.NewSlots || len(captured.Quotes) > o.reconcileThresholds.NewQuotes {
		slog.Debug("reconcile trigger: significant context change",
			"new_slots", newSlotCount, "new_quotes", len(captured.Quotes))
		return true
	}

	return false
}

func (o *Orchestrator) recordStage(stage string, latency time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordStage(stage, latency)
	}
}

func (o *Orchestrator) recordCacheMiss(tier string) {
	if o.metrics != nil {
		o.metrics.RecordCacheMiss(tier)
	}
}
