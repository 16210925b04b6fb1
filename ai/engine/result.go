package engine

// Result is the full orchestration output: the reply to show the customer
// plus the dashboard shown to the human sales agent.
type Result struct {
	CustomerFacing CustomerFacing `json:"customer_facing"`
	AgentDashboard AgentDashboard `json:"agent_dashboard"`
}

// CustomerFacing is what the customer sees.
type CustomerFacing struct {
	Response string `json:"response"`
}

// DetectionSummary is the classification block of the dashboard.
type DetectionSummary struct {
	CustomerSaid        string  `json:"customer_said"`
	DetectedSituation   string  `json:"detected_situation"`
	SituationConfidence float64 `json:"situation_confidence"`
	MicroStage          string  `json:"micro_stage"`
	DetectedPersona     string  `json:"detected_persona"`
	PersonaConfidence   float64 `json:"persona_confidence"`
}

// Recommendation is the primary suggested play for the human agent.
type Recommendation struct {
	Principle   string `json:"principle"`
	PrincipleID string `json:"principle_id"`
	Source      string `json:"source"`
	Approach    string `json:"approach"`
	Response    string `json:"response"`
	WhyItWorks  string `json:"why_it_works"`
}

// Fallback is the backup play if the recommendation lands badly.
type Fallback struct {
	Principle   string `json:"principle"`
	PrincipleID string `json:"principle_id"`
	Response    string `json:"response"`
}

// NextProbe is the next qualification question worth asking.
type NextProbe struct {
	Target   string `json:"target"`
	Question string `json:"question"`
}

// SessionSummary is the session block of the dashboard.
type SessionSummary struct {
	SessionID       string   `json:"session_id"`
	TurnCount       int      `json:"turn_count"`
	ResistanceCount int      `json:"resistance_count"`
	PrinciplesUsed  []string `json:"principles_used"`
}

// StepLatencies is the per-stage latency breakdown in milliseconds.
type StepLatencies struct {
	CacheMs            int64 `json:"cache_ms"`
	CaptureMs          int64 `json:"capture_ms"`
	DetectMs           int64 `json:"detect_ms"`
	DetectParallelMs   int64 `json:"detect_parallel_ms"`
	ReconcileMs        int64 `json:"reconcile_ms"`
	SelectMs           int64 `json:"select_ms"`
	GenerateMs         int64 `json:"generate_ms"`
	ReconcileTriggered bool  `json:"reconcile_triggered"`
}

// SystemInfo is the timing block of the dashboard.
type SystemInfo struct {
	LatencyMs     int64         `json:"latency_ms"`
	StepLatencies StepLatencies `json:"step_latencies"`
}

// AgentDashboard is everything the human agent sees about the turn.
type AgentDashboard struct {
	Detection              DetectionSummary  `json:"detection"`
	CapturedContext        map[string]string `json:"captured_context"`
	CapturedQuotes         []string          `json:"captured_quotes"`
	QualificationChecklist map[string]bool   `json:"qualification_checklist"`
	Recommendation         Recommendation    `json:"recommendation"`
	Fallback               Fallback          `json:"fallback"`
	NextProbe              NextProbe         `json:"next_probe"`
	Session                SessionSummary    `json:"session"`
	System                 SystemInfo        `json:"system"`
	CacheHit               bool              `json:"cache_hit"`
	CacheType              string            `json:"cache_type,omitempty"`
}
