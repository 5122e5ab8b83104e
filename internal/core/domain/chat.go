package domain

type ChatRequest struct {
	Query        string `json:"query"`
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id,omitempty"`
	UseHistory   bool   `json:"use_history"`
	EnhanceQuery bool   `json:"enhance_query"`
}

type ChatResult struct {
	Answer            string            `json:"answer"`
	SessionID         string            `json:"session_id"`
	Intent            string            `json:"intent"`
	IntentConfidence  float64           `json:"intent_confidence"`
	Contexts          []RankedContext   `json:"contexts"`
	OverallConfidence float64           `json:"overall_confidence"`
	CacheHit          bool              `json:"cache_hit"`
	FallbackUsed      bool              `json:"fallback_used"`
	Fallback          *FallbackDecision `json:"fallback,omitempty"`
	OptimizationUsed  bool              `json:"optimization_used"`
	RerankingUsed     bool              `json:"reranking_used"`
	ProcessingTimeMS  float64           `json:"processing_time_ms"`
}
