package domain

type FallbackReason string

const (
	ReasonVeryLowConfidence FallbackReason = "very_low_confidence"
	ReasonLowConfidence     FallbackReason = "low_confidence"
	ReasonNoRelevantContext FallbackReason = "no_relevant_context"
	ReasonUncertainResponse FallbackReason = "uncertain_response"
)

type EscalationType string

const (
	EscalationBilling   EscalationType = "billing"
	EscalationSales     EscalationType = "sales"
	EscalationTechnical EscalationType = "technical"
)

type Escalation struct {
	Type          EscalationType `json:"type"`
	Contact       string         `json:"contact"`
	Message       string         `json:"message"`
	Urgent        bool           `json:"urgent"`
	Available24x7 bool           `json:"available_24_7,omitempty"`
}

type FallbackDecision struct {
	ShouldFallback   bool           `json:"should_fallback"`
	Reason           FallbackReason `json:"reason"`
	Answer           string         `json:"answer"`
	Suggestions      []string       `json:"suggestions"`
	RelatedQuestions []string       `json:"related_questions"`
	Escalation       Escalation     `json:"escalation"`
}
