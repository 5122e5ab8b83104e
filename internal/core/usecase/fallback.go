package usecase

import (
	"fmt"
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

const (
	maxSuggestions      = 5
	maxRelatedQuestions = 5
	minPartialLength    = 20
	minResponseWords    = 10
)

type FallbackThresholds struct {
	VeryLowConfidence float64
	LowConfidence     float64
	MediumConfidence  float64
	MinContextQuality float64
}

func DefaultFallbackThresholds() FallbackThresholds {
	return FallbackThresholds{
		VeryLowConfidence: 0.2,
		LowConfidence:     0.3,
		MediumConfidence:  0.6,
		MinContextQuality: 0.4,
	}
}

type EscalationContacts struct {
	Technical string
	Billing   string
	Sales     string
}

func DefaultEscalationContacts() EscalationContacts {
	return EscalationContacts{
		Technical: "support@acecloudhosting.com",
		Billing:   "billing@acecloudhosting.com",
		Sales:     "sales@acecloudhosting.com",
	}
}

var (
	uncertainPhrases = []string{"i'm not sure", "i don't know", "i cannot", "i don't have", "unclear", "unable to find"}
	billingWords     = []string{"bill", "invoice", "payment", "charge", "refund"}
	billingUrgent    = []string{"refund", "charge"}
	salesWords       = []string{"upgrade", "purchase", "plan", "pricing"}
	urgencyWords     = []string{"urgent", "down", "broken", "critical", "emergency"}

	intentSuggestions = map[string][]string{
		domain.IntentHowTo: {
			"Check our knowledge base articles for step-by-step guides",
			"Try rephrasing your question to be more specific",
			"Contact support for personalized assistance",
		},
		domain.IntentTroubleshooting: {
			"Verify the issue is still occurring",
			"Try basic troubleshooting: restart, check connections, verify credentials",
			"Gather error messages or screenshots to share with support",
		},
		domain.IntentAccountManagement: {
			"Use the self-service portal at https://manage.acecloudhosting.com",
			"Contact your account manager for account changes",
			"Check your email for recent account notifications",
		},
	}
	defaultSuggestions = []string{
		"Try asking a more specific question",
		"Browse our knowledge base for related topics",
		"Contact our support team for direct assistance",
	}

	relatedByKeyword = []struct {
		keyword   string
		questions []string
	}{
		{"password", []string{
			"How do I reset my password?",
			"What are the password requirements?",
			"How do I enable multi-factor authentication?",
		}},
		{"quickbooks", []string{
			"How do I upgrade QuickBooks?",
			"How to fix QuickBooks login issues?",
			"How do I backup QuickBooks data?",
		}},
		{"server", []string{
			"How do I connect to my server?",
			"How to increase server resources?",
			"How do I reboot my server?",
		}},
		{"user", []string{
			"How do I add a new user?",
			"How to remove a user?",
			"How to change user permissions?",
		}},
		{"printer", []string{
			"How do I setup a printer?",
			"How to troubleshoot printer issues?",
			"How do I add a network printer?",
		}},
	}
	defaultRelated = []string{
		"What services does Ace Cloud Hosting offer?",
		"How do I access support?",
		"Where can I find account information?",
	}
)

// FallbackPolicy is a deterministic decision table for low-trust answers.
type FallbackPolicy struct {
	thresholds FallbackThresholds
	contacts   EscalationContacts
}

func NewFallbackPolicy(thresholds FallbackThresholds, contacts EscalationContacts) *FallbackPolicy {
	def := DefaultFallbackThresholds()
	if thresholds.LowConfidence <= 0 {
		thresholds.LowConfidence = def.LowConfidence
	}
	if thresholds.VeryLowConfidence <= 0 {
		thresholds.VeryLowConfidence = def.VeryLowConfidence
	}
	if thresholds.MediumConfidence <= 0 {
		thresholds.MediumConfidence = def.MediumConfidence
	}
	if thresholds.MinContextQuality <= 0 {
		thresholds.MinContextQuality = def.MinContextQuality
	}
	defContacts := DefaultEscalationContacts()
	if contacts.Technical == "" {
		contacts.Technical = defContacts.Technical
	}
	if contacts.Billing == "" {
		contacts.Billing = defContacts.Billing
	}
	if contacts.Sales == "" {
		contacts.Sales = defContacts.Sales
	}
	return &FallbackPolicy{thresholds: thresholds, contacts: contacts}
}

func (p *FallbackPolicy) ShouldFallback(confidence, contextQuality float64, response string) bool {
	if confidence < p.thresholds.LowConfidence {
		return true
	}
	if contextQuality < p.thresholds.MinContextQuality {
		return true
	}
	if containsAny(strings.ToLower(response), uncertainPhrases) {
		return true
	}
	return len(strings.Fields(response)) < minResponseWords
}

func (p *FallbackPolicy) BuildFallback(query, intent string, confidence float64, partialResponse string, contextDocs []domain.Candidate) domain.FallbackDecision {
	reason := p.classifyReason(confidence, contextDocs)
	return domain.FallbackDecision{
		ShouldFallback:   true,
		Reason:           reason,
		Answer:           buildFallbackMessage(intent, reason, partialResponse),
		Suggestions:      buildSuggestions(intent, contextDocs),
		RelatedQuestions: buildRelatedQuestions(query),
		Escalation:       p.escalation(query),
	}
}

func (p *FallbackPolicy) classifyReason(confidence float64, contextDocs []domain.Candidate) domain.FallbackReason {
	switch {
	case confidence < p.thresholds.VeryLowConfidence:
		return domain.ReasonVeryLowConfidence
	case confidence < p.thresholds.LowConfidence:
		return domain.ReasonLowConfidence
	case len(contextDocs) == 0:
		return domain.ReasonNoRelevantContext
	default:
		return domain.ReasonUncertainResponse
	}
}

// EnhanceLowConfidence adds a disclaimer to medium-confidence answers and
// lists up to three suggestions.
func (p *FallbackPolicy) EnhanceLowConfidence(response string, confidence float64, suggestions []string) string {
	if confidence >= p.thresholds.MediumConfidence {
		return response
	}

	var b strings.Builder
	if confidence >= p.thresholds.LowConfidence {
		b.WriteString("Based on available information:\n\n")
		b.WriteString(response)
		b.WriteString("\n\nPlease note: This information may not be complete. ")
		b.WriteString("For definitive guidance, please contact support.")
	} else {
		b.WriteString(response)
	}

	if len(suggestions) > 0 {
		b.WriteString("\n\n**Helpful suggestions:**\n")
		for i, s := range suggestions {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return b.String()
}

func (p *FallbackPolicy) escalation(query string) domain.Escalation {
	q := strings.ToLower(query)
	if containsAny(q, billingWords) {
		return domain.Escalation{
			Type:    domain.EscalationBilling,
			Contact: p.contacts.Billing,
			Message: "For billing inquiries, please contact our billing team",
			Urgent:  containsAny(q, billingUrgent),
		}
	}
	if containsAny(q, salesWords) {
		return domain.Escalation{
			Type:    domain.EscalationSales,
			Contact: p.contacts.Sales,
			Message: "For upgrades and pricing, please contact our sales team",
		}
	}
	return domain.Escalation{
		Type:          domain.EscalationTechnical,
		Contact:       p.contacts.Technical,
		Message:       "For technical assistance, please contact our support team",
		Urgent:        containsAny(q, urgencyWords),
		Available24x7: true,
	}
}

func buildFallbackMessage(intent string, reason domain.FallbackReason, partial string) string {
	var b strings.Builder
	b.WriteString("I want to help you with that. ")

	switch reason {
	case domain.ReasonVeryLowConfidence:
		b.WriteString("However, I don't have specific information about this in my current knowledge base. ")
	case domain.ReasonNoRelevantContext:
		b.WriteString("I couldn't find relevant information about this specific topic. ")
	default:
		b.WriteString("I have limited information about this. ")
	}

	if len(partial) > minPartialLength {
		fmt.Fprintf(&b, "\n\nWhat I can tell you:\n%s\n\n", partial)
	}

	switch intent {
	case domain.IntentHowTo:
		b.WriteString("For detailed step-by-step instructions, ")
	case domain.IntentTroubleshooting:
		b.WriteString("For technical troubleshooting assistance, ")
	case domain.IntentBilling:
		b.WriteString("For billing questions, ")
	default:
		b.WriteString("For more specific help, ")
	}
	b.WriteString("please see the suggestions below or contact our support team.")
	return b.String()
}

func buildSuggestions(intent string, contextDocs []domain.Candidate) []string {
	base, ok := intentSuggestions[intent]
	if !ok {
		base = defaultSuggestions
	}
	out := make([]string, 0, maxSuggestions)
	out = append(out, base...)

	topics := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for i, doc := range contextDocs {
		if i == 3 {
			break
		}
		topic := strings.TrimSpace(doc.MetaString(domain.MetaTopic))
		if topic == "" {
			continue
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	if len(topics) > 0 {
		out = append(out, "Explore related topics: "+strings.Join(topics, ", "))
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func buildRelatedQuestions(query string) []string {
	q := strings.ToLower(query)
	related := defaultRelated
	for _, entry := range relatedByKeyword {
		if strings.Contains(q, entry.keyword) {
			related = entry.questions
			break
		}
	}
	out := make([]string, 0, maxRelatedQuestions)
	for i, r := range related {
		if i == maxRelatedQuestions {
			break
		}
		out = append(out, r)
	}
	return out
}
