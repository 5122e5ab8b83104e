package usecase

import (
	"strings"
	"testing"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

func newTestFallbackPolicy() *FallbackPolicy {
	return NewFallbackPolicy(DefaultFallbackThresholds(), DefaultEscalationContacts())
}

func TestShouldFallbackOnLowConfidenceRegardlessOfOtherInputs(t *testing.T) {
	p := newTestFallbackPolicy()
	if !p.ShouldFallback(0.1, 0.9, "A fully detailed answer with plenty of words.") {
		t.Fatalf("expected fallback for confidence below threshold")
	}
}

func TestShouldFallbackTriggers(t *testing.T) {
	p := newTestFallbackPolicy()
	long := "Open the portal, choose Forgot Password and follow the link sent to your registered email address."

	if p.ShouldFallback(0.8, 0.9, long) {
		t.Fatalf("expected confident detailed answer to pass")
	}
	if !p.ShouldFallback(0.8, 0.3, long) {
		t.Fatalf("expected poor context quality to trigger fallback")
	}
	if !p.ShouldFallback(0.8, 0.9, "I'm not sure, but you could open the portal and look for the reset option there.") {
		t.Fatalf("expected uncertain language to trigger fallback")
	}
	if !p.ShouldFallback(0.8, 0.9, "Open the portal.") {
		t.Fatalf("expected short answer to trigger fallback")
	}
}

func TestBuildFallbackReasonOrder(t *testing.T) {
	p := newTestFallbackPolicy()
	docs := []domain.Candidate{{ID: "1"}}

	cases := []struct {
		confidence float64
		docs       []domain.Candidate
		want       domain.FallbackReason
	}{
		{0.1, docs, domain.ReasonVeryLowConfidence},
		{0.25, nil, domain.ReasonLowConfidence},
		{0.5, nil, domain.ReasonNoRelevantContext},
		{0.5, docs, domain.ReasonUncertainResponse},
	}
	for _, tc := range cases {
		got := p.BuildFallback("query", domain.IntentUnknown, tc.confidence, "", tc.docs)
		if got.Reason != tc.want {
			t.Fatalf("confidence=%.2f docs=%d: expected %s, got %s", tc.confidence, len(tc.docs), tc.want, got.Reason)
		}
		if !got.ShouldFallback {
			t.Fatalf("expected ShouldFallback flag set")
		}
	}
}

func TestBuildFallbackMessage(t *testing.T) {
	p := newTestFallbackPolicy()
	partial := "QuickBooks updates are installed from the Help menu."

	got := p.BuildFallback("how do I update QuickBooks", domain.IntentHowTo, 0.5, partial, nil)
	want := "I want to help you with that. I couldn't find relevant information about this specific topic. " +
		"\n\nWhat I can tell you:\n" + partial + "\n\n" +
		"For detailed step-by-step instructions, please see the suggestions below or contact our support team."
	if got.Answer != want {
		t.Fatalf("unexpected answer:\n%q\nwant\n%q", got.Answer, want)
	}

	short := p.BuildFallback("billing", domain.IntentBilling, 0.1, "too short", nil)
	if strings.Contains(short.Answer, "What I can tell you") {
		t.Fatalf("expected short partial response to be omitted")
	}
	if !strings.Contains(short.Answer, "However, I don't have specific information") || !strings.Contains(short.Answer, "For billing questions, ") {
		t.Fatalf("unexpected very-low-confidence billing answer %q", short.Answer)
	}
}

func TestBuildFallbackSuggestionsAndRelatedQuestions(t *testing.T) {
	p := newTestFallbackPolicy()
	docs := []domain.Candidate{
		{Metadata: map[string]any{domain.MetaTopic: "password reset"}},
		{Metadata: map[string]any{domain.MetaTopic: "mfa"}},
		{Metadata: map[string]any{domain.MetaTopic: "password reset"}},
		{Metadata: map[string]any{domain.MetaTopic: "ignored fourth"}},
	}

	got := p.BuildFallback("forgot my password", domain.IntentTroubleshooting, 0.5, "", docs)
	if len(got.Suggestions) != 4 {
		t.Fatalf("expected 3 intent suggestions plus topics, got %v", got.Suggestions)
	}
	if got.Suggestions[3] != "Explore related topics: password reset, mfa" {
		t.Fatalf("unexpected topic suggestion %q", got.Suggestions[3])
	}
	if got.RelatedQuestions[0] != "How do I reset my password?" {
		t.Fatalf("unexpected related questions %v", got.RelatedQuestions)
	}

	generic := p.BuildFallback("hello", domain.IntentUnknown, 0.5, "", nil)
	if generic.Suggestions[0] != "Try asking a more specific question" || generic.RelatedQuestions[0] != "What services does Ace Cloud Hosting offer?" {
		t.Fatalf("unexpected generic fallback lists: %v %v", generic.Suggestions, generic.RelatedQuestions)
	}
}

func TestEscalationRouting(t *testing.T) {
	p := newTestFallbackPolicy()

	billing := p.BuildFallback("I need a refund for this invoice", domain.IntentBilling, 0.5, "", nil).Escalation
	if billing.Type != domain.EscalationBilling || !billing.Urgent || billing.Contact != "billing@acecloudhosting.com" {
		t.Fatalf("unexpected billing escalation %+v", billing)
	}

	sales := p.BuildFallback("what is the pricing for a bigger plan", domain.IntentUnknown, 0.5, "", nil).Escalation
	if sales.Type != domain.EscalationSales || sales.Urgent {
		t.Fatalf("unexpected sales escalation %+v", sales)
	}

	tech := p.BuildFallback("server is down", domain.IntentTroubleshooting, 0.5, "", nil).Escalation
	if tech.Type != domain.EscalationTechnical || !tech.Urgent || !tech.Available24x7 {
		t.Fatalf("unexpected technical escalation %+v", tech)
	}
}

func TestBuildFallbackIsDeterministic(t *testing.T) {
	p := newTestFallbackPolicy()
	a := p.BuildFallback("printer not working", domain.IntentTroubleshooting, 0.25, "Check the UniPrint service status.", nil)
	b := p.BuildFallback("printer not working", domain.IntentTroubleshooting, 0.25, "Check the UniPrint service status.", nil)
	if a.Answer != b.Answer || strings.Join(a.Suggestions, "|") != strings.Join(b.Suggestions, "|") || a.Escalation != b.Escalation {
		t.Fatalf("expected identical decisions")
	}
}

func TestEnhanceLowConfidence(t *testing.T) {
	p := newTestFallbackPolicy()

	if got := p.EnhanceLowConfidence("answer", 0.8, []string{"s"}); got != "answer" {
		t.Fatalf("expected confident answer unchanged, got %q", got)
	}

	got := p.EnhanceLowConfidence("answer", 0.45, []string{"one", "two", "three", "four"})
	if !strings.HasPrefix(got, "Based on available information:\n\nanswer") {
		t.Fatalf("expected disclaimer prefix, got %q", got)
	}
	if !strings.Contains(got, "3. three\n") || strings.Contains(got, "4. four") {
		t.Fatalf("expected three numbered suggestions, got %q", got)
	}
}
