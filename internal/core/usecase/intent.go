package usecase

import (
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type intentRule struct {
	intent     string
	confidence float64
	keywords   []string
}

var intentRules = []intentRule{
	{intent: domain.IntentHowTo, confidence: 0.8, keywords: []string{"how", "setup", "configure", "install"}},
	{intent: domain.IntentTroubleshooting, confidence: 0.8, keywords: []string{"error", "issue", "problem", "fix", "trouble"}},
	{intent: domain.IntentBilling, confidence: 0.9, keywords: []string{"bill", "invoice", "payment", "charge"}},
	{intent: domain.IntentAccountManagement, confidence: 0.7, keywords: []string{"account", "permission", "subscription", "add user", "remove user"}},
}

// ClassifyIntent applies keyword rules in order; the first matching rule wins.
func ClassifyIntent(query string) (string, float64) {
	q := strings.ToLower(query)
	for _, rule := range intentRules {
		if containsAny(q, rule.keywords) {
			return rule.intent, rule.confidence
		}
	}
	return domain.IntentUnknown, 0.5
}
