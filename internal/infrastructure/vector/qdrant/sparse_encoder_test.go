package qdrant

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("QuickBooks error H202 on VPN_0001")
	v2 := encodeSparseQuery("QuickBooks error H202 on VPN_0001")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("remote desktop printer mapping")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestTokenizeAlphaNumUnicodeAndDigitsStability(t *testing.T) {
	tokens := tokenizeAlphaNum("Café DOC_0001 версия-2")
	if len(tokens) == 0 {
		t.Fatalf("expected tokens, got empty")
	}
	foundDoc := false
	foundNum := false
	foundUnicode := false
	for _, tok := range tokens {
		if tok == "café" || tok == "версия" {
			foundUnicode = true
		}
		if tok == "doc" {
			foundDoc = true
		}
		if tok == "0001" {
			foundNum = true
		}
	}
	if !foundDoc || !foundNum || !foundUnicode {
		t.Fatalf("expected doc, 0001 and unicode word tokens, got %v", tokens)
	}
}

func sparseWeight(v sparseVector, token string) float32 {
	idx := hashToken(token)
	for i, got := range v.Indices {
		if got == idx {
			return v.Values[i]
		}
	}
	return 0
}

func TestEncodeSparseDocumentBoostsTopicTerms(t *testing.T) {
	plain := encodeSparseDocument("reset your password", nil)
	boosted := encodeSparseDocument("reset your password", map[string]any{domain.MetaTopic: "password reset"})
	if sparseWeight(boosted, "password") <= sparseWeight(plain, "password") {
		t.Fatalf("expected topic terms to weigh more")
	}
}

func TestEncodeSparseDocumentSaturatesByDocType(t *testing.T) {
	text := "vpn vpn vpn vpn client"
	qa := encodeSparseDocument(text, map[string]any{domain.MetaDocType: "qa_pair"})
	guide := encodeSparseDocument(text, map[string]any{domain.MetaDocType: "comprehensive_guide"})
	unknown := encodeSparseDocument(text, map[string]any{domain.MetaDocType: "release_notes"})
	plain := encodeSparseDocument(text, nil)

	if sparseWeight(qa, "vpn") <= sparseWeight(guide, "vpn") {
		t.Fatalf("expected repeated terms to weigh more in a Q&A pair than in a guide")
	}
	if sparseWeight(unknown, "vpn") != sparseWeight(plain, "vpn") {
		t.Fatalf("expected unknown doc type to use the default saturation")
	}
}

func TestEncodeSparseDropsStopwords(t *testing.T) {
	v := encodeSparseQuery("How do I reset my password")
	if sparseWeight(v, "how") != 0 || sparseWeight(v, "my") != 0 {
		t.Fatalf("expected filler words to be dropped")
	}
	if len(v.Indices) != 2 {
		t.Fatalf("expected reset and password only, got %d terms", len(v.Indices))
	}
}

func TestEncodeSparseKeepsHeaviestTermsWhenTruncating(t *testing.T) {
	words := make([]string, 0, maxSparseTerms+10)
	for i := 0; i < maxSparseTerms+10; i++ {
		words = append(words, fmt.Sprintf("term%d", i))
	}
	v := encodeSparseDocument(strings.Join(words, " "), map[string]any{domain.MetaTopic: "quickbooks"})
	if len(v.Indices) != maxSparseTerms {
		t.Fatalf("expected %d terms, got %d", maxSparseTerms, len(v.Indices))
	}
	if sparseWeight(v, "quickbooks") == 0 {
		t.Fatalf("expected boosted topic term to survive truncation")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d", i)
		}
	}
}
