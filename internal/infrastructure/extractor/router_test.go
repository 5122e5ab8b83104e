package extractor

import (
	"context"
	"io"
	"strings"
	"testing"
)

type stubExtractor struct{ out string }

func (s stubExtractor) Extract(context.Context, string, io.Reader) (string, error) {
	return s.out, nil
}

func TestRouterDispatchesByExtension(t *testing.T) {
	r := NewRouter()
	r.Register(".PDF", stubExtractor{out: "from pdf"})

	got, err := r.Extract(context.Background(), "manuals/VPN.Pdf", strings.NewReader("ignored"))
	if err != nil || got != "from pdf" {
		t.Fatalf("expected pdf extractor, got %q %v", got, err)
	}

	got, err = r.Extract(context.Background(), "kb/reset.html", strings.NewReader("<p>Reset</p>"))
	if err != nil || got != "Reset" {
		t.Fatalf("expected html extractor, got %q %v", got, err)
	}

	got, err = r.Extract(context.Background(), "notes.md", strings.NewReader(" plain "))
	if err != nil || got != "plain" {
		t.Fatalf("expected plaintext fallback, got %q %v", got, err)
	}
}
