package chunking

import (
	"strings"
	"testing"
)

func TestSplitKeepsShortTextWhole(t *testing.T) {
	s := NewSplitter(100, 10)
	out := s.Split("  Restart the VPN client.  ")
	if len(out) != 1 || out[0] != "Restart the VPN client." {
		t.Fatalf("unexpected chunks %q", out)
	}
}

func TestSplitEmptyText(t *testing.T) {
	if out := NewSplitter(100, 10).Split("   "); out != nil {
		t.Fatalf("expected nil, got %q", out)
	}
}

func TestSplitNeverCutsWords(t *testing.T) {
	text := strings.Repeat("password reset portal ", 40)
	s := NewSplitter(50, 10)
	out := s.Split(text)
	if len(out) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(out))
	}
	words := map[string]bool{"password": true, "reset": true, "portal": true}
	for _, chunk := range out {
		if len([]rune(chunk)) > 50 {
			t.Fatalf("chunk exceeds size: %q", chunk)
		}
		for _, w := range strings.Fields(chunk) {
			if !words[w] {
				t.Fatalf("chunk contains split word %q: %q", w, chunk)
			}
		}
	}
}

func TestSplitOverlapsNeighbours(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven twelve"
	out := NewSplitter(24, 10).Split(text)
	if len(out) < 2 {
		t.Fatalf("expected multiple chunks, got %q", out)
	}
	first := strings.Fields(out[0])
	if !strings.HasPrefix(out[1], first[len(first)-1]) && !strings.Contains(out[1], first[len(first)-1]) {
		t.Fatalf("expected overlap between %q and %q", out[0], out[1])
	}
}

func TestSplitHandlesUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 95)
	out := NewSplitter(40, 5).Split(text)
	total := 0
	for _, c := range out {
		total += len(c)
	}
	if total < 95 {
		t.Fatalf("expected full coverage, got %d runes in %d chunks", total, len(out))
	}
}

func TestNewSplitterNormalizesOverlap(t *testing.T) {
	s := NewSplitter(100, 150)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap 25, got %d", s.Overlap)
	}
	if NewSplitter(0, 0).ChunkSize != 900 {
		t.Fatalf("expected default chunk size")
	}
}
