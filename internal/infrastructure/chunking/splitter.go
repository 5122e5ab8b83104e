package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts text into overlapping windows of ChunkSize runes. Window
// edges snap to whitespace so words are never split.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapBack(runes, start+s.ChunkSize/2, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := snapForward(runes, end-s.Overlap, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// snapBack moves end left to the last whitespace after floor, if any.
func snapBack(runes []rune, floor, end int) int {
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// snapForward moves start right to the beginning of the next word.
func snapForward(runes []rune, start, limit int) int {
	if start <= 0 {
		return 0
	}
	for i := start; i < limit; i++ {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}
