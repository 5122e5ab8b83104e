package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, key string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary format: %s", key)
	}

	return strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff")), nil
}
