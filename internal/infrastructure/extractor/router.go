package extractor

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/ports"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/extractor/excel"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/extractor/htmltext"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/extractor/pdf"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/extractor/plaintext"
)

// Router picks an extractor by file extension and falls back to plain text.
type Router struct {
	byExt    map[string]ports.TextExtractor
	fallback ports.TextExtractor
}

func NewRouter() *Router {
	htmlExtractor := htmltext.NewExtractor()
	return &Router{
		byExt: map[string]ports.TextExtractor{
			".pdf":  pdf.NewExtractor(),
			".xlsx": excel.NewExtractor(),
			".html": htmlExtractor,
			".htm":  htmlExtractor,
		},
		fallback: plaintext.NewExtractor(),
	}
}

// Register overrides the extractor for ext (with leading dot).
func (r *Router) Register(ext string, e ports.TextExtractor) {
	r.byExt[strings.ToLower(ext)] = e
}

func (r *Router) Extract(ctx context.Context, key string, body io.Reader) (string, error) {
	if e, ok := r.byExt[strings.ToLower(path.Ext(key))]; ok {
		return e.Extract(ctx, key, body)
	}
	return r.fallback.Extract(ctx, key, body)
}
