package htmltext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extractor returns the visible text of an HTML article with block
// elements on their own lines.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, key string, body io.Reader) (string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", key, err)
	}

	var b strings.Builder
	walk(&b, doc)
	return normalizeLines(b.String()), nil
}

func walk(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Nav, atom.Footer:
			return
		case atom.A:
			// Absolute link targets are kept inline after the anchor text.
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(b, c)
			}
			if href := attr(n, "href"); strings.HasPrefix(href, "http") {
				fmt.Fprintf(b, " (%s)", href)
			}
			return
		}
	case html.TextNode:
		b.WriteString(n.Data)
		return
	}

	block := isBlock(n)
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(b, c)
	}
	if block {
		b.WriteString("\n")
	}
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Pre, atom.Blockquote, atom.Table, atom.Ul, atom.Ol:
		return true
	default:
		return false
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
