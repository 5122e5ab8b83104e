package excel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extractor renders every sheet row as "Header: value" lines, using the
// first non-empty row of each sheet as the header. Rows are separated by a
// blank line so Q&A pairs stay together.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, key string, body io.Reader) (string, error) {
	f, err := excelize.OpenReader(body)
	if err != nil {
		return "", fmt.Errorf("open workbook %s: %w", key, err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		writeRows(&b, rows)
	}
	return strings.TrimSpace(b.String()), nil
}

func writeRows(b *strings.Builder, rows [][]string) {
	var header []string
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if header == nil {
			header = row
			continue
		}

		wrote := false
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			label := fmt.Sprintf("Column %d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				label = strings.TrimSpace(header[i])
			}
			fmt.Fprintf(b, "%s: %s\n", label, cell)
			wrote = true
		}
		if wrote {
			b.WriteString("\n")
		}
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
