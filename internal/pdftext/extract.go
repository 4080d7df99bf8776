// Package pdftext turns a PDF on disk, or at a URL, into plain text.
package pdftext

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperlens/internal/util"
)

type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads every page's plain text. Pages are separated by a blank line
// so paragraph splitting downstream still sees page boundaries.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	defer func() {
		// the pdf reader panics on some malformed xref tables
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("extract pdf text: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		if content = util.CleanText(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
