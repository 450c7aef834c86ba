package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xhad/docqa/internal/models"
	"github.com/yuin/goldmark"
)

// Result is the raw text handed to the core pipeline. PDF extraction keeps
// per-page text so the page-aware chunker can tag page numbers; the flat
// formats fill Text only.
type Result struct {
	Text  string
	Pages []models.Page
}

// Paged reports whether the document carries page structure.
func (r Result) Paged() bool { return len(r.Pages) > 0 }

// FromFile extracts document text based on the file extension. Supported:
// .pdf, .html, .htm, .md, .markdown, .txt.
func FromFile(path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return fromPDF(path)
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, err
		}
		return fromHTML(data)
	case ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, err
		}
		return fromMarkdown(data)
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: string(data)}, nil
	default:
		return Result{}, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func fromPDF(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Result{}, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return Result{}, fmt.Errorf("failed to read pdf: %w", err)
	}

	var pages []models.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Number: i, Text: text})
	}

	return Result{Pages: pages}, nil
}

// fromHTML strips markup and returns the visible text, paragraph breaks
// preserved as blank lines so the chunker sees them.
func fromHTML(data []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		if text := strings.TrimSpace(doc.Text()); text != "" {
			parts = append(parts, text)
		}
	}

	return Result{Text: strings.Join(parts, "\n\n")}, nil
}

// fromMarkdown renders markdown to HTML and strips it, the same two-step the
// html path uses.
func fromMarkdown(data []byte) (Result, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return Result{}, fmt.Errorf("failed to render markdown: %w", err)
	}
	return fromHTML(buf.Bytes())
}
