package ingest

import (
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// Page is one page of extracted document text. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// PageExtractor turns a document file into (text, page number) pairs.
type PageExtractor interface {
	Pages(path string) ([]Page, error)
}

// PDFExtractor implements PageExtractor for PDF files.
type PDFExtractor struct{}

func (PDFExtractor) Pages(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the whole document.
			log.Warn().Err(err).Str("path", path).Int("page", i).Msg("failed to extract page text")
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
