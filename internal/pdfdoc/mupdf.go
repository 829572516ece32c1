// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// inlineImageTag matches the base64 <img> elements MuPDF embeds in its HTML
// output. Images are extracted separately, so they are dropped here.
var inlineImageTag = regexp.MustCompile(`(?i)<img[^>]*\ssrc="data:[^"]*"[^>]*>`)

// mupdfSource extracts text and HTML through MuPDF.
type mupdfSource struct {
	doc *fitz.Document
}

func openMuPDF(path string) (*mupdfSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s with MuPDF: %w", path, err)
	}
	return &mupdfSource{doc: doc}, nil
}

func (m *mupdfSource) numPages() (int, error) {
	return m.doc.NumPage(), nil
}

func (m *mupdfSource) pageContent(index int) (PageContent, error) {
	text, err := m.doc.Text(index)
	if err != nil {
		return PageContent{}, fmt.Errorf("extracting text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return PageContent{Text: text}, nil
	}

	html, err := m.doc.HTML(index, false)
	if err != nil {
		return PageContent{}, fmt.Errorf("rendering HTML: %w", err)
	}
	return PageContent{Text: text, HTML: inlineImageTag.ReplaceAllString(html, "")}, nil
}

func (m *mupdfSource) close() error {
	return m.doc.Close()
}
