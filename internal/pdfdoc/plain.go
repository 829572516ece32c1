// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// plainSource extracts unformatted text with ledongthuc/pdf.
type plainSource struct {
	f *os.File
	r *pdf.Reader
}

func openPlain(path string) (src *plainSource, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opening %s: malformed PDF: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &plainSource{f: f, r: r}, nil
}

func (p *plainSource) numPages() (int, error) {
	return p.r.NumPage(), nil
}

func (p *plainSource) pageContent(index int) (content PageContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extracting text: malformed page: %v", r)
		}
	}()

	page := p.r.Page(index + 1)
	if page.V.IsNull() {
		return PageContent{}, nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return PageContent{}, fmt.Errorf("extracting text: %w", err)
	}
	return PageContent{Text: text}, nil
}

func (p *plainSource) close() error {
	return p.f.Close()
}
