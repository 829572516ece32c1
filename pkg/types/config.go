// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// TextBackend identifies the library used to pull text out of PDF pages.
type TextBackend string

const (
	// BackendMuPDF renders pages through MuPDF (go-fitz) and is the only
	// backend that yields a rich-text (HTML) rendition.
	BackendMuPDF     TextBackend = "mupdf"
	BackendTabula    TextBackend = "tabula"
	BackendPlain     TextBackend = "plain"
	BackendPdftotext TextBackend = "pdftotext"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendMuPDF

// Backends lists every supported text backend in display order.
var Backends = []TextBackend{BackendMuPDF, BackendTabula, BackendPlain, BackendPdftotext}

// ParseBackend maps a user-supplied name to a TextBackend. Matching is
// case-insensitive; an empty name selects DefaultBackend.
func ParseBackend(name string) (TextBackend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultBackend, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (want one of %s)", name, backendList())
}

func backendList() string {
	names := make([]string, len(Backends))
	for i, b := range Backends {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}

// ConversionConfig holds settings for a single PDF-to-Markdown conversion.
type ConversionConfig struct {
	// Backend selects the text extraction library.
	Backend TextBackend `json:"backend" yaml:"backend"`

	// DisableImages suppresses image extraction and the images/ directory.
	DisableImages bool `json:"disable_image" yaml:"disable_image"`

	// SkipBadImages logs and skips images that fail to decode or save
	// instead of aborting the whole conversion.
	SkipBadImages bool `json:"skip_bad_images" yaml:"skip_bad_images"`

	// Frontmatter prepends a YAML document describing the conversion.
	Frontmatter bool `json:"frontmatter" yaml:"frontmatter"`

	// Normalize applies Unicode NFC normalisation to extracted page text.
	Normalize bool `json:"normalize" yaml:"normalize"`

	// HistoryDB is the SQLite database recording completed conversions.
	// Empty disables the history.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`
}
