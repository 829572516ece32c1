// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"fmt"
	"log/slog"

	"github.com/tsawler/tabula"
)

// tabulaSource extracts text with tabula's layout-aware assembler. It
// borrows the Document's object store and never closes it.
type tabulaSource struct {
	objs *objectStore
	log  *slog.Logger
}

func (s *tabulaSource) numPages() (int, error) {
	return s.objs.r.PageCount()
}

// pageContent returns empty text for pages without text objects, which
// tabula cannot always parse (an empty content stream, for one).
func (s *tabulaSource) pageContent(index int) (PageContent, error) {
	hasText, err := s.objs.drawsText(index)
	if err != nil {
		return PageContent{}, fmt.Errorf("reading page contents: %w", err)
	}
	if !hasText {
		return PageContent{}, nil
	}

	text, warnings, err := tabula.FromReader(s.objs.r).Pages(index + 1).Text()
	if err != nil {
		return PageContent{}, fmt.Errorf("extracting text: %w", err)
	}
	if len(warnings) > 0 {
		s.log.Debug("tabula reported warnings", "page", index+1, "count", len(warnings))
	}
	return PageContent{Text: text}, nil
}

func (s *tabulaSource) close() error { return nil }
