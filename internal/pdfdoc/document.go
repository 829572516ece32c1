// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfdoc opens PDF files for conversion. Page text comes from one of
// several backends (MuPDF, tabula, ledongthuc/pdf, poppler's pdftotext);
// embedded images are always enumerated and decoded from the PDF objects
// read through tabula.
package pdfdoc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// ErrImagesDisabled is returned by image methods on a Document opened
// without Options.Images.
var ErrImagesDisabled = errors.New("document opened without image support")

// Options configures Open.
type Options struct {
	// Backend selects the text extraction library. Empty means
	// types.DefaultBackend.
	Backend types.TextBackend

	// Images opens the image reader so PageImages and DecodeImage work.
	Images bool

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger

	// exec overrides the command runner used by the pdftotext backend.
	exec executor
}

// PageContent is the text extracted from one page.
type PageContent struct {
	// Text is the plain text of the page.
	Text string

	// HTML is a rich-text rendition of the page. Only backends that can
	// recover structure fill it in.
	HTML string
}

// textSource is implemented by each text backend.
type textSource interface {
	numPages() (int, error)
	pageContent(index int) (PageContent, error)
	close() error
}

// Document is an open PDF. It is not safe for concurrent use.
type Document struct {
	path    string
	backend types.TextBackend
	pages   int
	text    textSource
	objs    *objectStore
	log     *slog.Logger
}

// Open opens the PDF at path. The returned Document must be closed.
func Open(path string, opts Options) (*Document, error) {
	backend, err := types.ParseBackend(string(opts.Backend))
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	d := &Document{path: path, backend: backend, log: log}

	if opts.Images || backend == types.BackendTabula {
		objs, err := openObjectStore(path)
		if err != nil {
			return nil, fmt.Errorf("reading PDF structure: %w", err)
		}
		d.objs = objs
	}

	src, err := d.openText(backend, opts)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.text = src

	n, err := src.numPages()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("counting pages: %w", err)
	}
	d.pages = n

	log.Debug("opened PDF", "path", path, "backend", backend, "pages", n, "images", opts.Images)
	return d, nil
}

func (d *Document) openText(backend types.TextBackend, opts Options) (textSource, error) {
	switch backend {
	case types.BackendMuPDF:
		return openMuPDF(d.path)
	case types.BackendTabula:
		return &tabulaSource{objs: d.objs, log: d.log}, nil
	case types.BackendPlain:
		return openPlain(d.path)
	case types.BackendPdftotext:
		ex := opts.exec
		if ex == nil {
			ex = &osExecutor{}
		}
		return openPdftotext(d.path, ex)
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}

// Path returns the file the Document was opened from.
func (d *Document) Path() string { return d.path }

// Backend returns the text backend in use.
func (d *Document) Backend() types.TextBackend { return d.backend }

// NumPages returns the page count.
func (d *Document) NumPages() int { return d.pages }

// PageContent extracts the text of the page at index (0-based). The HTML
// rendition is only produced when the page has non-blank text.
func (d *Document) PageContent(index int) (PageContent, error) {
	if err := d.checkIndex(index); err != nil {
		return PageContent{}, err
	}
	return d.text.pageContent(index)
}

func (d *Document) checkIndex(index int) error {
	if index < 0 || index >= d.pages {
		return fmt.Errorf("page index %d out of range (document has %d pages)", index, d.pages)
	}
	return nil
}

// Close releases every handle the Document holds. It is safe to call more
// than once.
func (d *Document) Close() error {
	var errs []error
	if d.text != nil {
		if err := d.text.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s backend: %w", d.backend, err))
		}
		d.text = nil
	}
	if d.objs != nil {
		if err := d.objs.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing PDF reader: %w", err))
		}
		d.objs = nil
	}
	return errors.Join(errs...)
}
