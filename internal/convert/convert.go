// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a PDF into a Markdown file. Every page with text
// becomes a "## Page N" section; embedded grayscale and RGB images are saved
// as PNG files in an images/ directory next to the output and linked from
// the page they appear on.
package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/pdf2md/internal/markdown"
	"github.com/pdiddy/pdf2md/internal/pdfdoc"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const (
	// imagesDirName is the directory, next to the Markdown file, that
	// receives extracted images. Image links are relative to it.
	imagesDirName = "images"

	pageFragment  = "## Page %d\n\n%s\n"
	imageFragment = "![Image %d](" + imagesDirName + "/%s)\n"
)

// Document is an open PDF as seen by the Converter. *pdfdoc.Document
// implements it.
type Document interface {
	NumPages() int
	PageContent(index int) (pdfdoc.PageContent, error)
	PageImages(index int) ([]pdfdoc.ImageRef, error)
	DecodeImage(ref pdfdoc.ImageRef) (*pdfdoc.Pixmap, error)
	Close() error
}

// Opener opens the PDF at path. images reports whether the caller will
// enumerate and decode images.
type Opener func(path string, images bool) (Document, error)

// Converter runs PDF-to-Markdown conversions with a fixed configuration.
type Converter struct {
	cfg  types.ConversionConfig
	open Opener
	log  *slog.Logger
	now  func() time.Time
}

// New returns a Converter that opens documents with pdfdoc using the
// configured text backend.
func New(cfg types.ConversionConfig, logger *slog.Logger) (*Converter, error) {
	backend, err := types.ParseBackend(string(cfg.Backend))
	if err != nil {
		return nil, err
	}
	cfg.Backend = backend

	open := func(path string, images bool) (Document, error) {
		doc, err := pdfdoc.Open(path, pdfdoc.Options{
			Backend: backend,
			Images:  images,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return NewWithOpener(open, cfg, logger), nil
}

// NewWithOpener returns a Converter that opens documents through open.
func NewWithOpener(open Opener, cfg types.ConversionConfig, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Converter{cfg: cfg, open: open, log: logger, now: time.Now}
}

// DefaultOutputPath returns pdfPath with its extension replaced by ".md".
func DefaultOutputPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".md"
}

// Convert converts the PDF at pdfPath and writes the Markdown to
// outputPath, or to DefaultOutputPath(pdfPath) when outputPath is empty.
// Any existing file at the output path is replaced. The document is closed
// before the output is written, and on every early return.
func (c *Converter) Convert(pdfPath, outputPath string) (types.ConversionResult, error) {
	res := types.ConversionResult{
		InputPath: pdfPath,
		Backend:   c.cfg.Backend,
		StartedAt: c.now(),
	}

	if outputPath == "" {
		outputPath = DefaultOutputPath(pdfPath)
	}
	res.OutputPath = outputPath
	outDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	sum, err := fileSHA256(pdfPath)
	if err != nil {
		return res, err
	}
	res.InputSHA256 = sum

	doc, err := c.open(pdfPath, !c.cfg.DisableImages)
	if err != nil {
		return res, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	closed := false
	defer func() {
		if closed {
			return
		}
		if cerr := doc.Close(); cerr != nil {
			c.log.Warn("closing PDF failed", "path", pdfPath, "error", cerr)
		}
	}()

	res.Pages = doc.NumPages()
	imagesDir := filepath.Join(outDir, imagesDirName)

	var fragments []string
	for i := 0; i < res.Pages; i++ {
		content, err := doc.PageContent(i)
		if err != nil {
			return res, fmt.Errorf("page %d: extracting text: %w", i+1, err)
		}
		if strings.TrimSpace(content.Text) != "" {
			md, err := c.pageMarkdown(content)
			if err != nil {
				return res, fmt.Errorf("page %d: converting to Markdown: %w", i+1, err)
			}
			fragments = append(fragments, fmt.Sprintf(pageFragment, i+1, md))
			res.TextPages++
		}

		if c.cfg.DisableImages {
			continue
		}
		links, err := c.pageImages(doc, i, imagesDir, &res)
		if err != nil {
			return res, err
		}
		fragments = append(fragments, links...)
	}

	body := strings.Join(fragments, "\n")
	res.Headings = len(markdown.Outline([]byte(body)))

	content := body
	if c.cfg.Frontmatter {
		fm, err := frontmatter(res)
		if err != nil {
			return res, err
		}
		content = fm + body
	}

	closed = true
	if err := doc.Close(); err != nil {
		return res, fmt.Errorf("closing PDF %s: %w", pdfPath, err)
	}

	if err := writeFileAtomic(outputPath, []byte(content)); err != nil {
		return res, fmt.Errorf("writing %s: %w", outputPath, err)
	}

	res.Duration = c.now().Sub(res.StartedAt)
	c.log.Debug("converted PDF",
		"input", pdfPath, "output", outputPath,
		"pages", res.Pages, "text_pages", res.TextPages,
		"images", res.Images, "skipped_images", res.SkippedImages,
		"duration", res.Duration)
	return res, nil
}

// pageMarkdown converts one page, preferring the rich-text rendition.
func (c *Converter) pageMarkdown(content pdfdoc.PageContent) (string, error) {
	text, html := content.Text, content.HTML
	if c.cfg.Normalize {
		text, html = markdown.Normalize(text), markdown.Normalize(html)
	}
	if strings.TrimSpace(html) != "" {
		return markdown.FromHTML(html)
	}
	return markdown.FromText(text)
}

// pageImages saves the images of page index and returns their link
// fragments in enumeration order.
func (c *Converter) pageImages(doc Document, index int, imagesDir string, res *types.ConversionResult) ([]string, error) {
	refs, err := doc.PageImages(index)
	if err != nil {
		return nil, fmt.Errorf("page %d: listing images: %w", index+1, err)
	}

	var links []string
	for k, ref := range refs {
		name := fmt.Sprintf("page_%d_img_%d.png", index+1, k+1)
		saved, err := c.saveImage(doc, ref, filepath.Join(imagesDir, name), res)
		if err != nil {
			err = fmt.Errorf("page %d image %d (xref %d): %w", index+1, k+1, ref.XRef, err)
			if !c.cfg.SkipBadImages {
				return nil, err
			}
			c.log.Warn("skipping image", "error", err)
			res.FailedImages++
			continue
		}
		if !saved {
			continue
		}
		links = append(links, fmt.Sprintf(imageFragment, k+1, name))
	}
	return links, nil
}

// saveImage decodes ref and writes it to path as PNG. It reports false
// when the image is left out because of its colour model.
func (c *Converter) saveImage(doc Document, ref pdfdoc.ImageRef, path string, res *types.ConversionResult) (bool, error) {
	pix, err := doc.DecodeImage(ref)
	if err != nil {
		return false, fmt.Errorf("decoding: %w", err)
	}
	defer pix.Release()

	if !pix.Simple() {
		c.log.Debug("skipping image with too many colour channels",
			"page", ref.Page+1, "xref", ref.XRef,
			"channels", pix.Channels, "alpha", pix.Alpha, "colorspace", pix.ColorSpace)
		res.SkippedImages++
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", dir, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("saving: %w", err)
	}
	if err := pix.WritePNG(f); err != nil {
		f.Close()
		return false, fmt.Errorf("saving %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("saving %s: %w", path, err)
	}

	res.Images++
	res.ImagesDir = dir
	return true, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
