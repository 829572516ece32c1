// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2md/internal/pdfdoc"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// fakePage is one page of a fakeDocument.
type fakePage struct {
	content pdfdoc.PageContent
	images  []image.Image // nil entries fail to decode
}

// fakeDocument implements Document for testing.
type fakeDocument struct {
	pages    []fakePage
	closed   int
	closeErr error
	onClose  func()
	textErr  error
	decoded  []*pdfdoc.Pixmap
}

func (f *fakeDocument) NumPages() int { return len(f.pages) }

func (f *fakeDocument) PageContent(index int) (pdfdoc.PageContent, error) {
	if f.textErr != nil {
		return pdfdoc.PageContent{}, f.textErr
	}
	return f.pages[index].content, nil
}

func (f *fakeDocument) PageImages(index int) ([]pdfdoc.ImageRef, error) {
	refs := make([]pdfdoc.ImageRef, len(f.pages[index].images))
	for k := range refs {
		refs[k] = pdfdoc.ImageRef{Page: index, Name: "Im", XRef: 100*(index+1) + k}
	}
	return refs, nil
}

func (f *fakeDocument) DecodeImage(ref pdfdoc.ImageRef) (*pdfdoc.Pixmap, error) {
	img := f.pages[ref.Page].images[ref.XRef%100]
	if img == nil {
		return nil, errors.New("corrupt stream")
	}
	pix := pdfdoc.PixmapFromImage(img)
	pix.XRef = ref.XRef
	f.decoded = append(f.decoded, pix)
	return pix, nil
}

func (f *fakeDocument) Close() error {
	f.closed++
	if f.onClose != nil {
		f.onClose()
	}
	return f.closeErr
}

func text(s string) pdfdoc.PageContent { return pdfdoc.PageContent{Text: s} }

func gray() image.Image { return image.NewGray(image.Rect(0, 0, 2, 2)) }
func rgb() image.Image  { return image.NewNRGBA(image.Rect(0, 0, 2, 2)) }
func cmyk() image.Image { return image.NewCMYK(image.Rect(0, 0, 2, 2)) }

// setup writes a placeholder PDF and returns a converter that serves doc.
func setup(t *testing.T, doc *fakeDocument, cfg types.ConversionConfig) (*Converter, string) {
	t.Helper()
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 placeholder"), 0o644))

	open := func(path string, images bool) (Document, error) {
		assert.Equal(t, pdfPath, path)
		assert.Equal(t, !cfg.DisableImages, images)
		return doc, nil
	}
	c := NewWithOpener(open, cfg, nil)
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c, pdfPath
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestConvert_TextAndImage(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Hello"), images: []image.Image{rgb()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)

	outPath := filepath.Join(filepath.Dir(pdfPath), "report.md")
	assert.Equal(t, outPath, res.OutputPath)
	assert.Equal(t,
		"## Page 1\n\nHello\n\n![Image 1](images/page_1_img_1.png)\n",
		readFile(t, outPath))

	imgPath := filepath.Join(filepath.Dir(pdfPath), "images", "page_1_img_1.png")
	f, err := os.Open(imgPath)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, 1, res.TextPages)
	assert.Equal(t, 1, res.Images)
	assert.Equal(t, 1, res.Headings)
	assert.Equal(t, filepath.Dir(imgPath), res.ImagesDir)
	assert.Len(t, res.InputSHA256, 64)
	assert.Equal(t, 1, doc.closed)
}

func TestConvert_PagesWithoutText(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Intro")},
		{content: text("   \n\t"), images: []image.Image{gray()}},
		{content: text("")},
		{content: text("Outro")},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)

	want := "## Page 1\n\nIntro\n" +
		"\n![Image 1](images/page_2_img_1.png)\n" +
		"\n## Page 4\n\nOutro\n"
	assert.Equal(t, want, readFile(t, res.OutputPath))
	assert.Equal(t, 4, res.Pages)
	assert.Equal(t, 2, res.TextPages)
	assert.Equal(t, 2, res.Headings)
}

func TestConvert_SkipsCMYK(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Figures"), images: []image.Image{cmyk(), gray(), cmyk()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)

	assert.Equal(t,
		"## Page 1\n\nFigures\n\n![Image 2](images/page_1_img_2.png)\n",
		readFile(t, res.OutputPath))
	assert.Equal(t, 1, res.Images)
	assert.Equal(t, 2, res.SkippedImages)

	imagesDir := filepath.Join(filepath.Dir(pdfPath), "images")
	entries, err := os.ReadDir(imagesDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "page_1_img_2.png", entries[0].Name())

	for _, pix := range doc.decoded {
		assert.Error(t, pix.WritePNG(io.Discard), "pixmap %d should be released", pix.XRef)
	}
}

func TestConvert_OnlyUnsavableImagesCreateNoDirectory(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Scan"), images: []image.Image{cmyk()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	assert.False(t, res.HasImages())
	assert.Empty(t, res.ImagesDir)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(pdfPath), "images"))
}

func TestConvert_DisableImages(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Hello"), images: []image.Image{rgb()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{DisableImages: true})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)

	assert.Equal(t, "## Page 1\n\nHello\n", readFile(t, res.OutputPath))
	assert.NoDirExists(t, filepath.Join(filepath.Dir(pdfPath), "images"))
	assert.Empty(t, doc.decoded)
}

func TestConvert_ExplicitOutputPath(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Body"), images: []image.Image{gray()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	out := filepath.Join(t.TempDir(), "nested", "deeper", "out.md")
	res, err := c.Convert(pdfPath, out)
	require.NoError(t, err)

	assert.Equal(t, out, res.OutputPath)
	assert.FileExists(t, out)
	assert.FileExists(t, filepath.Join(filepath.Dir(out), "images", "page_1_img_1.png"))
}

func TestConvert_EmptyDocument(t *testing.T) {
	doc := &fakeDocument{}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	assert.Equal(t, "", readFile(t, res.OutputPath))
	assert.Equal(t, 0, res.Headings)
}

func TestConvert_Idempotent(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Same"), images: []image.Image{gray(), rgb()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	first, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	firstOut := readFile(t, first.OutputPath)

	second, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	assert.Equal(t, firstOut, readFile(t, second.OutputPath))
	assert.Equal(t, 2, doc.closed)

	entries, err := os.ReadDir(filepath.Dir(pdfPath))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temporary file left behind")
	}
}

func TestConvert_HTMLPreferred(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: pdfdoc.PageContent{Text: "Title\nBody", HTML: "<h1>Title</h1><p>Body</p>"}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	assert.Equal(t, "## Page 1\n\n# Title\n\nBody\n", readFile(t, res.OutputPath))
	assert.Equal(t, 2, res.Headings)
}

func TestConvert_Normalize(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Cafe\u0301")},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{Normalize: true})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	assert.Equal(t, "## Page 1\n\nCaf\u00e9\n", readFile(t, res.OutputPath))
}

func TestConvert_Frontmatter(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{content: text("Body"), images: []image.Image{gray()}},
	}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{Backend: types.BackendTabula, Frontmatter: true})

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)

	content := readFile(t, res.OutputPath)
	require.Regexp(t, `^---\n(?s:.*)\n---\n\n## Page 1\n`, content)

	header, _, ok := strings.Cut(strings.TrimPrefix(content, "---\n"), "---\n\n")
	require.True(t, ok)

	var fm frontmatterFields
	require.NoError(t, yaml.Unmarshal([]byte(header), &fm))
	assert.Equal(t, pdfPath, fm.SourcePDF)
	assert.Equal(t, "2026-01-02T03:04:05Z", fm.ConvertedAt)
	assert.Equal(t, types.BackendTabula, fm.Backend)
	assert.Equal(t, 1, fm.Pages)
	assert.Equal(t, 1, fm.Images)
	assert.Equal(t, res.InputSHA256, fm.SHA256)
}

func TestConvert_BadImage(t *testing.T) {
	pages := func() []fakePage {
		return []fakePage{{content: text("Page"), images: []image.Image{gray(), nil, rgb()}}}
	}

	t.Run("aborts by default", func(t *testing.T) {
		doc := &fakeDocument{pages: pages()}
		c, pdfPath := setup(t, doc, types.ConversionConfig{})

		_, err := c.Convert(pdfPath, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page 1 image 2 (xref 101): decoding: corrupt stream")
		assert.NoFileExists(t, DefaultOutputPath(pdfPath))
		assert.Equal(t, 1, doc.closed)
	})

	t.Run("skipped when configured", func(t *testing.T) {
		doc := &fakeDocument{pages: pages()}
		c, pdfPath := setup(t, doc, types.ConversionConfig{SkipBadImages: true})

		res, err := c.Convert(pdfPath, "")
		require.NoError(t, err)
		assert.Equal(t, 1, res.FailedImages)
		assert.Equal(t, 2, res.Images)
		assert.Equal(t,
			"## Page 1\n\nPage\n\n![Image 1](images/page_1_img_1.png)\n\n![Image 3](images/page_1_img_3.png)\n",
			readFile(t, res.OutputPath))
	})
}

func TestConvert_Errors(t *testing.T) {
	t.Run("open failure writes nothing", func(t *testing.T) {
		dir := t.TempDir()
		pdfPath := filepath.Join(dir, "broken.pdf")
		require.NoError(t, os.WriteFile(pdfPath, []byte("junk"), 0o644))

		c := NewWithOpener(func(string, bool) (Document, error) {
			return nil, errors.New("no header")
		}, types.ConversionConfig{}, nil)

		_, err := c.Convert(pdfPath, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening PDF")
		assert.NoFileExists(t, filepath.Join(dir, "broken.md"))
	})

	t.Run("text failure closes document", func(t *testing.T) {
		doc := &fakeDocument{
			pages:   []fakePage{{content: text("x")}},
			textErr: errors.New("bad content stream"),
		}
		c, pdfPath := setup(t, doc, types.ConversionConfig{})

		_, err := c.Convert(pdfPath, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page 1: extracting text")
		assert.Equal(t, 1, doc.closed)
	})

	t.Run("close failure is reported", func(t *testing.T) {
		doc := &fakeDocument{
			pages:    []fakePage{{content: text("x")}},
			closeErr: errors.New("handle leak"),
		}
		c, pdfPath := setup(t, doc, types.ConversionConfig{})

		res, err := c.Convert(pdfPath, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handle leak")
		assert.Equal(t, 1, doc.closed)
		assert.NoFileExists(t, res.OutputPath)
	})

	t.Run("close failure does not mask earlier error", func(t *testing.T) {
		doc := &fakeDocument{
			pages:    []fakePage{{content: text("x")}},
			textErr:  errors.New("bad content stream"),
			closeErr: errors.New("handle leak"),
		}
		c, pdfPath := setup(t, doc, types.ConversionConfig{})

		_, err := c.Convert(pdfPath, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad content stream")
		assert.NotContains(t, err.Error(), "handle leak")
	})

	t.Run("missing input", func(t *testing.T) {
		c := NewWithOpener(func(string, bool) (Document, error) {
			t.Fatal("opener should not be called")
			return nil, nil
		}, types.ConversionConfig{}, nil)

		_, err := c.Convert(filepath.Join(t.TempDir(), "gone.pdf"), "")
		require.Error(t, err)
	})
}

func TestConvert_ClosesBeforeWriting(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{content: text("Hello")}}}
	c, pdfPath := setup(t, doc, types.ConversionConfig{})
	outPath := DefaultOutputPath(pdfPath)

	existedAtClose := true
	doc.onClose = func() {
		_, err := os.Stat(outPath)
		existedAtClose = err == nil
	}

	res, err := c.Convert(pdfPath, "")
	require.NoError(t, err)
	assert.Equal(t, outPath, res.OutputPath)
	assert.False(t, existedAtClose, "document must be closed before the Markdown is written")
	assert.Equal(t, 1, doc.closed)
	assert.FileExists(t, outPath)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	_, err := New(types.ConversionConfig{Backend: "grobid"}, nil)
	require.Error(t, err)

	c, err := New(types.ConversionConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultBackend, c.cfg.Backend)
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "paper.pdf", want: "paper.md"},
		{in: "dir/Paper.PDF", want: "dir/Paper.md"},
		{in: "dir.v2/notes", want: "dir.v2/notes.md"},
		{in: "archive.tar.pdf", want: "archive.tar.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultOutputPath(tt.in), tt.in)
	}
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "a.PDF")
	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(pdf, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "pdf any case", path: pdf},
		{name: "missing", path: filepath.Join(dir, "missing.pdf"), wantErr: ErrInputNotFound},
		{name: "directory", path: dir, wantErr: ErrInputNotFound},
		{name: "wrong extension", path: txt, wantErr: ErrNotPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.path)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}
