// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/internal/pdftest"
	"github.com/pdiddy/pdf2md/pkg/types"
)

func writeTwoPagePDF(t *testing.T) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), "doc.pdf",
		pdftest.Page{Text: "Hello"},
		pdftest.Page{},
	)
}

func TestOpen_TextBackends(t *testing.T) {
	path := writeTwoPagePDF(t)

	for _, backend := range []types.TextBackend{types.BackendMuPDF, types.BackendTabula, types.BackendPlain} {
		t.Run(string(backend), func(t *testing.T) {
			doc, err := Open(path, Options{Backend: backend})
			require.NoError(t, err)
			defer doc.Close()

			assert.Equal(t, backend, doc.Backend())
			assert.Equal(t, path, doc.Path())
			require.Equal(t, 2, doc.NumPages())

			first, err := doc.PageContent(0)
			require.NoError(t, err)
			assert.Contains(t, first.Text, "Hello")

			second, err := doc.PageContent(1)
			require.NoError(t, err)
			assert.Empty(t, strings.TrimSpace(second.Text))
			assert.Empty(t, second.HTML)
		})
	}
}

func TestPageContent_PagesWithoutText(t *testing.T) {
	photo := image.NewGray(image.Rect(0, 0, 4, 4))
	path := pdftest.Write(t, t.TempDir(), "blank.pdf",
		pdftest.Page{},
		pdftest.Page{Images: []pdftest.Image{pdftest.JPEG(t, photo, "/DeviceGray")}},
		pdftest.Page{Text: "Last"},
	)

	for _, backend := range []types.TextBackend{types.BackendMuPDF, types.BackendTabula, types.BackendPlain} {
		t.Run(string(backend), func(t *testing.T) {
			doc, err := Open(path, Options{Backend: backend, Images: true})
			require.NoError(t, err)
			defer doc.Close()

			for index := 0; index < 2; index++ {
				content, err := doc.PageContent(index)
				require.NoError(t, err, "page %d", index+1)
				assert.Empty(t, strings.TrimSpace(content.Text), "page %d", index+1)
			}

			last, err := doc.PageContent(2)
			require.NoError(t, err)
			assert.Contains(t, last.Text, "Last")

			refs, err := doc.PageImages(1)
			require.NoError(t, err)
			require.Len(t, refs, 1)
			pix, err := doc.DecodeImage(refs[0])
			require.NoError(t, err)
			assert.Equal(t, 1, pix.Channels)
		})
	}
}

func TestOpen_MuPDFProvidesHTML(t *testing.T) {
	doc, err := Open(writeTwoPagePDF(t), Options{Backend: types.BackendMuPDF})
	require.NoError(t, err)
	defer doc.Close()

	content, err := doc.PageContent(0)
	require.NoError(t, err)
	assert.Contains(t, content.HTML, "Hello")
	assert.NotContains(t, content.HTML, "data:image")
}

func TestOpen_DefaultBackend(t *testing.T) {
	doc, err := Open(writeTwoPagePDF(t), Options{})
	require.NoError(t, err)
	defer doc.Close()
	assert.Equal(t, types.DefaultBackend, doc.Backend())
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a pdf"), 0o644))

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(garbage, Options{Backend: "grobid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown backend")
	})

	t.Run("corrupt file", func(t *testing.T) {
		_, err := Open(garbage, Options{Backend: types.BackendTabula})
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "missing.pdf"), Options{Backend: types.BackendTabula, Images: true})
		require.Error(t, err)
	})
}

func TestPageContent_OutOfRange(t *testing.T) {
	doc, err := Open(writeTwoPagePDF(t), Options{Backend: types.BackendTabula})
	require.NoError(t, err)
	defer doc.Close()

	_, err = doc.PageContent(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = doc.PageContent(-1)
	require.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	doc, err := Open(writeTwoPagePDF(t), Options{Backend: types.BackendPlain, Images: true})
	require.NoError(t, err)

	require.NoError(t, doc.Close())
	require.NoError(t, doc.Close())
}

func TestPageImages_RequiresImageSupport(t *testing.T) {
	doc, err := Open(writeTwoPagePDF(t), Options{Backend: types.BackendPlain})
	require.NoError(t, err)
	defer doc.Close()

	_, err = doc.PageImages(0)
	assert.True(t, errors.Is(err, ErrImagesDisabled))

	_, err = doc.DecodeImage(ImageRef{XRef: 5})
	assert.True(t, errors.Is(err, ErrImagesDisabled))
}

// fakeExecutor implements executor for testing the pdftotext backend.
type fakeExecutor struct {
	missing map[string]bool
	outputs map[string]string // keyed by the joined command line
	calls   []string
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	if f.missing[file] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeExecutor) Output(name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	out, ok := f.outputs[line]
	if !ok {
		return nil, errors.New("unexpected command: " + line)
	}
	return []byte(out), nil
}

func TestPdftotextBackend(t *testing.T) {
	ex := &fakeExecutor{
		outputs: map[string]string{
			"pdfinfo doc.pdf": "Title:          Example\nPages:          2\nEncrypted:      no\n",
			"pdftotext -f 1 -l 1 -enc UTF-8 -q doc.pdf -": "Hello\n\f",
			"pdftotext -f 2 -l 2 -enc UTF-8 -q doc.pdf -": "\f",
		},
	}

	doc, err := Open("doc.pdf", Options{Backend: types.BackendPdftotext, exec: ex})
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.NumPages())

	first, err := doc.PageContent(0)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", first.Text)

	second, err := doc.PageContent(1)
	require.NoError(t, err)
	assert.Empty(t, second.Text)

	assert.Len(t, ex.calls, 3)
}

func TestPdftotextBackend_MissingBinary(t *testing.T) {
	ex := &fakeExecutor{missing: map[string]bool{"pdfinfo": true}}

	_, err := Open("doc.pdf", Options{Backend: types.BackendPdftotext, exec: ex})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdfinfo not found")
}

func TestParsePageCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "typical output", input: "Producer: x\nPages:           12\nPage size: 612 x 792 pts\n", want: 12},
		{name: "no pages line", input: "Producer: x\n", wantErr: true},
		{name: "garbled count", input: "Pages: many\n", wantErr: true},
		{name: "page size line is not a count", input: "Page size: 1\nPages: 3\n", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageCount([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
