// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

var (
	// ErrInputNotFound means the input path does not name a regular file.
	ErrInputNotFound = errors.New("PDF file not found")

	// ErrNotPDF means the input path does not end in ".pdf".
	ErrNotPDF = errors.New("input file must be a PDF")
)

// ValidateInput checks that path names an existing file with a ".pdf"
// extension (any case). It touches nothing on disk.
func ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return nil
}

// frontmatterFields is the YAML header written when frontmatter is on.
type frontmatterFields struct {
	SourcePDF   string            `yaml:"source_pdf"`
	SHA256      string            `yaml:"sha256"`
	ConvertedAt string            `yaml:"converted_at"`
	Backend     types.TextBackend `yaml:"backend"`
	Pages       int               `yaml:"pages"`
	Images      int               `yaml:"images"`
}

// frontmatter renders the YAML header for res, delimiters included.
func frontmatter(res types.ConversionResult) (string, error) {
	out, err := yaml.Marshal(frontmatterFields{
		SourcePDF:   res.InputPath,
		SHA256:      res.InputSHA256,
		ConvertedAt: res.StartedAt.UTC().Format(time.RFC3339),
		Backend:     res.Backend,
		Pages:       res.Pages,
		Images:      res.Images,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling frontmatter: %w", err)
	}
	return "---\n" + string(out) + "---\n\n", nil
}

// writeFileAtomic replaces path with data. The bytes go to a temporary file
// in the same directory, which is then renamed over path, so readers never
// see a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func() { os.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
