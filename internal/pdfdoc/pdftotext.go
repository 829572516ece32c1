// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	binPdftotext = "pdftotext"
	binPdfinfo   = "pdfinfo"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Output(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).Output()
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
	}
	return out, err
}

// pdftotextSource shells out to poppler-utils, one pdftotext call per page.
type pdftotextSource struct {
	path  string
	exec  executor
	pages int
}

func openPdftotext(path string, ex executor) (*pdftotextSource, error) {
	for _, bin := range []string{binPdftotext, binPdfinfo} {
		if _, err := ex.LookPath(bin); err != nil {
			return nil, fmt.Errorf("%s not found on PATH (install poppler-utils): %w", bin, err)
		}
	}

	out, err := ex.Output(binPdfinfo, path)
	if err != nil {
		return nil, fmt.Errorf("running %s on %s: %w", binPdfinfo, path, err)
	}
	pages, err := parsePageCount(out)
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", binPdfinfo, err)
	}

	return &pdftotextSource{path: path, exec: ex, pages: pages}, nil
}

func (p *pdftotextSource) numPages() (int, error) {
	return p.pages, nil
}

func (p *pdftotextSource) pageContent(index int) (PageContent, error) {
	n := strconv.Itoa(index + 1)
	out, err := p.exec.Output(binPdftotext, "-f", n, "-l", n, "-enc", "UTF-8", "-q", p.path, "-")
	if err != nil {
		return PageContent{}, fmt.Errorf("running %s: %w", binPdftotext, err)
	}
	// pdftotext terminates every page with a form feed.
	text := strings.TrimRight(string(out), "\f")
	return PageContent{Text: text}, nil
}

func (p *pdftotextSource) close() error { return nil }

// parsePageCount finds the "Pages:" line in pdfinfo output.
func parsePageCount(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("invalid page count %q: %w", strings.TrimSpace(value), err)
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no Pages line found")
}
