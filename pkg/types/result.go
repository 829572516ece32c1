// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionResult describes a completed conversion.
type ConversionResult struct {
	// InputPath is the PDF that was converted.
	InputPath string `json:"input_path" yaml:"input_path"`

	// InputSHA256 is the hex digest of the input file contents.
	InputSHA256 string `json:"input_sha256" yaml:"input_sha256"`

	// OutputPath is the Markdown file that was written.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// ImagesDir is the directory holding extracted images. Empty when no
	// image was written.
	ImagesDir string `json:"images_dir,omitempty" yaml:"images_dir,omitempty"`

	Backend TextBackend `json:"backend" yaml:"backend"`

	// Pages is the page count of the document; TextPages counts the pages
	// that produced a "## Page N" section.
	Pages     int `json:"pages" yaml:"pages"`
	TextPages int `json:"text_pages" yaml:"text_pages"`

	// Images counts PNG files written. SkippedImages counts images left out
	// because of their colour model; FailedImages counts images dropped
	// after a decode or save error when SkipBadImages is set.
	Images        int `json:"images" yaml:"images"`
	SkippedImages int `json:"skipped_images" yaml:"skipped_images"`
	FailedImages  int `json:"failed_images" yaml:"failed_images"`

	// Headings is the number of Markdown headings in the written document.
	Headings int `json:"headings" yaml:"headings"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// HasImages reports whether at least one image file was written.
func (r ConversionResult) HasImages() bool {
	return r.Images > 0
}
