// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/convert"
	"github.com/pdiddy/pdf2md/internal/history"
	"github.com/pdiddy/pdf2md/pkg/types"
)

func runConvert(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	v := viper.GetViper()

	cfg, err := conversionConfig(v)
	if err != nil {
		return err
	}
	return convertFile(cmd.OutOrStdout(), newLogger(v), cfg, args[0], output)
}

// conversionConfig builds the conversion settings from config file,
// environment and flags.
func conversionConfig(v *viper.Viper) (types.ConversionConfig, error) {
	backend, err := types.ParseBackend(v.GetString("backend"))
	if err != nil {
		return types.ConversionConfig{}, err
	}
	return types.ConversionConfig{
		Backend:       backend,
		DisableImages: v.GetBool("disable_image"),
		SkipBadImages: v.GetBool("skip_bad_images"),
		Frontmatter:   v.GetBool("frontmatter"),
		Normalize:     v.GetBool("normalize"),
		HistoryDB:     v.GetString("history_db"),
	}, nil
}

// convertFile validates input, converts it and prints the outcome to w.
// Failures are printed and returned as errReported.
func convertFile(w io.Writer, log *slog.Logger, cfg types.ConversionConfig, input, output string) error {
	if err := convert.ValidateInput(input); err != nil {
		switch {
		case errors.Is(err, convert.ErrInputNotFound):
			fmt.Fprintf(w, "Error: PDF file not found: %s\n", input)
		case errors.Is(err, convert.ErrNotPDF):
			fmt.Fprintf(w, "Error: Input file must be a PDF: %s\n", input)
		default:
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		return errReported
	}

	c, err := convert.New(cfg, log)
	if err != nil {
		return err
	}

	res, err := c.Convert(input, output)
	if err != nil {
		fmt.Fprintf(w, "Error during conversion: %v\n", err)
		return errReported
	}

	fmt.Fprintf(w, "Successfully converted PDF to Markdown: %s\n", res.OutputPath)
	if res.HasImages() {
		fmt.Fprintf(w, "Images extracted to: %s\n", res.ImagesDir)
	}

	recordHistory(log, cfg.HistoryDB, res)
	return nil
}

// recordHistory appends res to the history database when one is
// configured. Failures are logged; the conversion itself succeeded.
func recordHistory(log *slog.Logger, path string, res types.ConversionResult) {
	if path == "" {
		return
	}
	store, err := history.Open(path)
	if err != nil {
		log.Warn("history unavailable", "path", path, "error", err)
		return
	}
	defer store.Close()

	if _, err := store.Record(context.Background(), res); err != nil {
		log.Warn("recording history failed", "path", path, "error", err)
	}
}
