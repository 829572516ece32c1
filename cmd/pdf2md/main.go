// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf2md CLI.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// errReported marks errors whose message has already been printed.
var errReported = errors.New("error already reported")

// rootCmd converts a single PDF; history and version are subcommands.
var rootCmd = &cobra.Command{
	Use:   "pdf2md <input.pdf>",
	Short: "Convert a PDF document to Markdown",
	Long: `pdf2md converts a PDF into a Markdown file with one "## Page N" section
per page that has text. Grayscale and RGB images embedded in the document are
saved as PNG files in an images/ directory next to the Markdown file and
linked from the page they appear on.

The output defaults to the input path with a .md extension. Settings can also
come from pdf2md.yaml (in the working directory or ~/.config/pdf2md/) and from
PDF2MD_* environment variables; flags take precedence.`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runConvert,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pdf2md.yaml or ~/.config/pdf2md/pdf2md.yaml)")
	pf.String("history-db", "", "SQLite database recording completed conversions (empty disables)")
	pf.BoolP("verbose", "v", false, "log debug output to stderr")

	f := rootCmd.Flags()
	f.StringP("output", "o", "", "output Markdown file (default: input path with .md extension)")
	f.Bool("disable-image", false, "do not extract images")
	f.String("backend", string(types.DefaultBackend), "text backend: mupdf, tabula, plain, or pdftotext")
	f.Bool("frontmatter", false, "prefix the Markdown with YAML frontmatter describing the conversion")
	f.Bool("skip-bad-images", false, "log and skip images that cannot be decoded instead of failing")
	f.Bool("normalize", false, "apply Unicode NFC normalisation to extracted text")

	bindFlags(map[string]string{
		"history_db":      "history-db",
		"verbose":         "verbose",
		"disable_image":   "disable-image",
		"backend":         "backend",
		"frontmatter":     "frontmatter",
		"skip_bad_images": "skip-bad-images",
		"normalize":       "normalize",
	})
}

// bindFlags ties config keys to the flags that override them.
func bindFlags(keys map[string]string) {
	for key, name := range keys {
		flag := rootCmd.Flags().Lookup(name)
		if flag == nil {
			flag = rootCmd.PersistentFlags().Lookup(name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf2md")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf2md"))
		}
	}

	viper.SetEnvPrefix("PDF2MD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		newLogger(viper.GetViper()).Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

// newLogger returns the stderr logger, at debug level when verbose is set.
func newLogger(v *viper.Viper) *slog.Logger {
	level := slog.LevelWarn
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stdout, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
