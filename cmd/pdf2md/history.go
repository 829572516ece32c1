// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversions",
	Long: `History lists conversions recorded in the SQLite database named by
--history-db (or history_db in the config file), most recent first.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", history.DefaultLimit, "maximum number of entries to list")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("history_db")
	if path == "" {
		return fmt.Errorf("no history database configured: set --history-db or history_db")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}
	return formatHistory(cmd.OutOrStdout(), entries, jsonOutput)
}

func formatHistory(w io.Writer, entries []history.Entry, jsonOutput bool) error {
	if jsonOutput {
		if entries == nil {
			entries = []history.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-20s  %-40s  %-9s  %5s  %6s  %8s\n",
		"ID", "Started", "Input", "Backend", "Pages", "Images", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 104))

	for _, e := range entries {
		input := e.InputPath
		if len(input) > 40 {
			input = "..." + input[len(input)-37:]
		}
		fmt.Fprintf(w, "%-4d  %-20s  %-40s  %-9s  %5d  %6d  %8s\n",
			e.ID, e.StartedAt.Local().Format("2006-01-02 15:04:05"), input, e.Backend,
			e.Pages, e.Images, e.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "\n%d conversions\n", len(entries))
	return nil
}
