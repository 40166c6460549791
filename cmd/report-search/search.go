package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search imported reports",
	Long: `Runs a query-string search over id, title and body and prints up to ten
matching reports, best first. Supports phrases ("..."), field scoping
(title:...), required and excluded terms (+term, -term) and fuzzy terms (term~).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	records, err := engine.Search(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if searchJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(out, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(out, "   ID: %s\n", r.Key())
		if r.Substance != "" {
			fmt.Fprintf(out, "   Substance: %s\n", r.Substance)
		}
		if r.Author != "" {
			fmt.Fprintf(out, "   Author: %s\n", r.Author)
		}
		fmt.Fprintln(out)
	}
	return nil
}
