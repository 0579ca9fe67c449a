package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nichesupply/listingsearch/pkg/client"
)

// Command flags
var (
	searchFilters []string
	searchNot     []string
	searchLimit   int
	searchBypass  bool
	searchDebug   bool
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank listings against a free-text query",
	Long: `Run one ranking query against the sidecar.

Metadata filters combine with AND:

  searchctl search "copper pipe" --filter listing_type=supply --not status=inactive

Values that look like numbers or booleans are sent as such; everything
else is sent as a string.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "equality filter key=value (repeatable)")
	searchCmd.Flags().StringArrayVar(&searchNot, "not", nil, "exclusion filter key=value (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (0 = service default)")
	searchCmd.Flags().BoolVar(&searchBypass, "bypass-cutoff", false, "skip the relevance cutoff, return the full candidate set")
	searchCmd.Flags().BoolVar(&searchDebug, "debug", false, "include ranking internals")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output raw JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters, err := buildFilters(searchFilters, searchNot)
	if err != nil {
		return err
	}
	c, err := newSearchClient()
	if err != nil {
		return err
	}

	var opts []client.SearchOption
	if searchDebug {
		opts = append(opts, client.WithDebug())
	}
	if searchBypass {
		opts = append(opts, client.WithBypassCutoff())
	}

	resp, err := c.Search(context.Background(), client.SearchRequest{
		Query:   args[0],
		Filters: filters,
		Limit:   searchLimit,
	}, opts...)
	if err != nil {
		return err
	}

	if searchJSON {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PK\tDISTANCE")
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%v\t%.4f\n", r.PK, r.Distance)
		}
		w.Flush()
	}

	if resp.Debug != nil {
		fmt.Printf("\nRaw candidates: %d\n", resp.Debug.RawCount)
		if resp.Debug.BypassCutoff {
			fmt.Println("Cutoff: bypassed")
		} else if resp.Debug.KeepCount != nil {
			fmt.Printf("Cutoff kept: %d\n", *resp.Debug.KeepCount)
		}
	}
	return nil
}

// buildFilters turns repeated key=value flags into the wire filter shape:
// nothing, a single implicit clause, or an $and of $eq/$ne clauses.
func buildFilters(eq, ne []string) (map[string]any, error) {
	clauses := make([]any, 0, len(eq)+len(ne))
	for _, kv := range eq {
		k, v, err := splitKV(kv)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, map[string]any{k: map[string]any{"$eq": v}})
	}
	for _, kv := range ne {
		k, v, err := splitKV(kv)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, map[string]any{k: map[string]any{"$ne": v}})
	}

	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0].(map[string]any), nil
	default:
		return map[string]any{"$and": clauses}, nil
	}
}

func splitKV(kv string) (string, any, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", nil, fmt.Errorf("filter %q is not key=value", kv)
	}
	return k, coerceScalar(v), nil
}

// coerceScalar keeps CLI filter values type-compatible with what the
// marketplace indexes: digits become numbers, true/false become bools.
func coerceScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}
