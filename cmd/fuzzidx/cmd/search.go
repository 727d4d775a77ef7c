package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fuzzidx/internal/output"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
)

// searchOptions holds the search command flags.
type searchOptions struct {
	field    string
	limit    int
	offset   int
	weighted bool
	minScore float64
	owners   []string
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search OwnerType <query>",
		Short: "Find owners whose field values resemble a query",
		Long: `Rank owners of one type by the trigrams their field values share with
the query. Without --field every configured field of the type is searched
and scores are summed per owner.`,
		Example: `  fuzzidx search User jon smiht
  fuzzidx search User "zoe" --field name --weighted -n 5
  fuzzidx search Product "usb cable" -f json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.field, "field", "", "Search only this field")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.default_limit)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip the first ranked results")
	cmd.Flags().BoolVar(&opts.weighted, "weighted", false, "Divide shared trigrams by the candidate length")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Drop owners scoring below this value")
	cmd.Flags().StringSliceVar(&opts.owners, "owner", nil, "Restrict to owner IDs (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// searchJSON is the --format json document.
type searchJSON struct {
	Query     string         `json:"query"`
	OwnerType string         `json:"owner_type"`
	Field     string         `json:"field,omitempty"`
	Results   []fuzzy.Result `json:"results"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, ownerType, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (use text or json)", opts.format)
	}

	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openProject(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	findOpts := []fuzzy.FindOption{
		fuzzy.WithLimit(opts.limit),
		fuzzy.WithOffset(opts.offset),
		fuzzy.WithMinScore(opts.minScore),
		fuzzy.WithOwnerIDs(opts.owners...),
	}
	if opts.weighted || cfg.Search.Weighted {
		findOpts = append(findOpts, fuzzy.WithWeighted())
	}

	var results []fuzzy.Result
	if opts.field == "" {
		results, err = p.reg.Find(ctx, ownerType, query, findOpts...)
	} else {
		f, ferr := p.reg.Field(ownerType, opts.field)
		if ferr != nil {
			return ferr
		}
		results, err = f.Find(ctx, query, findOpts...)
	}
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(searchJSON{
			Query:     query,
			OwnerType: ownerType,
			Field:     opts.field,
			Results:   results,
		})
	}

	target := ownerType
	if opts.field != "" {
		target += "." + opts.field
	}
	out := output.New(cmd.OutOrStdout())
	out.Header(fmt.Sprintf("Matches for %q in %s", query, target))
	matches := make([]output.Match, len(results))
	for i, r := range results {
		matches[i] = output.Match(r)
	}
	out.Matches(matches)
	return nil
}
