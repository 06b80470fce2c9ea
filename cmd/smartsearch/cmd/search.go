package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quickkart/smartsearch/internal/config"
	"github.com/quickkart/smartsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	category string
	brand    string
	minPrice float64
	maxPrice float64
	page     int
	pageSize int
	sortBy   string
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed product catalog",
		Long: `Search the indexed product catalog.

The query goes through spell correction, price and entity extraction
and synonym expansion before retrieval, so misspellings and phrases
like "under 30k" work as expected.

Examples:
  smartsearch search "jeins for men"
  smartsearch search "samung phone under 30k"
  smartsearch search "laptop" --sort price_low_high --max-price 50000
  smartsearch search "headphones" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&opts.brand, "brand", "b", "", "Filter by brand")
	cmd.Flags().Float64Var(&opts.minPrice, "min-price", 0, "Minimum price")
	cmd.Flags().Float64Var(&opts.maxPrice, "max-price", 0, "Maximum price")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Result page")
	cmd.Flags().IntVarP(&opts.pageSize, "limit", "n", 10, "Results per page")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "relevance", "Sort order: relevance, price_low_high, price_high_low, rating, newest")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, queryStr string, opts searchOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	searchOpts := search.Options{
		Filters: search.Filters{
			Category: opts.category,
			Brand:    opts.brand,
		},
		Page:     opts.page,
		PageSize: opts.pageSize,
		SortBy:   search.SortBy(opts.sortBy),
	}
	if opts.minPrice > 0 {
		searchOpts.Filters.MinPrice = &opts.minPrice
	}
	if opts.maxPrice > 0 {
		searchOpts.Filters.MaxPrice = &opts.maxPrice
	}

	resp, err := engine.Search(cmd.Context(), queryStr, searchOpts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printTextResults(cmd, resp)
	return nil
}

func printTextResults(cmd *cobra.Command, resp *search.RankedResponse) {
	bold, reset := "", ""
	if isatty.IsTerminal(os.Stdout.Fd()) {
		bold, reset = "\033[1m", "\033[0m"
	}

	if resp.Corrected {
		cmd.Printf("Showing results for %s%s%s\n\n", bold, resp.CorrectedQuery, reset)
	}

	if len(resp.Results) == 0 {
		cmd.Println("No products found.")
		return
	}

	for i, r := range resp.Results {
		p := r.Product
		stock := ""
		if !p.InStock {
			stock = "  [out of stock]"
		}
		cmd.Printf("%2d. %s%s%s  ₹%.0f%s\n", i+1, bold, p.Title, reset, p.Price, stock)
		cmd.Printf("    %s · %s · %.1f★ (%d ratings) · score %.3f\n",
			p.Brand, p.Category, p.Rating, p.NumRatings, r.FinalScore)
	}

	cmd.Printf("\n%d of %d results · strategy: %s · %dms", len(resp.Results), resp.Total, resp.StrategyUsed, resp.TookMs)
	if resp.Degraded {
		cmd.Printf(" · degraded")
	}
	cmd.Println()
}
