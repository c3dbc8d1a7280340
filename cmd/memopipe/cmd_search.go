package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/search"
)

func searchCmd() *cobra.Command {
	var (
		contactID   string
		categories  []string
		maxSecurity int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Keyword search over stored memories with multi-factor ranking",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			query := strings.Join(args, " ")
			if contactID == "" {
				contactID = cfg.Pipeline.ContactID
			}

			var cats []models.Category
			for _, c := range categories {
				cat := models.Category(c)
				if !cat.IsValid() {
					return fmt.Errorf("search: invalid category %q", c)
				}
				cats = append(cats, cat)
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("search: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			results, err := search.New(st, search.DefaultWeights(), logger).
				Search(ctx, contactID, query, cats, maxSecurity, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			for i, r := range results {
				fmt.Printf("[%d] score=%.3f [%s] %s\n", i+1, r.FinalScore, r.Memory.Category, truncate(r.Memory.Content, 100))
				fmt.Printf("    ID: %s | term=%.2f recency=%.2f importance=%.2f\n",
					r.Memory.ID, r.TermScore, r.RecencyScore, r.ImportScore)
			}

			if len(results) == 0 {
				fmt.Println("No matching memories.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contactID, "contact", "", "contact to search (default from config)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to categories (default all under the security cap)")
	cmd.Flags().IntVar(&maxSecurity, "max-security", 2, "highest security level (1-5) to include")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	return cmd
}
