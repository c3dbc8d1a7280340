package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("stats: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: fetching statistics: %w", err)
			}

			pending, err := newPendingQueue(logger).Len()
			if err != nil {
				logger.Warn("stats: reading pending queue", "error", err)
			}

			fmt.Printf("Total memories: %d\n\n", stats.TotalMemories)

			fmt.Println("By category:")
			for c, n := range stats.ByCategory {
				fmt.Printf("  %-14s %d\n", c, n)
			}

			fmt.Printf("\nTombstoned:     %d\n", stats.Tombstoned)
			fmt.Printf("Pending writes: %d\n", pending)
			return nil
		},
	}
}
