package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/lifecycle"
)

func archiveCmd() *cobra.Command {
	var (
		contactID string
		maxAge    time.Duration
		dryRun    bool
		restoreID string
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Tombstone stale chronological memories (or restore one)",
		Long: `Flips chronological memories older than --max-age to archived visibility.
Memories are never physically deleted: archived records stay resolvable by id
so cross-links never dangle. Use --restore to bring one back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("archive: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mgr := lifecycle.NewManager(st, logger)

			if restoreID != "" {
				if err := mgr.Restore(ctx, restoreID); err != nil {
					return fmt.Errorf("archive: %w", err)
				}
				fmt.Printf("Restored memory %s\n", restoreID)
				return nil
			}

			if contactID == "" {
				contactID = cfg.Pipeline.ContactID
			}

			report, err := mgr.Archive(ctx, contactID, maxAge, dryRun)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}

			verb := "tombstoned"
			if dryRun {
				verb = "would tombstone"
			}
			fmt.Printf("Scanned %d chronological memories, %s %d\n", report.Scanned, verb, report.Tombstoned)
			return nil
		},
	}

	cmd.Flags().StringVar(&contactID, "contact", "", "contact whose memories to sweep (default from config)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 90*24*time.Hour, "age beyond which chronological memories are archived")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	cmd.Flags().StringVar(&restoreID, "restore", "", "restore an archived memory by id instead of sweeping")
	return cmd
}
