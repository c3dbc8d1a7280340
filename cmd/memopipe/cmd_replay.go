package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the pending-write queue into the store",
		Long: `Re-attempts memories that were queued when the store was unavailable.
Successfully written entries are removed from the queue; failures stay for
the next replay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("replay: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			queue := newPendingQueue(logger)
			replayed, err := queue.Replay(ctx, st)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}

			remaining, _ := queue.Len()
			fmt.Printf("Replayed %d queued memories, %d remaining\n", replayed, remaining)
			return nil
		},
	}
}
