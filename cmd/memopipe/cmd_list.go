package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/models"
)

func listCmd() *cobra.Command {
	var (
		category        string
		contactID       string
		includeArchived bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories in a category partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			cat := models.Category(category)
			if !cat.IsValid() {
				return fmt.Errorf("list: invalid category %q", category)
			}
			if contactID == "" {
				contactID = cfg.Pipeline.ContactID
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			memories, err := st.ReadPartition(ctx, cat, contactID, includeArchived)
			if err != nil {
				return fmt.Errorf("list: reading partition: %w", err)
			}

			for i, m := range memories {
				marker := ""
				if m.IsTombstoned() {
					marker = " [archived]"
				}
				fmt.Printf("[%d] [%s] imp=%d%s %s\n", i+1, m.Category, m.Importance, marker, truncate(m.Content, 100))
				fmt.Printf("    ID: %s | Confidence: %.2f | Source: %s\n", m.ID, m.Confidence, m.Provenance.Source)
			}

			if len(memories) == 0 {
				fmt.Println("No memories found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", string(models.CategoryGeneral), "category partition to list")
	cmd.Flags().StringVar(&contactID, "contact", "", "contact the memories belong to (default from config)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "include tombstoned memories")
	return cmd
}
