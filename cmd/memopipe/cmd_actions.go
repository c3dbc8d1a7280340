package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/models"
)

func actionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List and update extracted action items",
	}
	cmd.AddCommand(actionsListCmd(), actionsUpdateCmd())
	return cmd
}

func actionsListCmd() *cobra.Command {
	var (
		contactID string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List action items across action-item memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if contactID == "" {
				contactID = cfg.Pipeline.ContactID
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("actions: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			memories, err := st.ReadPartition(ctx, models.CategoryActionItems, contactID, false)
			if err != nil {
				return fmt.Errorf("actions: reading partition: %w", err)
			}

			count := 0
			for _, m := range memories {
				for _, a := range m.ActionItems {
					if status != "" && string(a.Status) != status {
						continue
					}
					count++
					line := fmt.Sprintf("[%s/%s] %s", a.Priority, a.Status, truncate(a.Title, 80))
					if a.Assignee != "" {
						line += " @" + a.Assignee
					}
					if a.DueText != "" {
						line += " (due " + a.DueText + ")"
					}
					fmt.Println(line)
					fmt.Printf("    action: %s | memory: %s\n", a.ID, m.ID)
				}
			}

			if count == 0 {
				fmt.Println("No action items found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contactID, "contact", "", "contact the actions belong to (default from config)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, in_progress, completed, cancelled)")
	return cmd
}

func actionsUpdateCmd() *cobra.Command {
	var (
		memoryID string
		actionID string
		status   string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Transition an action item to a new status",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("actions: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mem, err := st.Get(ctx, memoryID)
			if err != nil {
				return fmt.Errorf("actions: %w", err)
			}

			found := false
			for i := range mem.ActionItems {
				if mem.ActionItems[i].ID != actionID {
					continue
				}
				found = true
				if err := mem.ActionItems[i].Transition(models.ActionStatus(status)); err != nil {
					return fmt.Errorf("actions: %w", err)
				}
				break
			}
			if !found {
				return fmt.Errorf("actions: no action item %s in memory %s", actionID, memoryID)
			}

			if err := st.Write(ctx, *mem); err != nil {
				return fmt.Errorf("actions: persisting update: %w", err)
			}

			fmt.Printf("Action %s is now %s\n", actionID, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&memoryID, "memory", "", "memory the action item belongs to")
	cmd.Flags().StringVar(&actionID, "action", "", "action item id")
	cmd.Flags().StringVar(&status, "status", "", "target status")
	_ = cmd.MarkFlagRequired("memory")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
