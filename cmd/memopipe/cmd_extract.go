package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/extractor"
	"github.com/tessaro/memopipe/internal/models"
)

func extractCmd() *cobra.Command {
	var speaker string

	cmd := &cobra.Command{
		Use:   "extract [text...]",
		Short: "Extract entities and action items from text without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}

			entities, actions := extractor.New(logger).Extract([]models.Utterance{{
				ID:        uuid.New().String(),
				Text:      text,
				Speaker:   speaker,
				Timestamp: time.Now().UTC(),
			}})

			fmt.Printf("Entities: %d\n", len(entities))
			for _, e := range entities {
				fmt.Printf("  [%s] %s (canonical: %s, confidence: %.2f)\n",
					e.Type, e.RawValue, e.CanonicalName, e.Confidence)
			}

			fmt.Printf("Action items: %d\n", len(actions))
			for _, a := range actions {
				line := fmt.Sprintf("  [%s] %s", a.Priority, a.Title)
				if a.Assignee != "" {
					line += " @" + a.Assignee
				}
				if a.DueText != "" {
					line += " (due " + a.DueText + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&speaker, "speaker", "", "who said it")
	return cmd
}
