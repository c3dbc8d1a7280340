package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify text into a sensitivity category without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}

			cls := newClassifier(logger).Classify(cmd.Context(), text, nil)

			fmt.Printf("Category:   %s (security level %d)\n", cls.Category, cls.SecurityLevel)
			fmt.Printf("Confidence: %.2f\n", cls.Confidence)
			fmt.Printf("Reasoning:  %s\n", cls.Reasoning)
			if len(cls.Tags) > 0 {
				fmt.Printf("Tags:       %s\n", strings.Join(cls.Tags, ", "))
			}
			return nil
		},
	}
	return cmd
}
