package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/pipeline"
)

func processCmd() *cobra.Command {
	var (
		speaker        string
		conversationID string
		contactID      string
		fromStdin      bool
	)

	cmd := &cobra.Command{
		Use:   "process [text...]",
		Short: "Run an utterance batch through the extraction pipeline",
		Long: `Classifies the text, extracts entities and action items, composes a memory
record and persists it with dedupe and cross-linking. With --stdin each input
line becomes one utterance in the batch; otherwise the arguments are joined
into a single utterance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			utterances, err := readUtterances(args, speaker, conversationID, fromStdin)
			if err != nil {
				return err
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("process: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			pipe, err := newPipeline(st, nil, logger)
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}

			if contactID == "" {
				contactID = cfg.Pipeline.ContactID
			}

			result, err := pipe.Process(ctx, pipeline.Request{
				Utterances: utterances,
				Context:    models.ConversationContext{ConversationID: conversationID},
				Source:     cfg.Pipeline.Source,
				ContactID:  contactID,
			})
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}

			fmt.Printf("Memory %s [%s] importance=%d confidence=%.2f\n",
				result.MemoryID, result.Memory.Category, result.Memory.Importance, result.Memory.Confidence)
			fmt.Printf("  %s\n", truncate(result.Memory.Summary, 100))
			if result.Merged {
				fmt.Printf("  merged into existing memory %s\n", result.MergedID)
			}
			if result.Queued {
				fmt.Println("  store unavailable; queued to the pending-write log")
			}
			for _, a := range result.Memory.ActionItems {
				fmt.Printf("  action [%s/%s] %s\n", a.Priority, a.Status, truncate(a.Title, 80))
			}
			if len(result.Relations) > 0 {
				fmt.Printf("  linked to %d related memories\n", len(result.Relations))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&speaker, "speaker", "", "who said it")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "conversation identifier")
	cmd.Flags().StringVar(&contactID, "contact", "", "contact the memory belongs to (default from config)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read utterances from stdin, one per line")
	return cmd
}

// readUtterances builds the utterance batch from args or stdin.
func readUtterances(args []string, speaker, conversationID string, fromStdin bool) ([]models.Utterance, error) {
	now := time.Now().UTC()

	if fromStdin {
		var out []models.Utterance
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			out = append(out, models.Utterance{
				ID:             uuid.New().String(),
				Text:           line,
				Speaker:        speaker,
				Timestamp:      now,
				ConversationID: conversationID,
			})
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no utterances read from stdin")
		}
		return out, nil
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return nil, fmt.Errorf("text is required (pass as arguments or use --stdin)")
	}
	return []models.Utterance{{
		ID:             uuid.New().String(),
		Text:           text,
		Speaker:        speaker,
		Timestamp:      now,
		ConversationID: conversationID,
	}}, nil
}
