package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tessaro/memopipe/internal/audit"
	memomcp "github.com/tessaro/memopipe/internal/mcp"
	"github.com/tessaro/memopipe/internal/search"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  capture     — run text through the extraction pipeline
  search      — keyword search with multi-factor ranking
  get_memory  — retrieve a memory by id
  archive     — tombstone a memory by id
  stats       — collection statistics

If the store is unavailable at startup the server still starts; individual
tool calls will return MCP error responses on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			st, storeErr := newStore(logger)
			if storeErr != nil {
				// Continue with a nil store so tool calls fail per-call
				// instead of crashing the host.
				logger.Error("mcp: failed to open store; tool calls requiring storage will fail",
					"error", storeErr)
			} else {
				defer func() { _ = st.Close() }()
			}

			notifier := audit.NewNotifier(cfg.Pipeline.AuditBuffer, logger)
			defer notifier.Close()
			go func() {
				for e := range notifier.Events() {
					logger.Info("audit: memory recorded",
						"memory_id", e.MemoryID, "category", e.Category,
						"importance", e.Importance, "merged", e.Merged, "queued", e.Queued)
				}
			}()

			var srv *memomcp.Server
			if st != nil {
				pipe, err := newPipeline(st, notifier, logger)
				if err != nil {
					return err
				}
				searcher := search.New(st, search.DefaultWeights(), logger)
				srv = memomcp.NewServer(pipe, searcher, st, cfg.Pipeline.ContactID, logger)
			} else {
				srv = memomcp.NewServer(nil, nil, nil, cfg.Pipeline.ContactID, logger)
			}

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: memopipe MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
