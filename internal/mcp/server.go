// Package mcp implements the Model Context Protocol server for memopipe.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/pipeline"
	"github.com/tessaro/memopipe/internal/search"
	"github.com/tessaro/memopipe/internal/store"
)

// defaultSearchLimit is the default number of results for search.
const defaultSearchLimit = 10

// Server wraps an MCPServer with memopipe dependencies.
type Server struct {
	mcp       *mcpserver.MCPServer
	pipe      *pipeline.Pipeline
	searcher  *search.Searcher
	st        store.Store
	contactID string
	logger    *slog.Logger
}

// NewServer creates a new MCP server. If pipe or st are nil, the
// corresponding tool calls return an error response instead of panicking.
func NewServer(pipe *pipeline.Pipeline, searcher *search.Searcher, st store.Store, contactID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipe:      pipe,
		searcher:  searcher,
		st:        st,
		contactID: contactID,
		logger:    logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"memopipe",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildCaptureTool(), s.handleCapture)
	mcpSrv.AddTool(buildSearchTool(), s.handleSearch)
	mcpSrv.AddTool(buildGetMemoryTool(), s.handleGetMemory)
	mcpSrv.AddTool(buildArchiveTool(), s.handleArchive)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleCapture is the exported handler for the "capture" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleCapture(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleCapture(ctx, req)
}

// HandleSearch is the exported handler for the "search" tool.
func (s *Server) HandleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSearch(ctx, req)
}

// HandleGetMemory is the exported handler for the "get_memory" tool.
func (s *Server) HandleGetMemory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleGetMemory(ctx, req)
}

// HandleArchive is the exported handler for the "archive" tool.
func (s *Server) HandleArchive(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleArchive(ctx, req)
}

// HandleStats is the exported handler for the "stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// --- tool definitions ---

func buildCaptureTool() mcpgo.Tool {
	return mcpgo.NewTool("capture",
		mcpgo.WithDescription("Run text through the memory extraction pipeline: classify, extract entities and action items, deduplicate and persist."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The utterance text to process"),
		),
		mcpgo.WithString("speaker",
			mcpgo.Description("Who said it"),
		),
		mcpgo.WithString("conversation_id",
			mcpgo.Description("Conversation the utterance belongs to"),
		),
	)
}

func buildSearchTool() mcpgo.Tool {
	return mcpgo.NewTool("search",
		mcpgo.WithDescription("Keyword search over stored memories with multi-factor ranking. Secret-tier categories are excluded unless max_security raises the cap."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("The query to search for"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results (default: 10)"),
		),
		mcpgo.WithNumber("max_security",
			mcpgo.Description("Highest security level (1-5) to include (default: 2)"),
		),
	)
}

func buildGetMemoryTool() mcpgo.Tool {
	return mcpgo.NewTool("get_memory",
		mcpgo.WithDescription("Retrieve a single memory by id."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The id of the memory"),
		),
	)
}

func buildArchiveTool() mcpgo.Tool {
	return mcpgo.NewTool("archive",
		mcpgo.WithDescription("Tombstone a memory by id. Memories are never deleted, only archived."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The id of the memory to archive"),
		),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("stats",
		mcpgo.WithDescription("Get collection statistics: total memories, breakdown by category, tombstone count."),
	)
}

// --- tool handlers ---

// handleCapture runs one utterance through the pipeline.
func (s *Server) handleCapture(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.pipe == nil {
		return mcpgo.NewToolResultError("pipeline is unavailable"), nil
	}

	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcpgo.NewToolResultError("text is required and must not be empty"), nil
	}

	utterance := models.Utterance{
		ID:             uuid.New().String(),
		Text:           text,
		Speaker:        req.GetString("speaker", ""),
		Timestamp:      time.Now().UTC(),
		ConversationID: req.GetString("conversation_id", ""),
	}

	result, err := s.pipe.Process(ctx, pipeline.Request{
		Utterances: []models.Utterance{utterance},
		Context:    models.ConversationContext{ConversationID: utterance.ConversationID},
		Source:     "mcp",
		ContactID:  s.contactID,
	})
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return mcpgo.NewToolResultErrorf("memory rejected: %s", verr.Error()), nil
		}
		return mcpgo.NewToolResultErrorf("processing failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: capture recorded memory",
		"id", result.MemoryID, "category", result.Memory.Category, "queued", result.Queued)

	return toolResultJSON(map[string]any{
		"memory_id":  result.MemoryID,
		"category":   result.Memory.Category,
		"importance": result.Memory.Importance,
		"stored":     result.Stored,
		"queued":     result.Queued,
		"merged":     result.Merged,
	})
}

// handleSearch performs a keyword search and returns scored results.
func (s *Server) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.searcher == nil {
		return mcpgo.NewToolResultError("searcher is unavailable"), nil
	}

	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}

	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	maxSecurity := req.GetInt("max_security", 2)
	if maxSecurity < 1 || maxSecurity > 5 {
		return mcpgo.NewToolResultError("max_security must be between 1 and 5"), nil
	}

	results, err := s.searcher.Search(ctx, s.contactID, query, nil, maxSecurity, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("search failed: %s", err.Error()), nil
	}

	return toolResultJSON(map[string]any{"results": results})
}

// handleGetMemory retrieves a memory by id.
func (s *Server) handleGetMemory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	mem, err := s.st.Get(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get failed: %s", err.Error()), nil
	}
	return toolResultJSON(mem)
}

// handleArchive tombstones a memory by id.
func (s *Server) handleArchive(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	if err := s.st.SetVisibility(ctx, id, models.VisibilityArchived); err != nil {
		return mcpgo.NewToolResultErrorf("archive failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: archived memory", "id", id)
	return toolResultJSON(map[string]any{"archived": true})
}

// handleStats returns collection statistics.
func (s *Server) handleStats(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	stats, err := s.st.Stats(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}
