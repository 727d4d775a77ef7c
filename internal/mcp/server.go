package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/fuzzidx/internal/async"
	"github.com/Aman-CERP/fuzzidx/internal/config"
	"github.com/Aman-CERP/fuzzidx/pkg/fuzzy"
	"github.com/Aman-CERP/fuzzidx/pkg/version"
)

// Server exposes a fuzzy.Registry as MCP tools and resources.
type Server struct {
	mcp      *mcp.Server
	registry *fuzzy.Registry
	config   *config.Config
	logger   *slog.Logger

	// Background reindex progress, nil when no reindex runs.
	indexProgress *async.IndexProgress

	mu sync.RWMutex
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolFuzzySearch,
		Description: "Approximate text search over indexed owner fields. Ranks owners by shared trigrams, so typos, accents and word order differences still match. Give owner_type and query; field is optional.",
	},
	{
		Name:        ToolReindexOwner,
		Description: "Rebuild the index rows of one owner field after its value changed. Passing an empty text removes the owner from results for that field.",
	},
	{
		Name:        ToolForgetOwner,
		Description: "Remove an owner from the index, for one field or every searchable field of its type. Use when the owner was deleted.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Report searchable fields, stored row counts and the progress of the initial reindex.",
	},
}

// NewServer creates a server over reg. A nil cfg means config.NewConfig().
func NewServer(reg *fuzzy.Registry, cfg *config.Config) (*Server, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		registry: reg,
		config:   cfg,
		logger:   slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    version.Name,
		Version: version.Version,
	}, nil)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// SetIndexProgress attaches the progress of a background reindex. While it
// runs, search results are flagged partial.
func (s *Server) SetIndexProgress(progress *async.IndexProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexProgress = progress
}

func (s *Server) progress() *async.IndexProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexProgress
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Name, version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool with loosely typed arguments, as decoded from a
// JSON-RPC request.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolFuzzySearch:
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleSearch(ctx, in)
	case ToolReindexOwner:
		var in ReindexInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleReindex(ctx, in)
	case ToolForgetOwner:
		var in ForgetInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.handleForget(ctx, in)
	case ToolIndexStatus:
		return s.handleIndexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	if strings.TrimSpace(in.OwnerType) == "" {
		return nil, NewInvalidParamsError("owner_type is required")
	}

	start := time.Now()
	requestID := uuid.NewString()[:8]

	opts := []fuzzy.FindOption{
		fuzzy.WithLimit(in.Limit),
		fuzzy.WithOffset(in.Offset),
		fuzzy.WithMinScore(in.MinScore),
		fuzzy.WithOwnerIDs(in.OwnerIDs...),
	}
	if in.Weighted || s.config.Search.Weighted {
		opts = append(opts, fuzzy.WithWeighted())
	}

	var results []fuzzy.Result
	var err error
	if in.Field == "" {
		results, err = s.registry.Find(ctx, in.OwnerType, in.Query, opts...)
	} else {
		var f *fuzzy.Field
		f, err = s.registry.Field(in.OwnerType, in.Field)
		if err == nil {
			results, err = f.Find(ctx, in.Query, opts...)
		}
	}
	if err != nil {
		s.logger.Warn("tool_search_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	out := &SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput(r))
	}
	if p := s.progress(); p != nil && p.IsIndexing() {
		out.Partial = true
	}

	s.logger.Info("tool_search_complete",
		slog.String("request_id", requestID),
		slog.String("owner_type", in.OwnerType),
		slog.String("field", in.Field),
		slog.Int("results", len(out.Results)),
		slog.Bool("partial", out.Partial),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

func (s *Server) handleReindex(ctx context.Context, in ReindexInput) (*ReindexOutput, error) {
	if in.OwnerType == "" || in.Field == "" || in.OwnerID == "" {
		return nil, NewInvalidParamsError("owner_type, field and owner_id are required")
	}
	f, err := s.registry.Field(in.OwnerType, in.Field)
	if err != nil {
		return nil, MapError(err)
	}
	rows, err := f.Update(ctx, in.OwnerID, in.Text)
	if err != nil {
		return nil, MapError(err)
	}
	return &ReindexOutput{Rows: rows}, nil
}

func (s *Server) handleForget(ctx context.Context, in ForgetInput) (*ForgetOutput, error) {
	if in.OwnerType == "" || in.OwnerID == "" {
		return nil, NewInvalidParamsError("owner_type and owner_id are required")
	}

	var rows int
	var err error
	if in.Field == "" {
		rows, err = s.registry.Forget(ctx, in.OwnerType, in.OwnerID)
	} else {
		var f *fuzzy.Field
		f, err = s.registry.Field(in.OwnerType, in.Field)
		if err == nil {
			rows, err = f.Forget(ctx, in.OwnerID)
		}
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &ForgetOutput{Rows: rows}, nil
}

func (s *Server) fieldNames() []string {
	var names []string
	for _, ownerType := range s.registry.OwnerTypes() {
		for _, field := range s.registry.Fields(ownerType) {
			names = append(names, ownerType+"."+field)
		}
	}
	return names
}

func (s *Server) handleIndexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	stats, err := s.registry.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := &IndexStatusOutput{
		Namespace: s.registry.Namespace(),
		Backend:   stats.Backend,
		Strategy:  s.registry.Strategy(),
		Fields:    s.fieldNames(),
		Stats: IndexStats{
			Rows:       stats.Rows,
			Owners:     stats.Owners,
			OwnerTypes: stats.OwnerTypes,
		},
	}
	if out.Fields == nil {
		out.Fields = []string{}
	}
	if p := s.progress(); p != nil {
		snap := p.Snapshot()
		out.Indexing = &snap
	}
	return out, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpReindexHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpForgetHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.handleSearch(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatMatches(in, out)}},
	}, *out, nil
}

func (s *Server) mcpReindexHandler(ctx context.Context, _ *mcp.CallToolRequest, in ReindexInput) (
	*mcp.CallToolResult,
	ReindexOutput,
	error,
) {
	out, err := s.handleReindex(ctx, in)
	if err != nil {
		return nil, ReindexOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpForgetHandler(ctx context.Context, _ *mcp.CallToolRequest, in ForgetInput) (
	*mcp.CallToolResult,
	ForgetOutput,
	error,
) {
	out, err := s.handleForget(ctx, in)
	if err != nil {
		return nil, ForgetOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.handleIndexStatus(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, *out, nil
}

// Serve runs the server on transport until ctx is done. Only stdio is
// supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
