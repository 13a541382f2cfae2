// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes archive tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/archiveservice"
)

// LayoutURI is the resource URI of the archive layout document.
const LayoutURI = "archivist://layout"

// Server wraps the MCP server with archive tools.
type Server struct {
	mcp *server.MCPServer
	svc *archiveservice.Service
}

// New creates a new MCP server with all archive tools registered.
func New(svc *archiveservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Archivist",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("lookup_processed",
		mcp.WithDescription("Find where a photo was archived, by its original absolute source path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path the photo had before it was organized")),
	), s.lookupProcessed)

	s.mcp.AddTool(mcp.NewTool("recent_processed",
		mcp.WithDescription("List the most recently archived photos, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.recentProcessed)

	s.mcp.AddTool(mcp.NewTool("archive_status",
		mcp.WithDescription("Archive root, ledger size and the counters of the last organize run."),
	), s.archiveStatus)

	s.mcp.AddTool(mcp.NewTool("organize_preview",
		mcp.WithDescription("Resolve where a single file would be archived without touching it. "+
			"Reports a skip reason (unsupported_extension, already_processed, already_in_archive, "+
			"no_timestamp_available, duplicate) when it would not be moved."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the file to preview")),
	), s.organizePreview)

	s.mcp.AddTool(mcp.NewTool("compare_drives",
		mcp.WithDescription("Compare two backup drives by their indexes. Drives without an index are scanned first, which can take a while."),
		mcp.WithString("drive_a", mcp.Required(), mcp.Description("Mount path of drive A")),
		mcp.WithString("drive_b", mcp.Required(), mcp.Description("Mount path of drive B")),
		mcp.WithBoolean("rescan", mcp.Description("Rescan both drives before comparing")),
	), s.compareDrives)

	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Archive Layout",
			mcp.WithResourceDescription("How archive paths, suffixes and drive indexes are structured."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) lookupProcessed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Lookup(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not in ledger: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entry)
}

func (s *Server) recentProcessed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.Recent(ctx, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("ledger is empty"), nil
	}
	return jsonResult(entries)
}

func (s *Server) archiveStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) organizePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := s.svc.Preview(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if o.Err != nil {
		return mcp.NewToolResultError(o.Reason), nil
	}
	return jsonResult(o)
}

func (s *Server) compareDrives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := req.RequireString("drive_a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := req.RequireString("drive_b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.Compare(ctx, a, b, req.GetBool("rescan", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     ArchiveLayout,
		},
	}, nil
}
