package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"noteboard/internal/models"
	"noteboard/internal/notes"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the board to MCP clients as a small set of tools.
type Server struct {
	notes   *notes.Service
	version string
}

func NewMCPServer(svc *notes.Service, version string) *Server {
	return &Server{notes: svc, version: version}
}

func (s *Server) listNotesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.notes.ListOrdered(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("The board is empty."), nil
	}
	return jsonResult(list)
}

func (s *Server) appendNoteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content is required"), nil
	}
	color := request.GetString("color", "")

	note, err := s.notes.Append(ctx, content, models.Color(color))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(note)
}

func (s *Server) reorderNotesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("assignments")
	if err != nil {
		return mcp.NewToolResultError("assignments is required"), nil
	}
	var pairs []models.OrderAssignment
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assignments must be a JSON array of {id, order}: %v", err)), nil
	}

	updated, err := s.notes.ReorderBulk(ctx, pairs)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Updated the order of %d notes.", updated)), nil
}

func (s *Server) moveNoteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index is required"), nil
	}

	list, err := s.notes.Move(ctx, id, index)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(list)
}

// Handler builds the stateless streamable HTTP endpoint.
func (s *Server) Handler() *server.StreamableHTTPServer {
	mcpServer := server.NewMCPServer("Noteboard", s.version)

	mcpServer.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note on the board in display order (ascending order value)."),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	), s.listNotesHandler)

	mcpServer.AddTool(mcp.NewTool("append_note",
		mcp.WithDescription("Add a note at the end of the board."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text; must not be blank")),
		mcp.WithString("color", mcp.Description("One of default, red, blue, yellow"),
			mcp.Enum("default", "red", "blue", "yellow")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	), s.appendNoteHandler)

	mcpServer.AddTool(mcp.NewTool("reorder_notes",
		mcp.WithDescription("Atomically assign new order values to several notes. "+
			"The result must not give two notes the same order value."),
		mcp.WithString("assignments", mcp.Required(),
			mcp.Description(`JSON array such as [{"id": "...", "order": 3}]`)),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	), s.reorderNotesHandler)

	mcpServer.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note to a zero-based position in the display order."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note ID")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Target position, 0 is first")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	), s.moveNoteHandler)

	return server.NewStreamableHTTPServer(mcpServer, server.WithStateLess(true))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, notes.ErrValidation), errors.Is(err, notes.ErrNotFound), errors.Is(err, notes.ErrConflict):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err))
	}
}
