// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vowpost tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vowpost/internal/apperr"
	"github.com/starford/vowpost/internal/docservice"
)

const contractURI = "vowpost://markup-format"

// Server wraps the MCP server with vowpost tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all vowpost tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"vowpost",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through post content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("search_headings",
		mcp.WithDescription("Find headings across all posts. Each hit carries the heading id to link to."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text the heading contains")),
	), s.searchHeadings)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full stored content of a post."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the post (e.g. venues/barn.html)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new post at the specified path. Heading ids and the inline "+
			"table of contents are filled in before the post is stored. Read the contract first via "+
			"the get_markup_contract tool or the "+contractURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new post (must end with .html)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("HTML or Markdown content following the markup contract")),
		mcp.WithString("format", mcp.Description("Content format"), mcp.Enum(docservice.FormatHTML, docservice.FormatMarkdown)),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored posts, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Return the headings of a post with their ids and nesting."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the post")),
	), s.getOutline)

	s.mcp.AddTool(mcp.NewTool("sync_markup",
		mcp.WithDescription("Assign heading ids and fill the inline table of contents of the given "+
			"markup without storing it. Returns the resulting markup and headings."),
		mcp.WithString("content", mcp.Required(), mcp.Description("HTML or Markdown content")),
		mcp.WithString("format", mcp.Description("Content format"), mcp.Enum(docservice.FormatHTML, docservice.FormatMarkdown)),
	), s.syncMarkup)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the canonical vowpost markup contract. "+
			"Call this before creating posts to ensure correct structure."),
	), s.getMarkupContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Markup Contract",
			mcp.WithResourceDescription("Canonical HTML post format that all posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func toolError(err error, path string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("document already exists: %s", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

type headingHit struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	ID    string `json:"id"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

func (s *Server) searchHeadings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchHeadings(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no headings found"), nil
	}
	out := make([]headingHit, len(hits))
	for i, h := range hits {
		out[i] = headingHit{Path: h.Path, Title: h.Title, ID: h.Heading.ID, Level: h.Heading.Level, Text: h.Heading.Text}
	}
	return jsonResult(out)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, path)
	if err != nil {
		return toolError(err, path), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := req.GetString("format", docservice.FormatHTML)

	doc, err := s.svc.Create(ctx, path, []byte(content), format)
	if err != nil {
		return toolError(err, path), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d headings)", doc.Path, len(doc.Headings))), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	items, _, err := s.svc.List(ctx, 1000, 0, tag, "title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Outline(ctx, path)
	if err != nil {
		return toolError(err, path), nil
	}
	return jsonResult(out)
}

func (s *Server) syncMarkup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Preview(ctx, []byte(content), req.GetString("format", docservice.FormatHTML))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getMarkupContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     MarkupContract,
		},
	}, nil
}
