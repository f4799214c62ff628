// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala vault tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/crdt"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/session"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
}

// New creates a new MCP server with all Othala tools registered.
func New(sess *session.Session) *Server {
	s := &Server{sess: sess}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_titles",
		mcp.WithDescription("Search document titles (case-insensitive substring, exact matches first)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Title query string")),
	), s.searchTitles)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document's metadata and plain-text body."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new empty document with the given title. "+
			"Link to other documents from bodies using [[id]] references; read the "+
			"get_document_contract tool or the othala://document-format resource first."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title for the new document")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical Othala document format contract. "+
			"Call this before creating documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents as 'id\ttitle' lines."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that link to the specified document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the document to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Get the heading outline of a document (level, text, slug)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.getOutline)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical document format that vault documents follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
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

func (s *Server) searchTitles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	matches := index.MatchTitles(s.sess.Index(), query)
	out, _ := json.MarshalIndent(matches, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.sess.GetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}

	d := crdt.NewDoc()
	if decErr := codec.Decode(doc.Body, d); decErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("body unreadable: %s", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\ntitle: %s\n", doc.ID, doc.Metadata.Title)
	if len(doc.Metadata.Tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(doc.Metadata.Tags, ", "))
	}
	b.WriteString("\n")
	b.WriteString(d.PlainText())
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.sess.CreateDocument(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", doc.ID)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var lines []string
	for _, d := range s.sess.Documents() {
		lines = append(lines, d.ID+"\t"+d.Metadata.Title)
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("vault is empty"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, ok := s.sess.Index().Documents[id]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if len(entry.Backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(entry.Backlinks, "\n")), nil
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, ok := s.sess.Index().Documents[id]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if len(entry.Headers) == 0 {
		return mcp.NewToolResultText("no headings"), nil
	}
	var lines []string
	for _, h := range entry.Headers {
		lines = append(lines, fmt.Sprintf("%s %s (#%s)", strings.Repeat("#", h.Level), h.Text, h.Slug))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
