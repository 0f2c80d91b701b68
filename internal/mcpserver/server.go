// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes note parsing, link rendering and regeneration tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/noteservice"
	"github.com/starford/notelinker/internal/parser"
)

const contractURI = "notelinker://note-format"

// Server wraps the MCP server with notelinker tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notelinker",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	subjectArgs := []mcp.ToolOption{
		mcp.WithString("subject_slug", mcp.Description("Slug of the subject page the note belongs to; its entry is marked current and left out of aggregate links")),
		mcp.WithString("subject_type", mcp.Description("Subject type used in entry URLs (vocabulary or kanji)")),
	}

	s.mcp.AddTool(mcp.NewTool("parse_note", append([]mcp.ToolOption{
		mcp.WithDescription("Parse note text into groups of vocabulary entries. " +
			"Entry lines follow the contract in get_note_contract."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
	}, subjectArgs...)...), s.parseNote)

	s.mcp.AddTool(mcp.NewTool("render_links", append([]mcp.ToolOption{
		mcp.WithDescription("Render the link section of note text: one link per entry plus All, Copy and Everything links."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("format", mcp.Description("plain (default) or html")),
	}, subjectArgs...)...), s.renderLinks)

	s.mcp.AddTool(mcp.NewTool("check_update",
		mcp.WithDescription("Report whether a stored note (path) or posted text (content) is out of date "+
			"with the vocabulary dataset, with the regenerated lines."),
		mcp.WithString("path", mcp.Description("Vault path of a stored note")),
		mcp.WithString("content", mcp.Description("Note text, used when path is empty")),
		mcp.WithString("subject_slug", mcp.Description("Subject slug for posted text")),
	), s.checkUpdate)

	s.mcp.AddTool(mcp.NewTool("apply_update",
		mcp.WithDescription("Regenerate a stored note from the vocabulary dataset and save it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note")),
		mcp.WithString("if_match", mcp.Description("Checksum the note must still have")),
	), s.applyUpdate)

	s.mcp.AddTool(mcp.NewTool("lookup_vocab",
		mcp.WithDescription("Look up a vocabulary record and its canonical note line."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Vocabulary slug, e.g. 深刻")),
	), s.lookupVocab)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes."),
		mcp.WithString("subject", mcp.Description("Only notes of this subject slug")),
		mcp.WithBoolean("needs_update", mcp.Description("Only notes out of date with the dataset")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path (e.g. vocabulary/大変/meaning.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note contents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_mentions",
		mcp.WithDescription("Find note lines that reference a vocabulary slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Vocabulary slug")),
	), s.getMentions)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note line format contract. "+
			"Call this before writing entry lines."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Entry line format, markers and grouping rules of study notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func subjectFrom(req mcp.CallToolRequest) parser.Subject {
	subject := parser.Subject{
		Type: req.GetString("subject_type", ""),
		Slug: req.GetString("subject_slug", ""),
	}
	if subject.Slug != "" && subject.Type == "" {
		subject.Type = "vocabulary"
	}
	return subject
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error, subject string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", subject))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("checksum mismatch: %s", subject))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) parseNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	groups, _ := s.svc.Links(content, subjectFrom(req))
	if groups == nil {
		groups = []parser.Group{}
	}
	return jsonResult(groups), nil
}

func (s *Server) renderLinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, section := s.svc.Links(content, subjectFrom(req))
	switch req.GetString("format", "plain") {
	case "html":
		return mcp.NewToolResultText(section.HTML), nil
	case "plain":
		return mcp.NewToolResultText(section.Plain), nil
	default:
		return mcp.NewToolResultError("format must be plain or html"), nil
	}
}

func (s *Server) checkUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path := req.GetString("path", ""); path != "" {
		preview, err := s.svc.PreviewUpdate(ctx, path)
		if err != nil {
			return errorResult(err, path), nil
		}
		return jsonResult(preview), nil
	}
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("path or content is required"), nil
	}
	updated, changes := s.svc.Check(content, subjectFrom(req))
	return jsonResult(noteservice.UpdatePreview{
		NeedsUpdate: updated != content,
		Content:     updated,
		Changes:     changes,
	}), nil
}

func (s *Server) applyUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ApplyUpdate(ctx, path, req.GetString("if_match", ""))
	if err != nil {
		return errorResult(err, path), nil
	}
	return jsonResult(res), nil
}

func (s *Server) lookupVocab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.GetVocab(ctx, slug)
	if err != nil {
		return errorResult(err, slug), nil
	}
	line, err := s.svc.CopyLine(ctx, slug)
	if err != nil {
		return errorResult(err, slug), nil
	}
	return jsonResult(map[string]any{"record": rec, "line": line}), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListNotes(ctx, noteservice.ListQuery{
		Limit:       1000,
		Subject:     req.GetString("subject", ""),
		NeedsUpdate: req.GetBool("needs_update", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(items))
	for _, it := range items {
		p := it.Path
		if it.NeedsUpdate {
			p += " (needs update)"
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return errorResult(err, path), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getMentions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mentions, err := s.svc.Mentions(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(mentions) == 0 {
		return mcp.NewToolResultText("no mentions found"), nil
	}
	lines := make([]string, len(mentions))
	for i, m := range mentions {
		lines[i] = fmt.Sprintf("%s:%d", m.Path, m.LineIndex)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
