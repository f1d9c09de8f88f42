package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kithhq/kith/internal/merge"
	"github.com/kithhq/kith/internal/synthesis"
)

// NewMCPServer creates an MCP server exposing the contact record to local
// assistants. The add_note tool runs the full pipeline and commits without
// a review step; MCP callers are trusted the same way transcript import is.
func NewMCPServer(d Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"kith",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("kith — personal contact memory: notes in, categorized facts out."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Record a free-text note about a contact. The note is synthesized into categorized facts and committed."),
			mcp.WithString("contact_id", mcp.Description("Contact ID"), mcp.Required()),
			mcp.WithString("note", mcp.Description("The note text"), mcp.Required()),
		),
		mcpAddNote(d),
	)

	s.AddTool(
		mcp.NewTool("get_contact",
			mcp.WithDescription("Fetch a contact and their categorized facts."),
			mcp.WithString("contact_id", mcp.Description("Contact ID"), mcp.Required()),
		),
		mcpGetContact(d),
	)

	s.AddTool(
		mcp.NewTool("search_contacts",
			mcp.WithDescription("Search contacts by name, fact, or note content."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchContacts(d),
	)

	s.AddResource(
		mcp.NewResource(
			"kith://contacts",
			"Contacts",
			mcp.WithResourceDescription("All contacts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceContacts(d),
	)

	return s
}

func mcpAddNote(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contactID, err := req.RequireString("contact_id")
		if err != nil {
			return mcpError("contact_id is required"), nil
		}
		note, err := req.RequireString("note")
		if err != nil {
			return mcpError("note is required"), nil
		}

		contact, err := d.Store.GetContact(contactID)
		if err != nil {
			return mcpError(fmt.Sprintf("contact %s: %v", contactID, err)), nil
		}

		bundle, err := d.Retriever.Retrieve(ctx, contact.ID, note)
		if err != nil {
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}
		proposal, err := d.Engine.Synthesize(ctx, synthesis.Request{
			Note:        note,
			ContactName: contact.Name,
			Facts:       bundle.Facts,
			History:     bundle.HistoryText(),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("synthesis failed: %v", err)), nil
		}
		if len(proposal.Updates) == 0 {
			return mcpText("No new facts found in the note; nothing committed."), nil
		}

		result, err := d.Writer.Write(ctx, merge.Commit{
			ContactID:  contact.ID,
			Note:       note,
			Source:     "manual",
			Engine:     proposal.Engine,
			Mode:       merge.ModeAdditive,
			Confidence: proposal.Confidence,
			Updates:    proposal.Updates,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("commit failed: %v", err)), nil
		}

		var facts int
		for _, u := range proposal.Updates {
			facts += len(u.Facts)
		}
		return mcpText(fmt.Sprintf("Committed %d facts for %s (note %s, engine %s)",
			facts, contact.Name, result.RawNoteID, proposal.Engine)), nil
	}
}

func mcpGetContact(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contactID, err := req.RequireString("contact_id")
		if err != nil {
			return mcpError("contact_id is required"), nil
		}

		contact, err := d.Store.GetContact(contactID)
		if err != nil {
			return mcpError(fmt.Sprintf("contact %s: %v", contactID, err)), nil
		}
		facts, err := d.Store.FactsByCategory(contactID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading facts: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{"contact": contact, "facts": facts})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal contact: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchContacts(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		contacts, err := d.Store.SearchContacts(query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(contacts) == 0 {
			return mcpText("[]"), nil
		}

		type hit struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Tier int    `json:"tier"`
		}
		hits := make([]hit, len(contacts))
		for i, c := range contacts {
			hits[i] = hit{ID: c.ID, Name: c.Name, Tier: c.Tier}
		}

		b, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceContacts(d Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		contacts, err := d.Store.ListContacts(10000, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list contacts: %w", err)
		}

		type entry struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Tier      int    `json:"tier"`
			CreatedAt string `json:"created_at"`
		}
		entries := make([]entry, len(contacts))
		for i, c := range contacts {
			entries[i] = entry{
				ID:        c.ID,
				Name:      c.Name,
				Tier:      c.Tier,
				CreatedAt: c.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal contacts: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
