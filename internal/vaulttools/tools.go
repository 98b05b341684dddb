package vaulttools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/toolvault/internal/repository"
	"github.com/HendryAvila/toolvault/internal/tool"
)

// SaveTool handles the vault_save MCP tool.
type SaveTool struct {
	repo *repository.Repository
}

// NewSaveTool creates a SaveTool.
func NewSaveTool(repo *repository.Repository) *SaveTool {
	return &SaveTool{repo: repo}
}

// Definition returns the MCP tool definition for vault_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_save",
		mcp.WithDescription(
			"Save a tool definition. It is written to this device first and then to the cloud when signed in. "+
				"Pass 'id' to overwrite an existing tool.",
		),
		mcp.WithString("definition",
			mcp.Required(),
			mcp.Description("Tool definition as JSON: {name, summary, inputs, pipeline, output}"),
		),
		mcp.WithString("id",
			mcp.Description("Existing tool id to overwrite"),
		),
		mcp.WithString("name",
			mcp.Description("Display name (default: the definition's name)"),
		),
		mcp.WithBoolean("is_public",
			mcp.Description("Make the tool listable by other cloud users (default: false)"),
		),
	)
}

// Handle processes the vault_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("definition", "")
	if raw == "" {
		return mcp.NewToolResultError("'definition' is required"), nil
	}

	var def tool.Definition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("'definition' is not valid JSON: %v", err)), nil
	}
	if strings.TrimSpace(def.Name) == "" {
		return mcp.NewToolResultError("definition needs a 'name'"), nil
	}

	meta, err := t.repo.Save(ctx, def, tool.SaveMeta{
		ID:       req.GetString("id", ""),
		Name:     req.GetString("name", ""),
		IsPublic: boolArg(req, "is_public", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save tool: %v", err)), nil
	}

	where := "cloud"
	if meta.Source == tool.SourceLocal {
		where = "this device only"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Tool saved: %q (%s)\nID: %s\nHash: %s",
		meta.Name, where, meta.ID, meta.ContentHash)), nil
}

// ─── GetTool ────────────────────────────────────────────────────────────────

// GetTool handles the vault_get MCP tool.
type GetTool struct {
	repo *repository.Repository
}

// NewGetTool creates a GetTool.
func NewGetTool(repo *repository.Repository) *GetTool {
	return &GetTool{repo: repo}
}

// Definition returns the MCP tool definition for vault_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_get",
		mcp.WithDescription("Fetch one tool with its full definition."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Tool id"),
		),
	)
}

// Handle processes the vault_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	rec, err := t.repo.Get(ctx, id)
	if errors.Is(err, tool.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("tool %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get tool: %v", err)), nil
	}
	return jsonResult(rec), nil
}

// ─── ListTool ───────────────────────────────────────────────────────────────

// ListTool handles the vault_list MCP tool.
type ListTool struct {
	repo *repository.Repository
}

// NewListTool creates a ListTool.
func NewListTool(repo *repository.Repository) *ListTool {
	return &ListTool{repo: repo}
}

// Definition returns the MCP tool definition for vault_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_list",
		mcp.WithDescription(
			"List tools from this device and the cloud, newest first. Copies with the same content appear once.",
		),
		mcp.WithString("query",
			mcp.Description("Case-insensitive filter over name and summary"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default: 50)"),
		),
	)
}

// Handle processes the vault_list tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := t.repo.List(ctx, tool.ListParams{
		Limit: intArg(req, "limit", 50),
		Query: req.GetString("query", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tools: %v", err)), nil
	}
	if len(metas) == 0 {
		return mcp.NewToolResultText("No tools found."), nil
	}
	return mcp.NewToolResultText(formatMetas(metas)), nil
}

func formatMetas(metas []tool.Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tools:\n", len(metas))
	for _, m := range metas {
		vis := ""
		if m.IsPublic {
			vis = " public"
		}
		fmt.Fprintf(&b, "\n- %s [%s%s] %s\n  id: %s  updated: %s",
			m.Name, m.Source, vis, shortHash(m.ContentHash), m.ID, m.UpdatedAt.UTC().Format("2006-01-02 15:04"))
	}
	return b.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// ─── DeleteTool ─────────────────────────────────────────────────────────────

// DeleteTool handles the vault_delete MCP tool.
type DeleteTool struct {
	repo *repository.Repository
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(repo *repository.Repository) *DeleteTool {
	return &DeleteTool{repo: repo}
}

// Definition returns the MCP tool definition for vault_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_delete",
		mcp.WithDescription("Delete a tool from this device and, when signed in, the cloud."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Tool id"),
		),
	)
}

// Handle processes the vault_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if err := t.repo.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete tool: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Tool %s deleted", id)), nil
}

// ─── FavoriteTool ───────────────────────────────────────────────────────────

// FavoriteTool handles the vault_favorite MCP tool.
type FavoriteTool struct {
	repo *repository.Repository
}

// NewFavoriteTool creates a FavoriteTool.
func NewFavoriteTool(repo *repository.Repository) *FavoriteTool {
	return &FavoriteTool{repo: repo}
}

// Definition returns the MCP tool definition for vault_favorite.
func (t *FavoriteTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_favorite",
		mcp.WithDescription("Mark or unmark a tool as favorite. Without 'on', reports the current flag."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Tool id"),
		),
		mcp.WithBoolean("on",
			mcp.Description("true to favorite, false to unfavorite"),
		),
	)
}

// Handle processes the vault_favorite tool call.
func (t *FavoriteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	on, set := req.GetArguments()["on"].(bool)
	if !set {
		fav, err := t.repo.IsFavorite(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read favorite: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Tool %s favorite: %t", id, fav)), nil
	}

	if err := t.repo.Favorite(ctx, id, on); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update favorite: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Tool %s favorite: %t", id, on)), nil
}

// ─── RecentTool ─────────────────────────────────────────────────────────────

// RecentTool handles the vault_recent MCP tool.
type RecentTool struct {
	repo *repository.Repository
}

// NewRecentTool creates a RecentTool.
func NewRecentTool(repo *repository.Repository) *RecentTool {
	return &RecentTool{repo: repo}
}

// Definition returns the MCP tool definition for vault_recent.
func (t *RecentTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_recent",
		mcp.WithDescription("List the tools most recently opened on this device."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default: 10)"),
		),
	)
}

// Handle processes the vault_recent tool call.
func (t *RecentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := t.repo.Recent(ctx, intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read recent tools: %v", err)), nil
	}
	if len(metas) == 0 {
		return mcp.NewToolResultText("No recently opened tools."), nil
	}
	return mcp.NewToolResultText(formatMetas(metas)), nil
}
