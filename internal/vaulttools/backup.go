package vaulttools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/toolvault/internal/repository"
)

// ExportTool handles the vault_export MCP tool.
type ExportTool struct {
	utils *repository.LocalUtils
}

// NewExportTool creates an ExportTool.
func NewExportTool(utils *repository.LocalUtils) *ExportTool {
	return &ExportTool{utils: utils}
}

// Definition returns the MCP tool definition for vault_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_export",
		mcp.WithDescription("Export every tool and favorite on this device as JSON."),
		mcp.WithString("path",
			mcp.Description("Write the export to this file instead of returning it"),
		),
	)
}

// Handle processes the vault_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := t.utils.Export(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export: %v", err)), nil
	}

	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultText(string(data)), nil
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported %d bytes to %s", len(data), path)), nil
}

// ─── ImportTool ─────────────────────────────────────────────────────────────

// ImportTool handles the vault_import MCP tool.
type ImportTool struct {
	utils *repository.LocalUtils
}

// NewImportTool creates an ImportTool.
func NewImportTool(utils *repository.LocalUtils) *ImportTool {
	return &ImportTool{utils: utils}
}

// Definition returns the MCP tool definition for vault_import.
func (t *ImportTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_import",
		mcp.WithDescription("Restore a vault_export backup into this device. Existing ids are overwritten."),
		mcp.WithString("data",
			mcp.Description("Export JSON text"),
		),
		mcp.WithString("path",
			mcp.Description("Read the export from this file"),
		),
	)
}

// Handle processes the vault_import tool call.
func (t *ImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := []byte(req.GetString("data", ""))
	if path := req.GetString("path", ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
		}
		text = b
	}
	if len(text) == 0 {
		return mcp.NewToolResultError("one of 'data' or 'path' is required"), nil
	}

	res, err := t.utils.Import(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to import: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Imported %d tools and %d favorites",
		res.ToolsImported, res.FavoritesImported)), nil
}

// ─── Cache tools ────────────────────────────────────────────────────────────

// CacheStatsTool handles the vault_cache_stats MCP tool.
type CacheStatsTool struct {
	utils *repository.LocalUtils
}

// NewCacheStatsTool creates a CacheStatsTool.
func NewCacheStatsTool(utils *repository.LocalUtils) *CacheStatsTool {
	return &CacheStatsTool{utils: utils}
}

// Definition returns the MCP tool definition for vault_cache_stats.
func (t *CacheStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_cache_stats",
		mcp.WithDescription("Show artifact cache usage against its size ceiling."),
	)
}

// Handle processes the vault_cache_stats tool call.
func (t *CacheStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.utils.CacheStats()
	if errors.Is(err, repository.ErrNoCache) {
		return mcp.NewToolResultError("no artifact cache is configured"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read cache stats: %v", err)), nil
	}
	return jsonResult(st), nil
}

// CacheClearTool handles the vault_cache_clear MCP tool.
type CacheClearTool struct {
	utils *repository.LocalUtils
}

// NewCacheClearTool creates a CacheClearTool.
func NewCacheClearTool(utils *repository.LocalUtils) *CacheClearTool {
	return &CacheClearTool{utils: utils}
}

// Definition returns the MCP tool definition for vault_cache_clear.
func (t *CacheClearTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_cache_clear",
		mcp.WithDescription("Delete every cached artifact."),
	)
}

// Handle processes the vault_cache_clear tool call.
func (t *CacheClearTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.utils.ClearCache(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear cache: %v", err)), nil
	}
	return mcp.NewToolResultText("Artifact cache cleared"), nil
}
