package vaulttools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/toolvault/internal/reconcile"
)

// SyncTool handles the vault_sync MCP tool.
type SyncTool struct {
	engine *reconcile.Engine
}

// NewSyncTool creates a SyncTool.
func NewSyncTool(engine *reconcile.Engine) *SyncTool {
	return &SyncTool{engine: engine}
}

// Definition returns the MCP tool definition for vault_sync.
func (t *SyncTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_sync",
		mcp.WithDescription(
			"Reconcile this device with the cloud. Newer cloud copies are downloaded; "+
				"newer local copies are reported as conflicts and left untouched.",
		),
	)
}

// Handle processes the vault_sync tool call.
func (t *SyncTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.engine.Sync(ctx)
	switch {
	case errors.Is(err, reconcile.ErrSyncInProgress):
		return mcp.NewToolResultError("a sync is already running; try again shortly"), nil
	case errors.Is(err, reconcile.ErrLocalOnly):
		return mcp.NewToolResultError("local-only mode is on; sync is disabled"), nil
	case errors.Is(err, reconcile.ErrCloudUnavailable):
		return mcp.NewToolResultError("cloud is unavailable; sign in or check the connection"), nil
	case err != nil:
		st := t.engine.State()
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v (retry in %s)", err, st.RetryIn)), nil
	}

	text := fmt.Sprintf("Sync complete: %d local, %d cloud, %d merged, %d conflicts",
		res.LocalCount, res.CloudCount, res.Merged, res.Conflicts)
	for _, id := range res.ConflictIDs {
		text += fmt.Sprintf("\n- conflict: %s is newer on this device", id)
	}
	return mcp.NewToolResultText(text), nil
}

// ─── SyncStatusTool ─────────────────────────────────────────────────────────

// SyncStatusTool handles the vault_sync_status MCP tool.
type SyncStatusTool struct {
	engine *reconcile.Engine
}

// NewSyncStatusTool creates a SyncStatusTool.
func NewSyncStatusTool(engine *reconcile.Engine) *SyncStatusTool {
	return &SyncStatusTool{engine: engine}
}

// Definition returns the MCP tool definition for vault_sync_status.
func (t *SyncStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_sync_status",
		mcp.WithDescription("Show the sync state. Pass 'auto_sync' to turn background sync on or off."),
		mcp.WithBoolean("auto_sync",
			mcp.Description("Enable or disable background sync"),
		),
	)
}

// Handle processes the vault_sync_status tool call.
func (t *SyncStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if on, ok := req.GetArguments()["auto_sync"].(bool); ok {
		if err := t.engine.SetAutoSync(ctx, on); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update auto-sync: %v", err)), nil
		}
	}
	return jsonResult(t.engine.State()), nil
}

// ─── ClearSyncErrorTool ─────────────────────────────────────────────────────

// ClearSyncErrorTool handles the vault_clear_sync_error MCP tool.
type ClearSyncErrorTool struct {
	engine *reconcile.Engine
}

// NewClearSyncErrorTool creates a ClearSyncErrorTool.
func NewClearSyncErrorTool(engine *reconcile.Engine) *ClearSyncErrorTool {
	return &ClearSyncErrorTool{engine: engine}
}

// Definition returns the MCP tool definition for vault_clear_sync_error.
func (t *ClearSyncErrorTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_clear_sync_error",
		mcp.WithDescription("Dismiss a sync error or conflict report and cancel the pending retry."),
	)
}

// Handle processes the vault_clear_sync_error tool call.
func (t *ClearSyncErrorTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !t.engine.ClearError() {
		return mcp.NewToolResultError("a sync is running; nothing was cleared"), nil
	}
	return mcp.NewToolResultText("Sync state cleared"), nil
}

// ─── ImportDraftsTool ───────────────────────────────────────────────────────

// ImportDraftsTool handles the vault_import_drafts MCP tool.
type ImportDraftsTool struct {
	engine *reconcile.Engine
}

// NewImportDraftsTool creates an ImportDraftsTool.
func NewImportDraftsTool(engine *reconcile.Engine) *ImportDraftsTool {
	return &ImportDraftsTool{engine: engine}
}

// Definition returns the MCP tool definition for vault_import_drafts.
func (t *ImportDraftsTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_import_drafts",
		mcp.WithDescription(
			"Upload every tool created on this device while offline to the cloud. "+
				"Tools that fail to upload stay on this device.",
		),
	)
}

// Handle processes the vault_import_drafts tool call.
func (t *ImportDraftsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := t.engine.ImportLocalDrafts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to import drafts: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Imported %d drafts to the cloud", n)), nil
}
