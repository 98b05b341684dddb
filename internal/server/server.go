// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/toolvault/internal/prompts"
	"github.com/HendryAvila/toolvault/internal/vaulttools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// toolHandler is the shape every vaulttools handler has.
type toolHandler interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates the MCP server with every vault tool, prompt and resource
// registered against app.
func New(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"toolvault",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	for _, t := range vaultTools(app) {
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Register prompts ---

	newTool := prompts.NewNewToolPrompt()
	s.AddPrompt(newTool.Definition(), newTool.Handle)

	review := prompts.NewSyncReviewPrompt(app.Engine)
	s.AddPrompt(review.Definition(), review.Handle)

	// --- Register resources ---

	status := vaulttools.NewStatusHandler(app.Engine)
	s.AddResource(status.Resource(), status.Handle)

	return s
}

func vaultTools(app *App) []toolHandler {
	utils := app.Repo.LocalUtils()
	return []toolHandler{
		// --- Tools ---
		vaulttools.NewSaveTool(app.Repo),
		vaulttools.NewGetTool(app.Repo),
		vaulttools.NewListTool(app.Repo),
		vaulttools.NewDeleteTool(app.Repo),
		vaulttools.NewFavoriteTool(app.Repo),
		vaulttools.NewRecentTool(app.Repo),

		// --- Sync ---
		vaulttools.NewSyncTool(app.Engine),
		vaulttools.NewSyncStatusTool(app.Engine),
		vaulttools.NewClearSyncErrorTool(app.Engine),
		vaulttools.NewImportDraftsTool(app.Engine),

		// --- Backup & cache ---
		vaulttools.NewExportTool(utils),
		vaulttools.NewImportTool(utils),
		vaulttools.NewCacheStatsTool(utils),
		vaulttools.NewCacheClearTool(utils),

		// --- Artifacts ---
		vaulttools.NewArtifactStoreTool(app.Cache),
		vaulttools.NewArtifactGetTool(app.Cache),
		vaulttools.NewArtifactListTool(app.Cache),
	}
}

// serverInstructions tells the AI how to use the vault.
func serverInstructions() string {
	return `You have access to Tool Vault, a store of reusable file-processing tools.

## How tools are stored
- Every tool is saved on this device first, then in the cloud when the user is signed in.
- Tools created offline get an id starting with "local_". Run vault_import_drafts
  once the user is back online to upload them.
- Copies with identical content are the same tool; vault_list shows them once.

## Typical flows
- New tool: check vault_list for an equivalent first, then vault_save.
- Reuse: vault_list or vault_recent, then vault_get for the full definition.
- Outputs: cache produced files with vault_artifact_store so the user can fetch
  them again with vault_artifact_get. The cache evicts least recently used files.

## Sync
- vault_sync reconciles this device with the cloud. Newer cloud copies win.
- A tool edited here more recently than in the cloud is reported as a conflict and
  left untouched. Use the vault-sync-review prompt to walk the user through them.
- vault_sync_status shows the state; failed syncs retry on their own with backoff.
- Never run vault_sync in a loop: a second call while one is running is rejected.`
}
