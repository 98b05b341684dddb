package vaulttools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/toolvault/internal/reconcile"
)

// SyncStatusURI addresses the sync state resource.
const SyncStatusURI = "toolvault://sync/status"

// StatusHandler serves the sync state as an MCP resource.
type StatusHandler struct {
	engine *reconcile.Engine
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(engine *reconcile.Engine) *StatusHandler {
	return &StatusHandler{engine: engine}
}

// Resource returns the MCP resource definition for the sync state.
func (h *StatusHandler) Resource() mcp.Resource {
	return mcp.NewResource(
		SyncStatusURI,
		"Tool Vault Sync Status",
		mcp.WithResourceDescription("Current sync state, last result and retry schedule"),
		mcp.WithMIMEType("application/json"),
	)
}

// Handle returns the current sync state as JSON.
func (h *StatusHandler) Handle(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(h.engine.State(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling sync state: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
