package vaulttools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/toolvault/internal/artifact"
)

// ArtifactStoreTool handles the vault_artifact_store MCP tool.
type ArtifactStoreTool struct {
	cache *artifact.Cache
}

// NewArtifactStoreTool creates an ArtifactStoreTool.
func NewArtifactStoreTool(cache *artifact.Cache) *ArtifactStoreTool {
	return &ArtifactStoreTool{cache: cache}
}

// Definition returns the MCP tool definition for vault_artifact_store.
func (t *ArtifactStoreTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_artifact_store",
		mcp.WithDescription(
			"Cache a tool output blob. The least recently used artifacts are evicted when the cache is full.",
		),
		mcp.WithString("data",
			mcp.Required(),
			mcp.Description("Blob content, base64-encoded"),
		),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("File name shown to the user"),
		),
		mcp.WithString("mime_type",
			mcp.Description("MIME type (default: application/octet-stream)"),
		),
		mcp.WithString("owner_tool_id",
			mcp.Description("Id of the tool that produced the artifact"),
		),
		mcp.WithString("id",
			mcp.Description("Custom artifact id; an existing one is overwritten"),
		),
		mcp.WithNumber("ttl_days",
			mcp.Description("Days until expiry (default: cache setting)"),
		),
	)
}

// Handle processes the vault_artifact_store tool call.
func (t *ArtifactStoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded := req.GetString("data", "")
	filename := req.GetString("filename", "")
	if encoded == "" {
		return mcp.NewToolResultError("'data' is required"), nil
	}
	if filename == "" {
		return mcp.NewToolResultError("'filename' is required"), nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("'data' is not base64: %v", err)), nil
	}

	id, err := t.cache.Store(data, artifact.Meta{
		Filename:    filename,
		MIMEType:    req.GetString("mime_type", "application/octet-stream"),
		OwnerToolID: req.GetString("owner_tool_id", ""),
	}, artifact.StoreOptions{
		TTLDays:  intArg(req, "ttl_days", 0),
		CustomID: req.GetString("id", ""),
	})
	if errors.Is(err, artifact.ErrTooLarge) {
		return mcp.NewToolResultError(fmt.Sprintf("artifact of %d bytes exceeds the cache size of %d bytes",
			len(data), t.cache.MaxBytes())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store artifact: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Artifact stored: %q (%d bytes)\nID: %s", filename, len(data), id)), nil
}

// ─── ArtifactGetTool ────────────────────────────────────────────────────────

// ArtifactGetTool handles the vault_artifact_get MCP tool.
type ArtifactGetTool struct {
	cache *artifact.Cache
}

// NewArtifactGetTool creates an ArtifactGetTool.
func NewArtifactGetTool(cache *artifact.Cache) *ArtifactGetTool {
	return &ArtifactGetTool{cache: cache}
}

// Definition returns the MCP tool definition for vault_artifact_get.
func (t *ArtifactGetTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_artifact_get",
		mcp.WithDescription("Read a cached artifact. The content is returned base64-encoded."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Artifact id"),
		),
	)
}

type artifactPayload struct {
	artifact.Meta
	Data string `json:"data"`
}

// Handle processes the vault_artifact_get tool call.
func (t *ArtifactGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	a, err := t.cache.Get(id)
	if errors.Is(err, artifact.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("artifact %s not found or expired", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read artifact: %v", err)), nil
	}
	return jsonResult(artifactPayload{Meta: a.Meta, Data: base64.StdEncoding.EncodeToString(a.Data)}), nil
}

// ─── ArtifactListTool ───────────────────────────────────────────────────────

// ArtifactListTool handles the vault_artifact_list MCP tool.
type ArtifactListTool struct {
	cache *artifact.Cache
}

// NewArtifactListTool creates an ArtifactListTool.
func NewArtifactListTool(cache *artifact.Cache) *ArtifactListTool {
	return &ArtifactListTool{cache: cache}
}

// Definition returns the MCP tool definition for vault_artifact_list.
func (t *ArtifactListTool) Definition() mcp.Tool {
	return mcp.NewTool("vault_artifact_list",
		mcp.WithDescription("List cached artifacts, most recently used first."),
		mcp.WithString("owner_tool_id",
			mcp.Description("Only artifacts produced by this tool"),
		),
		mcp.WithBoolean("include_expired",
			mcp.Description("Include artifacts past their expiry (default: false)"),
		),
	)
}

// Handle processes the vault_artifact_list tool call.
func (t *ArtifactListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := t.cache.List(artifact.ListFilter{
		OwnerToolID:    req.GetString("owner_tool_id", ""),
		IncludeExpired: boolArg(req, "include_expired", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list artifacts: %v", err)), nil
	}
	if len(metas) == 0 {
		return mcp.NewToolResultText("No cached artifacts."), nil
	}
	return jsonResult(metas), nil
}
