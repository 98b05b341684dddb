package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/toolvault/internal/reconcile"
)

// StateSource exposes the current sync state. *reconcile.Engine
// implements it.
type StateSource interface {
	State() reconcile.State
}

// SyncReviewPrompt handles the vault-sync-review MCP prompt.
// It turns the last sync result into a review checklist.
type SyncReviewPrompt struct {
	state StateSource
}

// NewSyncReviewPrompt creates a SyncReviewPrompt.
func NewSyncReviewPrompt(state StateSource) *SyncReviewPrompt {
	return &SyncReviewPrompt{state: state}
}

// Definition returns the MCP prompt definition for registration.
func (p *SyncReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("vault-sync-review",
		mcp.WithPromptDescription(
			"Review the last sync: explain errors and walk through tools whose local copy is newer than the cloud.",
		),
	)
}

// Handle processes the vault-sync-review prompt request.
func (p *SyncReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	st := p.state.State()

	var b strings.Builder
	fmt.Fprintf(&b, "Sync status: %s\n", st.Status)
	if !st.LastSync.IsZero() {
		fmt.Fprintf(&b, "Last successful sync: %s\n", st.LastSync.Format("2006-01-02 15:04 MST"))
	}

	switch st.Status {
	case reconcile.StatusError:
		fmt.Fprintf(&b, "Last error: %s (attempt %d, next retry in %s)\n\n", st.LastError, st.Failures, st.RetryIn)
		b.WriteString("Please explain the error in plain words. If it looks like a sign-in problem, " +
			"tell me how to sign in again. Then ask whether to run `vault_clear_sync_error`.")
	case reconcile.StatusConflict:
		b.WriteString("\nThese tools are newer on this device than in the cloud:\n")
		if st.LastResult != nil {
			for _, id := range st.LastResult.ConflictIDs {
				fmt.Fprintf(&b, "- %s\n", id)
			}
		}
		b.WriteString("\nFor each one, run `vault_get` and summarize what changed. " +
			"Ask me whether to keep my version (re-save it with `vault_save` using the same id) " +
			"or drop it. When done, run `vault_clear_sync_error`.")
	default:
		b.WriteString("\nNothing needs review. Offer to run `vault_sync` now.")
	}

	return &mcp.GetPromptResult{
		Description: "Review the last sync",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
