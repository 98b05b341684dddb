// Package prompts implements MCP prompt handlers for the tool vault.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewToolPrompt handles the vault-new-tool MCP prompt.
// It guides the AI through drafting a definition and saving it.
type NewToolPrompt struct{}

// NewNewToolPrompt creates a NewToolPrompt.
func NewNewToolPrompt() *NewToolPrompt {
	return &NewToolPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *NewToolPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("vault-new-tool",
		mcp.WithPromptDescription(
			"Describe a file-processing tool in plain words and save it to the vault.",
		),
		mcp.WithArgument("idea",
			mcp.ArgumentDescription("What the tool should do, e.g. 'shrink photos to 640px wide'"),
		),
		mcp.WithArgument("public",
			mcp.ArgumentDescription("'yes' to share the tool with other cloud users. Default: no"),
		),
	)
}

// Handle processes the vault-new-tool prompt request.
func (p *NewToolPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	idea := ""
	public := false
	if args := req.Params.Arguments; args != nil {
		idea = args["idea"]
		public = args["public"] == "yes"
	}

	ask := "Ask me what the tool should do."
	if idea != "" {
		ask = fmt.Sprintf("The tool should: %s", idea)
	}

	return &mcp.GetPromptResult{
		Description: "Create a new vault tool",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to create a new tool for my vault. %s\n\n"+
						"Please:\n"+
						"1. Run `vault_list` with a short query to check I don't already have an equivalent tool\n"+
						"2. Draft a definition as JSON: name, summary, inputs (name, type, required), "+
						"pipeline (ordered steps with op and args) and output (type, filename pattern)\n"+
						"3. Show me the draft and wait for my confirmation\n"+
						"4. Run `vault_save` with the confirmed definition and is_public=%t\n"+
						"5. Tell me the saved id and whether it reached the cloud or stayed on this device",
					ask, public,
				)),
			},
		},
	}, nil
}
