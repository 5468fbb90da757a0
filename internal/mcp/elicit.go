package mcp

import (
	"context"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/mailwarden/internal/elicit"
)

// sessionTransport bridges the confirmation prompt onto the MCP
// elicitation capability of the calling session.
type sessionTransport struct {
	session *mcpsdk.ServerSession
}

// confirmSchema is the response shape requested from the client: a
// single enum field naming the chosen action.
func confirmSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action": {
				Type:        "string",
				Description: "What to do with the message.",
				Enum:        []any{"send", "save_draft", "cancel"},
			},
		},
		Required: []string{"action"},
	}
}

func (t *sessionTransport) Prompt(ctx context.Context, message string) (elicit.Response, error) {
	res, err := t.session.Elicit(ctx, &mcpsdk.ElicitParams{
		Message:         message,
		RequestedSchema: confirmSchema(),
	})
	if err != nil {
		return elicit.Response{}, classifyElicitErr(err)
	}

	switch res.Action {
	case "decline":
		return elicit.Response{Kind: elicit.RespondDecline}, nil
	case "cancel":
		return elicit.Response{Kind: elicit.RespondCancel}, nil
	case "accept":
		return elicit.Response{Kind: elicit.RespondAccept, Action: acceptedAction(res.Content)}, nil
	}
	// Unknown top-level action: treat as a decline, the safe reading.
	return elicit.Response{Kind: elicit.RespondDecline}, nil
}

// acceptedAction extracts the chosen action from accept content. Accepts
// with missing or unknown content mean the user confirmed the prompt
// without choosing an alternative, i.e. send.
func acceptedAction(content map[string]any) elicit.Action {
	raw, _ := content["action"].(string)
	switch elicit.Action(strings.ToLower(strings.TrimSpace(raw))) {
	case elicit.ActionSaveDraft:
		return elicit.ActionSaveDraft
	case elicit.ActionCancel:
		return elicit.ActionCancel
	}
	return elicit.ActionSend
}

// classifyElicitErr is the single point that decides whether a raw
// session error means "this client cannot elicit" (fallback policy
// applies) or a genuine transport failure. Capability detection is
// string-based because the SDK surfaces the peer's method-not-found
// as a plain JSON-RPC error.
func classifyElicitErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"method not found",
		"method \"elicitation/create\" not found",
		"does not support elicitation",
		"elicitation not supported",
		"capability",
	} {
		if strings.Contains(msg, marker) {
			return elicit.ErrUnsupported
		}
	}
	return err
}
