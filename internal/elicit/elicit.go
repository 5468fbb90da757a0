// Package elicit drives the interactive confirmation protocol for
// sends that target untrusted recipients, including the deterministic
// fallback when the caller cannot do interactive confirmation.
package elicit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/mailwarden/internal/model"
)

// ErrUnsupported marks a transport that cannot perform interactive
// confirmation. It triggers the fallback policy, never a hard failure.
// Transport adapters are the only place that classifies raw errors
// into this value.
var ErrUnsupported = errors.New("elicitation not supported by transport")

// Action is what the user chose when accepting the confirmation.
type Action string

const (
	ActionSend      Action = "send"
	ActionSaveDraft Action = "save_draft"
	ActionCancel    Action = "cancel"
)

// ResponseKind is the top-level elicitation response.
type ResponseKind int

const (
	RespondDecline ResponseKind = iota
	RespondCancel
	RespondAccept
)

// Response is a typed transport reply.
type Response struct {
	Kind   ResponseKind
	Action Action // meaningful only for RespondAccept
}

// Transport presents a confirmation prompt to the interactive caller.
// The context carries the wait deadline; implementations must respect
// it. A transport that cannot prompt at all returns an error wrapping
// ErrUnsupported.
type Transport interface {
	Prompt(ctx context.Context, message string) (Response, error)
}

// FallbackPolicy is the process-level behavior when interactive
// confirmation is unavailable.
type FallbackPolicy string

const (
	FallbackBlock FallbackPolicy = "block"
	FallbackAllow FallbackPolicy = "allow"
	FallbackDraft FallbackPolicy = "draft"
)

// ParseFallbackPolicy validates a raw policy string. Empty means block,
// the conservative default.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return FallbackBlock, nil
	case FallbackBlock:
		return FallbackBlock, nil
	case FallbackAllow:
		return FallbackAllow, nil
	case FallbackDraft:
		return FallbackDraft, nil
	}
	return "", model.Invalid("fallback policy", "%q is not block, allow, or draft", s)
}

// Outcome is the terminal state of one confirmation session.
type Outcome string

const (
	// OutcomeProceed covers both NoSessionNeeded (nothing untrusted)
	// and an explicit Accept(send); Result.Fallback and
	// Result.SessionHeld distinguish the paths for reporting.
	OutcomeProceed   Outcome = "proceed"
	OutcomeDraft     Outcome = "draft"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeBlocked   Outcome = "blocked"
)

// Result describes how a session terminated and which side effect ran.
// Exactly one of MessageID/DraftID is set when a side effect happened.
type Result struct {
	Outcome     Outcome
	Fallback    bool // terminal state came from the fallback policy
	SessionHeld bool // a prompt round-trip actually happened
	MessageID   string
	DraftID     string
}

// DefaultTimeout bounds the wait for a transport response.
const DefaultTimeout = 300 * time.Second

// PromptMessage renders the confirmation question shown to the caller.
func PromptMessage(intent model.Intent, untrusted []string) string {
	if intent == "" {
		intent = model.IntentSend
	}
	return fmt.Sprintf(
		"The following recipients are not on your trusted list: %s. Confirm the %s, save it as a draft, or cancel.",
		strings.Join(untrusted, ", "), intent)
}
