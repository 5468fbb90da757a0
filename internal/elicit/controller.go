package elicit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/mailwarden/internal/model"
	"github.com/ppiankov/mailwarden/internal/trust"
)

// Store is the slice of the message store the controller needs for
// terminal side effects. The controller performs no other network I/O
// beyond the transport round-trip.
type Store interface {
	Send(ctx context.Context, msg model.OutboundMessage) (messageID string, err error)
	CreateDraft(ctx context.Context, msg model.OutboundMessage) (draftID string, err error)
}

// Controller runs one confirmation session per send request. Sessions
// are created and destroyed within a single call; nothing persists
// across requests, and elicitation is never retried automatically.
type Controller struct {
	Transport Transport // nil disables interactive confirmation
	Store     Store
	Policy    FallbackPolicy
	Timeout   time.Duration // zero means DefaultTimeout
}

// Run takes a gate decision and drives it to a terminal state,
// executing exactly one side effect (send or draft, never both).
// A transport error other than unsupported-capability or deadline
// expiry is a hard failure: the error is returned and nothing is sent.
func (c *Controller) Run(ctx context.Context, decision trust.Decision, msg model.OutboundMessage) (Result, error) {
	if len(decision.Untrusted) == 0 {
		return c.finishSend(ctx, Result{Outcome: OutcomeProceed}, msg)
	}

	if c.Transport == nil {
		return c.applyFallback(ctx, msg, false)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	promptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.Transport.Prompt(promptCtx, PromptMessage(msg.Intent, decision.Untrusted))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupported):
			return c.applyFallback(ctx, msg, true)
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// The prompt deadline expired, not the caller's context.
			// Distinct from an explicit decline so callers can say so.
			return Result{Outcome: OutcomeTimedOut, SessionHeld: true}, nil
		default:
			return Result{}, fmt.Errorf("elicitation transport: %w", err)
		}
	}

	res := Result{SessionHeld: true}
	switch resp.Kind {
	case RespondDecline, RespondCancel:
		res.Outcome = OutcomeCancelled
		return res, nil
	case RespondAccept:
		switch resp.Action {
		case ActionCancel:
			res.Outcome = OutcomeCancelled
			return res, nil
		case ActionSaveDraft:
			return c.finishDraft(ctx, res, msg)
		case ActionSend:
			res.Outcome = OutcomeProceed
			return c.finishSend(ctx, res, msg)
		}
	}
	return Result{}, fmt.Errorf("elicitation transport: unrecognized response %v", resp.Kind)
}

// applyFallback terminates the session per the configured policy.
func (c *Controller) applyFallback(ctx context.Context, msg model.OutboundMessage, sessionHeld bool) (Result, error) {
	res := Result{Fallback: true, SessionHeld: sessionHeld}
	switch c.Policy {
	case FallbackAllow:
		res.Outcome = OutcomeProceed
		return c.finishSend(ctx, res, msg)
	case FallbackDraft:
		return c.finishDraft(ctx, res, msg)
	default:
		res.Outcome = OutcomeBlocked
		return res, nil
	}
}

func (c *Controller) finishSend(ctx context.Context, res Result, msg model.OutboundMessage) (Result, error) {
	id, err := c.Store.Send(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("send: %w", err)
	}
	res.Outcome = OutcomeProceed
	res.MessageID = id
	return res, nil
}

func (c *Controller) finishDraft(ctx context.Context, res Result, msg model.OutboundMessage) (Result, error) {
	id, err := c.Store.CreateDraft(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("create draft: %w", err)
	}
	res.Outcome = OutcomeDraft
	res.DraftID = id
	return res, nil
}
