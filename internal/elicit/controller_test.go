package elicit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ppiankov/mailwarden/internal/model"
	"github.com/ppiankov/mailwarden/internal/trust"
)

// fakeStore counts side effects so tests can assert exactly-one.
type fakeStore struct {
	sends  int
	drafts int
}

func (s *fakeStore) Send(ctx context.Context, msg model.OutboundMessage) (string, error) {
	s.sends++
	return "msg-1", nil
}

func (s *fakeStore) CreateDraft(ctx context.Context, msg model.OutboundMessage) (string, error) {
	s.drafts++
	return "draft-1", nil
}

// scriptTransport returns a canned response or error once.
type scriptTransport struct {
	resp    Response
	err     error
	prompts int
}

func (t *scriptTransport) Prompt(ctx context.Context, message string) (Response, error) {
	t.prompts++
	if t.err != nil {
		return Response{}, t.err
	}
	return t.resp, nil
}

// stallTransport never answers; it waits for the deadline.
type stallTransport struct{}

func (stallTransport) Prompt(ctx context.Context, message string) (Response, error) {
	<-ctx.Done()
	return Response{}, ctx.Err()
}

func untrustedDecision() trust.Decision {
	return trust.Decision{Untrusted: []string{"stranger@x.com"}}
}

func TestNoSessionWhenAllTrusted(t *testing.T) {
	store := &fakeStore{}
	tr := &scriptTransport{}
	c := &Controller{Transport: tr, Store: store, Policy: FallbackBlock}

	res, err := c.Run(context.Background(), trust.Decision{Trusted: []string{"ok@x.com"}}, model.OutboundMessage{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeProceed || res.SessionHeld {
		t.Errorf("res = %+v, want proceed without a session", res)
	}
	if tr.prompts != 0 {
		t.Error("transport must not be prompted when nothing is untrusted")
	}
	if store.sends != 1 || store.drafts != 0 {
		t.Errorf("side effects: sends=%d drafts=%d, want one send", store.sends, store.drafts)
	}
}

func TestAcceptSendProceeds(t *testing.T) {
	store := &fakeStore{}
	c := &Controller{
		Transport: &scriptTransport{resp: Response{Kind: RespondAccept, Action: ActionSend}},
		Store:     store,
		Policy:    FallbackBlock,
	}
	res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeProceed || res.MessageID != "msg-1" {
		t.Errorf("res = %+v", res)
	}
	if store.sends != 1 || store.drafts != 0 {
		t.Errorf("sends=%d drafts=%d", store.sends, store.drafts)
	}
}

func TestAcceptSaveDraft(t *testing.T) {
	store := &fakeStore{}
	c := &Controller{
		Transport: &scriptTransport{resp: Response{Kind: RespondAccept, Action: ActionSaveDraft}},
		Store:     store,
		Policy:    FallbackBlock,
	}
	res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDraft || res.DraftID != "draft-1" {
		t.Errorf("res = %+v", res)
	}
	if store.sends != 0 || store.drafts != 1 {
		t.Errorf("sends=%d drafts=%d, want draft only", store.sends, store.drafts)
	}
}

func TestDeclineAndAcceptCancelBothCancel(t *testing.T) {
	for _, resp := range []Response{
		{Kind: RespondDecline},
		{Kind: RespondCancel},
		{Kind: RespondAccept, Action: ActionCancel},
	} {
		store := &fakeStore{}
		c := &Controller{Transport: &scriptTransport{resp: resp}, Store: store, Policy: FallbackAllow}
		res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
		if err != nil {
			t.Fatal(err)
		}
		if res.Outcome != OutcomeCancelled {
			t.Errorf("resp %+v: outcome = %v, want cancelled", resp, res.Outcome)
		}
		if store.sends+store.drafts != 0 {
			t.Errorf("resp %+v: side effects ran on cancel", resp)
		}
	}
}

func TestTimeoutDistinctFromCancelled(t *testing.T) {
	store := &fakeStore{}
	c := &Controller{
		Transport: stallTransport{},
		Store:     store,
		Policy:    FallbackAllow,
		Timeout:   20 * time.Millisecond,
	}
	res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Errorf("outcome = %v, want timed_out (not cancelled)", res.Outcome)
	}
	if store.sends+store.drafts != 0 {
		t.Error("timeout must not execute side effects")
	}
}

func TestUnsupportedFallsBackToDraft(t *testing.T) {
	store := &fakeStore{}
	c := &Controller{
		Transport: &scriptTransport{err: fmt.Errorf("negotiate: %w", ErrUnsupported)},
		Store:     store,
		Policy:    FallbackDraft,
	}
	res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDraft || !res.Fallback {
		t.Errorf("res = %+v, want fallback draft", res)
	}
	if store.drafts != 1 || store.sends != 0 {
		t.Errorf("drafts=%d sends=%d, want createDraft exactly once and never send",
			store.drafts, store.sends)
	}
}

func TestUnsupportedFallbackBlockAndAllow(t *testing.T) {
	for policy, want := range map[FallbackPolicy]Outcome{
		FallbackBlock: OutcomeBlocked,
		FallbackAllow: OutcomeProceed,
	} {
		store := &fakeStore{}
		c := &Controller{
			Transport: &scriptTransport{err: ErrUnsupported},
			Store:     store,
			Policy:    policy,
		}
		res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
		if err != nil {
			t.Fatal(err)
		}
		if res.Outcome != want || !res.Fallback {
			t.Errorf("policy %s: res = %+v, want %v via fallback", policy, res, want)
		}
		wantSends := 0
		if policy == FallbackAllow {
			wantSends = 1
		}
		if store.sends != wantSends || store.drafts != 0 {
			t.Errorf("policy %s: sends=%d drafts=%d", policy, store.sends, store.drafts)
		}
	}
}

func TestInteractiveDisabledUsesFallback(t *testing.T) {
	store := &fakeStore{}
	c := &Controller{Transport: nil, Store: store, Policy: FallbackBlock}
	res, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeBlocked || !res.Fallback || res.SessionHeld {
		t.Errorf("res = %+v, want blocked fallback without session", res)
	}
}

func TestTransportHardFailure(t *testing.T) {
	store := &fakeStore{}
	c := &Controller{
		Transport: &scriptTransport{err: errors.New("connection reset")},
		Store:     store,
		Policy:    FallbackAllow,
	}
	_, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{})
	if err == nil {
		t.Fatal("hard transport failure must surface as an error")
	}
	if store.sends+store.drafts != 0 {
		t.Error("nothing may be transmitted after a hard failure")
	}
}

func TestSingleAttemptPerRequest(t *testing.T) {
	tr := &scriptTransport{resp: Response{Kind: RespondDecline}}
	c := &Controller{Transport: tr, Store: &fakeStore{}, Policy: FallbackBlock}
	if _, err := c.Run(context.Background(), untrustedDecision(), model.OutboundMessage{}); err != nil {
		t.Fatal(err)
	}
	if tr.prompts != 1 {
		t.Errorf("prompts = %d, want exactly one attempt", tr.prompts)
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	for in, want := range map[string]FallbackPolicy{
		"":      FallbackBlock,
		"block": FallbackBlock,
		"Allow": FallbackAllow,
		"DRAFT": FallbackDraft,
	} {
		got, err := ParseFallbackPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseFallbackPolicy(%q) = (%v, %v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseFallbackPolicy("explode"); err == nil {
		t.Error("unknown policy should be rejected")
	}
}
