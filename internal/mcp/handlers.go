package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/mailwarden/internal/audit"
	"github.com/ppiankov/mailwarden/internal/elicit"
	"github.com/ppiankov/mailwarden/internal/model"
	"github.com/ppiankov/mailwarden/internal/retro"
	"github.com/ppiankov/mailwarden/internal/rules"
	"github.com/ppiankov/mailwarden/internal/trust"
)

// --- Input/Output types ---

// SendInput defines parameters for the mailwarden_send tool.
type SendInput struct {
	To      []string `json:"to" jsonschema:"recipient addresses; each entry may be comma-joined"`
	Cc      []string `json:"cc,omitempty" jsonschema:"cc addresses"`
	Bcc     []string `json:"bcc,omitempty" jsonschema:"bcc addresses"`
	Subject string   `json:"subject,omitempty" jsonschema:"message subject"`
	Body    string   `json:"body,omitempty" jsonschema:"plain-text body"`
	Intent  string   `json:"intent,omitempty" jsonschema:"send, forward, or reply; defaults to send"`
}

// SendOutput reports the terminal state of the send.
type SendOutput struct {
	Outcome   string   `json:"outcome"`
	MessageID string   `json:"message_id,omitempty"`
	DraftID   string   `json:"draft_id,omitempty"`
	Untrusted []string `json:"untrusted,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// TrustInput defines parameters for the mailwarden_trust tool.
type TrustInput struct {
	Op    string `json:"op" jsonschema:"add, remove, or view"`
	Entry string `json:"entry,omitempty" jsonschema:"address or group reference, required for add/remove"`
}

// TrustOutput reports the list operation.
type TrustOutput struct {
	Changed bool              `json:"changed,omitempty"`
	Entries []trust.ViewEntry `json:"entries,omitempty"`
}

// TrustLabelInput defines parameters for the mailwarden_trust_label tool.
type TrustLabelInput struct {
	Op     string   `json:"op" jsonschema:"add or remove"`
	Group  string   `json:"group" jsonschema:"contact group name"`
	Emails []string `json:"emails" jsonschema:"addresses to add or remove"`
}

// TrustLabelOutput reports the membership change.
type TrustLabelOutput struct {
	GroupID string `json:"group_id,omitempty"`
	Count   int    `json:"count"`
}

// FilterInput defines parameters for the mailwarden_filter tool.
type FilterInput struct {
	Op          string `json:"op" jsonschema:"create, get, delete, or list"`
	ID          string `json:"id,omitempty" jsonschema:"rule id, required for get/delete"`
	Retroactive bool   `json:"retroactive,omitempty" jsonschema:"on create, also apply the rule to existing messages"`

	From           string `json:"from,omitempty" jsonschema:"match sender"`
	To             string `json:"to,omitempty" jsonschema:"match recipient"`
	Subject        string `json:"subject,omitempty" jsonschema:"match subject"`
	Query          string `json:"query,omitempty" jsonschema:"raw search expression, ANDed with the other criteria"`
	HasAttachment  bool   `json:"has_attachment,omitempty" jsonschema:"match messages with attachments"`
	SizeBytes      int64  `json:"size_bytes,omitempty" jsonschema:"size threshold in bytes"`
	SizeComparison string `json:"size_comparison,omitempty" jsonschema:"larger or smaller; defaults to larger"`

	AddLabelIDs    []string `json:"add_label_ids,omitempty" jsonschema:"labels the rule adds"`
	RemoveLabelIDs []string `json:"remove_label_ids,omitempty" jsonschema:"labels the rule removes"`
}

// FilterOutput reports the rule operation.
type FilterOutput struct {
	Rule     *rules.Record  `json:"rule,omitempty"`
	Rules    []rules.Record `json:"rules,omitempty"`
	RetroRun *retro.Report  `json:"retro_run,omitempty"`
	Summary  string         `json:"summary,omitempty"`
	Deleted  bool           `json:"deleted,omitempty"`
}

// --- Handlers ---

func (s *Server) handleSend(ctx context.Context, req *mcpsdk.CallToolRequest, input SendInput) (*mcpsdk.CallToolResult, SendOutput, error) {
	intent, ok := model.ParseIntent(input.Intent)
	if !ok {
		return nil, SendOutput{}, model.Invalid("intent", "%q is not send, forward, or reply", input.Intent)
	}
	sendReq := model.SendRequest{To: input.To, Cc: input.Cc, Bcc: input.Bcc, Intent: intent}
	if len(trust.SplitRecipients(sendReq)) == 0 {
		return nil, SendOutput{}, model.Invalid("to", "at least one recipient required")
	}

	set, warnings, err := s.trust.ResolveSet(ctx)
	if err != nil {
		return nil, SendOutput{}, fmt.Errorf("resolve trust list: %w", err)
	}

	// Group tokens used directly as recipients expand through the same
	// directory before the gate sees them, field by field: the message
	// handed to the store carries the expanded members, never the token.
	expandField := func(field []string) ([]string, error) {
		return trust.ExpandRecipientGroups(ctx, s.trust.Dir,
			trust.SplitRecipients(model.SendRequest{To: field}))
	}
	to, err := expandField(input.To)
	if err != nil {
		return nil, SendOutput{}, err
	}
	cc, err := expandField(input.Cc)
	if err != nil {
		return nil, SendOutput{}, err
	}
	bcc, err := expandField(input.Bcc)
	if err != nil {
		return nil, SendOutput{}, err
	}

	decision := trust.Evaluate(model.SendRequest{To: to, Cc: cc, Bcc: bcc, Intent: intent}, set)
	s.record(audit.Event{
		Kind:           audit.KindGateDecision,
		Intent:         string(intent),
		TrustedCount:   len(decision.Trusted),
		UntrustedCount: len(decision.Untrusted),
	})

	msg := model.OutboundMessage{
		To:      to,
		Cc:      cc,
		Bcc:     bcc,
		Subject: input.Subject,
		Body:    input.Body,
		Intent:  intent,
	}
	result, err := s.controllerFor(req.Session).Run(ctx, decision, msg)
	if err != nil {
		return nil, SendOutput{}, err
	}
	s.record(audit.Event{
		Kind:     audit.KindElicitation,
		Intent:   string(intent),
		Outcome:  string(result.Outcome),
		Fallback: result.Fallback,
	})

	out := SendOutput{
		Outcome:   string(result.Outcome),
		MessageID: result.MessageID,
		DraftID:   result.DraftID,
		Fallback:  result.Fallback,
		Warnings:  warnings,
	}
	for _, u := range decision.Untrusted {
		out.Untrusted = append(out.Untrusted, trust.MaskAddress(u))
	}
	if result.Outcome == elicit.OutcomeBlocked {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleTrust(ctx context.Context, req *mcpsdk.CallToolRequest, input TrustInput) (*mcpsdk.CallToolResult, TrustOutput, error) {
	switch strings.ToLower(input.Op) {
	case "add":
		added, err := s.trust.Add(input.Entry)
		if err != nil {
			return nil, TrustOutput{}, err
		}
		if added {
			s.record(audit.Event{Kind: audit.KindTrustChange, Change: "add", Target: maskToken(input.Entry)})
		}
		return nil, TrustOutput{Changed: added}, nil
	case "remove":
		removed, err := s.trust.Remove(input.Entry)
		if err != nil {
			return nil, TrustOutput{}, err
		}
		if removed {
			s.record(audit.Event{Kind: audit.KindTrustChange, Change: "remove", Target: maskToken(input.Entry)})
		}
		return nil, TrustOutput{Changed: removed}, nil
	case "view":
		entries, err := s.trust.View()
		if err != nil {
			return nil, TrustOutput{}, err
		}
		return nil, TrustOutput{Entries: entries}, nil
	}
	return nil, TrustOutput{}, model.Invalid("op", "%q is not add, remove, or view", input.Op)
}

func (s *Server) handleTrustLabel(ctx context.Context, req *mcpsdk.CallToolRequest, input TrustLabelInput) (*mcpsdk.CallToolResult, TrustLabelOutput, error) {
	switch strings.ToLower(input.Op) {
	case "add":
		id, err := s.trust.LabelAdd(ctx, input.Group, input.Emails)
		if err != nil {
			return nil, TrustLabelOutput{}, err
		}
		s.record(audit.Event{Kind: audit.KindTrustChange, Change: "label_add", Target: input.Group})
		return nil, TrustLabelOutput{GroupID: id, Count: len(input.Emails)}, nil
	case "remove":
		if err := s.trust.LabelRemove(ctx, input.Group, input.Emails); err != nil {
			return nil, TrustLabelOutput{}, err
		}
		s.record(audit.Event{Kind: audit.KindTrustChange, Change: "label_remove", Target: input.Group})
		return nil, TrustLabelOutput{Count: len(input.Emails)}, nil
	}
	return nil, TrustLabelOutput{}, model.Invalid("op", "%q is not add or remove", input.Op)
}

func (s *Server) handleFilter(ctx context.Context, req *mcpsdk.CallToolRequest, input FilterInput) (*mcpsdk.CallToolResult, FilterOutput, error) {
	switch strings.ToLower(input.Op) {
	case "create":
		sel, err := selectorFromInput(input)
		if err != nil {
			return nil, FilterOutput{}, err
		}
		action := model.RuleAction{AddLabelIDs: input.AddLabelIDs, RemoveLabelIDs: input.RemoveLabelIDs}
		res, err := s.rules.Create(ctx, sel, action, input.Retroactive)
		if err != nil {
			return nil, FilterOutput{}, err
		}
		out := FilterOutput{Rule: &res.Rule, RetroRun: res.RetroRun}
		if res.RetroRun != nil {
			out.Summary = res.RetroRun.Summary()
			s.record(audit.Event{
				Kind:       audit.KindRetroRun,
				RunID:      res.RetroRun.RunID,
				TotalFound: res.RetroRun.TotalFound,
				Processed:  res.RetroRun.Processed,
				ErrorCount: res.RetroRun.ErrorCount,
			})
		}
		s.record(audit.Event{Kind: audit.KindRuleChange, Change: "create", Target: res.Rule.ID})
		return nil, out, nil

	case "get":
		rec, err := s.rules.Get(ctx, input.ID)
		if err != nil {
			return nil, FilterOutput{}, err
		}
		return nil, FilterOutput{Rule: rec}, nil

	case "delete":
		if err := s.rules.Delete(ctx, input.ID); err != nil {
			return nil, FilterOutput{}, err
		}
		s.record(audit.Event{Kind: audit.KindRuleChange, Change: "delete", Target: input.ID})
		return nil, FilterOutput{Deleted: true}, nil

	case "list":
		recs, err := s.rules.List(ctx)
		if err != nil {
			return nil, FilterOutput{}, err
		}
		return nil, FilterOutput{Rules: recs}, nil
	}
	return nil, FilterOutput{}, model.Invalid("op", "%q is not create, get, delete, or list", input.Op)
}

// --- Helpers ---

func selectorFromInput(input FilterInput) (model.RuleSelector, error) {
	sel := model.RuleSelector{
		From:          input.From,
		To:            input.To,
		Subject:       input.Subject,
		Query:         input.Query,
		HasAttachment: input.HasAttachment,
		SizeBytes:     input.SizeBytes,
	}
	cmp, err := model.ParseSizeComparison(input.SizeComparison)
	if err != nil {
		return model.RuleSelector{}, err
	}
	if input.SizeBytes > 0 {
		sel.SizeComparison = cmp
	}
	return sel, nil
}

// maskToken redacts literal addresses before they reach the audit log;
// group tokens are not personal data and stay readable.
func maskToken(raw string) string {
	e, ok := trust.ParseToken(raw)
	if !ok {
		return ""
	}
	if e.IsGroup() {
		return e.Raw
	}
	return trust.MaskAddress(e.Value)
}
