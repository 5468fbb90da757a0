package model

import "strings"

// Intent classifies the outbound operation a send request belongs to.
type Intent string

const (
	IntentSend    Intent = "send"
	IntentForward Intent = "forward"
	IntentReply   Intent = "reply"
)

// ParseIntent validates a raw intent string. Empty defaults to send.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return IntentSend, true
	case IntentSend:
		return IntentSend, true
	case IntentForward:
		return IntentForward, true
	case IntentReply:
		return IntentReply, true
	}
	return "", false
}

// SendRequest carries the recipients of an outbound message.
// Each slice element may itself be a comma-joined list; normalization
// happens once, in trust.SplitRecipients, never downstream.
type SendRequest struct {
	To     []string
	Cc     []string
	Bcc    []string
	Intent Intent
}

// OutboundMessage is the content handed to the message store for
// send or draft creation. Body composition beyond plain headers+text
// is out of scope here.
type OutboundMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	Intent  Intent
}

// RuleAction is the label mutation a rule applies.
// Forwarding/spam/importance flags belong to the rule-creation surface
// and are not part of the retroactive-application contract.
type RuleAction struct {
	AddLabelIDs    []string `json:"add_label_ids,omitempty"`
	RemoveLabelIDs []string `json:"remove_label_ids,omitempty"`
}

// IsZero reports whether the action mutates nothing.
func (a RuleAction) IsZero() bool {
	return len(a.AddLabelIDs) == 0 && len(a.RemoveLabelIDs) == 0
}
