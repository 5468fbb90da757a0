package model

import (
	"fmt"
	"strings"
)

// SizeComparison selects which side of the size threshold matches.
type SizeComparison string

const (
	SizeLarger  SizeComparison = "larger"
	SizeSmaller SizeComparison = "smaller"
)

// ParseSizeComparison validates a raw comparison string. Empty defaults
// to larger, matching SearchQuery's rendering.
func ParseSizeComparison(s string) (SizeComparison, error) {
	switch SizeComparison(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return SizeLarger, nil
	case SizeLarger:
		return SizeLarger, nil
	case SizeSmaller:
		return SizeSmaller, nil
	}
	return "", Invalid("size_comparison", "%q is not larger or smaller", s)
}

// RuleSelector is the predicate a rule matches messages with.
// Fields combine with AND into a single search expression.
type RuleSelector struct {
	From           string         `json:"from,omitempty"`
	To             string         `json:"to,omitempty"`
	Subject        string         `json:"subject,omitempty"`
	Query          string         `json:"query,omitempty"`
	HasAttachment  bool           `json:"has_attachment,omitempty"`
	SizeBytes      int64          `json:"size_bytes,omitempty"`
	SizeComparison SizeComparison `json:"size_comparison,omitempty"`
}

// IsZero reports whether no criteria are set.
func (s RuleSelector) IsZero() bool {
	return s.From == "" && s.To == "" && s.Subject == "" && s.Query == "" &&
		!s.HasAttachment && s.SizeBytes == 0
}

// SearchQuery renders the selector as one search expression in Gmail
// operator syntax, the form the message store consumes directly.
func (s RuleSelector) SearchQuery() string {
	var parts []string
	if s.From != "" {
		parts = append(parts, "from:"+quoteTerm(s.From))
	}
	if s.To != "" {
		parts = append(parts, "to:"+quoteTerm(s.To))
	}
	if s.Subject != "" {
		parts = append(parts, "subject:"+quoteTerm(s.Subject))
	}
	if s.Query != "" {
		parts = append(parts, s.Query)
	}
	if s.HasAttachment {
		parts = append(parts, "has:attachment")
	}
	if s.SizeBytes > 0 {
		op := "larger"
		if s.SizeComparison == SizeSmaller {
			op = "smaller"
		}
		parts = append(parts, fmt.Sprintf("%s:%d", op, s.SizeBytes))
	}
	return strings.Join(parts, " ")
}

// quoteTerm wraps terms containing whitespace so they stay one operand.
func quoteTerm(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
