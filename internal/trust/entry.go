// Package trust implements the outbound trust list: token parsing,
// group expansion, recipient gating, and the persisted list itself.
// Addresses on the resolved trust set bypass interactive confirmation.
package trust

import "strings"

// EntryKind discriminates trust-list entry variants.
type EntryKind int

const (
	EntryLiteral EntryKind = iota
	EntryGroupName
	EntryGroupID
)

const (
	groupNamePrefix = "group:"
	groupIDPrefix   = "groupid:"
)

// Entry is a single parsed trust-list token: either a literal address
// or a reference to a directory group by name or id. Immutable once parsed.
type Entry struct {
	Kind  EntryKind
	Value string // address, group name, or group resource id
	Raw   string // trimmed original token, kept for display
}

// IsGroup reports whether the entry references a directory group.
func (e Entry) IsGroup() bool {
	return e.Kind == EntryGroupName || e.Kind == EntryGroupID
}

// ParseToken classifies one raw trust-list token. A token is a group
// reference iff its trimmed, case-insensitive prefix is "group:" or
// "groupId:"; anything else is a literal address candidate. No RFC
// syntax validation happens here — malformed literals are the
// rule-creation surface's problem, not the resolver's.
// Returns ok=false for empty or whitespace-only tokens.
func ParseToken(raw string) (Entry, bool) {
	tok := strings.TrimSpace(raw)
	if tok == "" {
		return Entry{}, false
	}
	lower := strings.ToLower(tok)
	switch {
	case strings.HasPrefix(lower, groupIDPrefix):
		return Entry{Kind: EntryGroupID, Value: strings.TrimSpace(tok[len(groupIDPrefix):]), Raw: tok}, true
	case strings.HasPrefix(lower, groupNamePrefix):
		return Entry{Kind: EntryGroupName, Value: strings.TrimSpace(tok[len(groupNamePrefix):]), Raw: tok}, true
	}
	return Entry{Kind: EntryLiteral, Value: tok, Raw: tok}, true
}

// Split partitions raw tokens into literal address candidates and group
// references. Empty and whitespace-only tokens land in neither.
func Split(rawTokens []string) (literals []string, groups []Entry) {
	for _, raw := range rawTokens {
		e, ok := ParseToken(raw)
		if !ok {
			continue
		}
		if e.IsGroup() {
			groups = append(groups, e)
			continue
		}
		literals = append(literals, e.Value)
	}
	return literals, groups
}
