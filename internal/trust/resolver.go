package trust

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// GroupDirectory expands named or identified groups into member
// addresses and manages group membership. Expansion failures are
// non-fatal at the resolver layer; they are fatal to explicit
// membership mutations.
type GroupDirectory interface {
	Expand(ctx context.Context, ref Entry) ([]string, error)
	EnsureGroup(ctx context.Context, name string) (groupID string, err error)
	AddMembers(ctx context.Context, groupID string, emails []string) error
	RemoveMembers(ctx context.Context, groupID string, emails []string) error
	FindMembersByEmail(ctx context.Context, groupID, email string) ([]string, error)
}

// Set is a resolved trust set: lowercased, trimmed addresses.
type Set map[string]struct{}

// Contains reports case-insensitive membership.
func (s Set) Contains(addr string) bool {
	_, ok := s[normalize(addr)]
	return ok
}

// Empty reports whether no trust list is configured. An empty set
// means the gate is a no-op, not an implicit deny-all.
func (s Set) Empty() bool { return len(s) == 0 }

// Addresses returns the set's members sorted, for stable output.
func (s Set) Addresses() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// ResolveGroups expands each group reference through the directory.
// A failed lookup contributes zero members and a warning; resolution
// of the remaining groups continues. Output is deterministic for a
// given directory state regardless of input order.
func ResolveGroups(ctx context.Context, dir GroupDirectory, groups []Entry) (members []string, warnings []string) {
	for _, g := range groups {
		got, err := dir.Expand(ctx, g)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("expand %s: %v", g.Raw, err))
			continue
		}
		members = append(members, got...)
	}
	return members, warnings
}

// BuildSet lowercases, trims, unions, and dedupes literal addresses
// with resolved group members.
func BuildSet(literals, groupMembers []string) Set {
	set := make(Set, len(literals)+len(groupMembers))
	for _, a := range literals {
		if n := normalize(a); n != "" {
			set[n] = struct{}{}
		}
	}
	for _, a := range groupMembers {
		if n := normalize(a); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
