package trust

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/mailwarden/internal/model"
)

// Manager owns the trust-list verbs: add, remove, view, and the
// group-membership variants that delegate to the directory. Mutations
// are serialized under one mutex-free path: the store's optimistic
// guard rejects interleaved writers (see FileStore.Save).
type Manager struct {
	Store ListStore
	Dir   GroupDirectory
}

// ViewEntry is one listed trust entry, privacy-redacted for literals.
type ViewEntry struct {
	Masked string `json:"masked,omitempty"` // literal address, local part redacted
	Group  string `json:"group,omitempty"`  // raw group token
}

// Add appends a token to the persisted list. Reports added=false when
// the token is already present; the second add of the same entry must
// not duplicate it.
func (m *Manager) Add(token string) (added bool, err error) {
	e, ok := ParseToken(token)
	if !ok {
		return false, model.Invalid("trust entry", "empty token")
	}
	tokens, err := m.Store.Load()
	if err != nil {
		return false, err
	}
	for _, t := range tokens {
		if tokensEqual(t, e.Raw) {
			return false, nil
		}
	}
	tokens = append(tokens, e.Raw)
	if err := m.Store.Save(tokens); err != nil {
		return false, err
	}
	return true, nil
}

// Remove drops a token from the persisted list. Reports removed=false
// when the token was not present.
func (m *Manager) Remove(token string) (removed bool, err error) {
	e, ok := ParseToken(token)
	if !ok {
		return false, model.Invalid("trust entry", "empty token")
	}
	tokens, err := m.Store.Load()
	if err != nil {
		return false, err
	}
	kept := tokens[:0]
	for _, t := range tokens {
		if tokensEqual(t, e.Raw) {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return false, nil
	}
	if err := m.Store.Save(kept); err != nil {
		return false, err
	}
	return true, nil
}

// View returns the parsed list: literal addresses masked, group tokens raw.
func (m *Manager) View() ([]ViewEntry, error) {
	tokens, err := m.Store.Load()
	if err != nil {
		return nil, err
	}
	var out []ViewEntry
	for _, raw := range tokens {
		e, ok := ParseToken(raw)
		if !ok {
			continue
		}
		if e.IsGroup() {
			out = append(out, ViewEntry{Group: e.Raw})
			continue
		}
		out = append(out, ViewEntry{Masked: MaskAddress(e.Value)})
	}
	return out, nil
}

// ResolveSet loads the persisted list and builds the trust set,
// expanding group references through the directory. Group lookup
// failures surface as warnings, never as errors.
func (m *Manager) ResolveSet(ctx context.Context) (Set, []string, error) {
	tokens, err := m.Store.Load()
	if err != nil {
		return nil, nil, err
	}
	literals, groups := Split(tokens)
	var members, warnings []string
	if len(groups) > 0 && m.Dir != nil {
		members, warnings = ResolveGroups(ctx, m.Dir, groups)
	} else if len(groups) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d group token(s) skipped: no group directory configured", len(groups)))
	}
	return BuildSet(literals, members), warnings, nil
}

// LabelAdd adds addresses to the named directory group, creating the
// group if needed. Unlike resolver-side expansion, failures here are
// fatal: the caller asked for an explicit membership change.
func (m *Manager) LabelAdd(ctx context.Context, groupName string, emails []string) (string, error) {
	if m.Dir == nil {
		return "", model.Invalid("group directory", "not configured")
	}
	if groupName == "" {
		return "", model.Invalid("group", "name required")
	}
	if len(emails) == 0 {
		return "", model.Invalid("emails", "at least one address required")
	}
	id, err := m.Dir.EnsureGroup(ctx, groupName)
	if err != nil {
		return "", fmt.Errorf("ensure group %q: %w", groupName, err)
	}
	if err := m.Dir.AddMembers(ctx, id, emails); err != nil {
		return "", fmt.Errorf("add members to %q: %w", groupName, err)
	}
	return id, nil
}

// LabelRemove removes addresses from the named directory group.
func (m *Manager) LabelRemove(ctx context.Context, groupName string, emails []string) error {
	if m.Dir == nil {
		return model.Invalid("group directory", "not configured")
	}
	if groupName == "" {
		return model.Invalid("group", "name required")
	}
	id, err := m.Dir.EnsureGroup(ctx, groupName)
	if err != nil {
		return fmt.Errorf("ensure group %q: %w", groupName, err)
	}
	return m.Dir.RemoveMembers(ctx, id, emails)
}

// MaskAddress redacts the local part of an address for display:
// "jane@example.com" becomes "j…@example.com". Non-address tokens are
// masked down to their first rune.
func MaskAddress(addr string) string {
	if addr == "" {
		return addr
	}
	_, n := utf8.DecodeRuneInString(addr)
	at := strings.Index(addr, "@")
	if at <= 0 {
		return addr[:n] + "…"
	}
	if n > at {
		n = at
	}
	return addr[:n] + "…" + addr[at:]
}

func tokensEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
