package trust

import (
	"context"

	"github.com/ppiankov/mailwarden/internal/model"
)

// Decision partitions a send request's recipients against the trust set.
// Both slices are normalized (lowercased, deduplicated) and contain only
// concrete addresses — never literal group:/groupId: tokens.
type Decision struct {
	Trusted   []string
	Untrusted []string
}

// SplitRecipients flattens to/cc/bcc into one normalized candidate list.
// This is the single point that resolves the "string may be comma-joined"
// input shape; callers and the gate never re-inspect it. Order of first
// appearance is preserved; duplicates collapse.
func SplitRecipients(req model.SendRequest) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, field := range [][]string{req.To, req.Cc, req.Bcc} {
		for _, raw := range field {
			for _, part := range splitComma(raw) {
				n := normalize(part)
				if n == "" {
					continue
				}
				if _, dup := seen[n]; dup {
					continue
				}
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	return out
}

// ExpandRecipientGroups replaces any recipient written as a group token
// with that group's concrete members, via the same directory path used
// when the trust set itself is built. A group token must never survive
// to the decision, and a recipient is an explicit ask: expansion failure
// rejects the request rather than silently narrowing the audience.
func ExpandRecipientGroups(ctx context.Context, dir GroupDirectory, recipients []string) ([]string, error) {
	var expanded []string
	for _, r := range recipients {
		e, ok := ParseToken(r)
		if !ok {
			continue
		}
		if !e.IsGroup() {
			expanded = append(expanded, r)
			continue
		}
		if dir == nil {
			return nil, model.Invalid("recipient", "%s: no group directory configured", e.Raw)
		}
		members, err := dir.Expand(ctx, e)
		if err != nil {
			return nil, model.Invalid("recipient", "%s: %v", e.Raw, err)
		}
		expanded = append(expanded, members...)
	}
	return expanded, nil
}

// Evaluate partitions the request's recipients against the trust set.
// Recipients must already be concrete addresses (see
// ExpandRecipientGroups); the gate does not special-case group prefixes.
// An empty trust set trusts everyone.
func Evaluate(req model.SendRequest, set Set) Decision {
	candidates := SplitRecipients(req)
	if set.Empty() {
		return Decision{Trusted: candidates}
	}
	var d Decision
	for _, c := range candidates {
		if set.Contains(c) {
			d.Trusted = append(d.Trusted, c)
		} else {
			d.Untrusted = append(d.Untrusted, c)
		}
	}
	return d
}

func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return parts
}
