package trust

import "testing"

func TestSplitGroupPrefixes(t *testing.T) {
	cases := []struct {
		token string
		group bool
		kind  EntryKind
		value string
	}{
		{"alice@example.com", false, EntryLiteral, "alice@example.com"},
		{"group:VIP", true, EntryGroupName, "VIP"},
		{"Group: VIP", true, EntryGroupName, "VIP"},
		{"GROUP:ops", true, EntryGroupName, "ops"},
		{"groupId:contactGroups/abc123", true, EntryGroupID, "contactGroups/abc123"},
		{"GroupID:xyz", true, EntryGroupID, "xyz"},
		{"  bob@corp.io  ", false, EntryLiteral, "bob@corp.io"},
		{"groupless@example.com", false, EntryLiteral, "groupless@example.com"},
	}
	for _, c := range cases {
		e, ok := ParseToken(c.token)
		if !ok {
			t.Errorf("ParseToken(%q) dropped a non-empty token", c.token)
			continue
		}
		if e.IsGroup() != c.group {
			t.Errorf("ParseToken(%q) group=%v, want %v", c.token, e.IsGroup(), c.group)
		}
		if e.Kind != c.kind || e.Value != c.value {
			t.Errorf("ParseToken(%q) = kind %v value %q, want kind %v value %q",
				c.token, e.Kind, e.Value, c.kind, c.value)
		}
	}
}

func TestSplitDropsEmptyTokens(t *testing.T) {
	literals, groups := Split([]string{"", "   ", "\t", "a@b.com", "group:x"})
	if len(literals) != 1 || literals[0] != "a@b.com" {
		t.Errorf("literals = %v, want [a@b.com]", literals)
	}
	if len(groups) != 1 || groups[0].Value != "x" {
		t.Errorf("groups = %v, want one entry for x", groups)
	}
}

func TestSplitPartitionIsExhaustive(t *testing.T) {
	in := []string{"a@b.com", "group:g1", "c@d.com", "groupId:g2", " "}
	literals, groups := Split(in)
	if len(literals)+len(groups) != 4 {
		t.Errorf("partition lost tokens: %d literals + %d groups, want 4 total",
			len(literals), len(groups))
	}
}

func TestParseTokenKeepsRawForm(t *testing.T) {
	e, ok := ParseToken("  Group:VIP Customers  ")
	if !ok {
		t.Fatal("token dropped")
	}
	if e.Raw != "Group:VIP Customers" {
		t.Errorf("Raw = %q, want trimmed original", e.Raw)
	}
	if e.Value != "VIP Customers" {
		t.Errorf("Value = %q, want %q", e.Value, "VIP Customers")
	}
}
