package trust

import (
	"testing"
	"unicode/utf8"
)

func TestMaskAddress(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"jane@example.com", "j…@example.com"},
		{"żaneta@example.com", "ż…@example.com"},
		{"日本@example.jp", "日…@example.jp"},
		{"token", "t…"},
		{"łabędź", "ł…"},
		{"", ""},
		{"@example.com", "@…"},
	}
	for _, c := range cases {
		got := MaskAddress(c.in)
		if got != c.want {
			t.Errorf("MaskAddress(%q) = %q, want %q", c.in, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("MaskAddress(%q) = %q is not valid UTF-8", c.in, got)
		}
	}
}
