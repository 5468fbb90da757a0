package gmail

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/ppiankov/mailwarden/internal/model"
)

func decodeRaw(t *testing.T, raw string) string {
	t.Helper()
	b, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw message is not base64url: %v", err)
	}
	return string(b)
}

func TestEncodeRFC822(t *testing.T) {
	msg := model.OutboundMessage{
		To:      []string{"a@example.com", "b@example.com"},
		Cc:      []string{"c@example.com"},
		Subject: "quarterly numbers",
		Body:    "see attached",
	}
	text := decodeRaw(t, encodeRFC822(msg))

	if !strings.Contains(text, "To: a@example.com, b@example.com\r\n") {
		t.Errorf("To header missing or malformed:\n%s", text)
	}
	if !strings.Contains(text, "Cc: c@example.com\r\n") {
		t.Errorf("Cc header missing:\n%s", text)
	}
	if strings.Contains(text, "Bcc:") {
		t.Error("empty Bcc must not emit a header")
	}
	if !strings.Contains(text, "Subject: quarterly numbers\r\n") {
		t.Errorf("Subject header missing:\n%s", text)
	}
	if !strings.HasSuffix(text, "\r\n\r\nsee attached") {
		t.Errorf("body not separated from headers:\n%q", text)
	}
}

func TestEncodeRFC822StripsHeaderInjection(t *testing.T) {
	msg := model.OutboundMessage{
		To:      []string{"a@example.com"},
		Subject: "hi\r\nBcc: evil@example.com",
		Body:    "x",
	}
	text := decodeRaw(t, encodeRFC822(msg))
	if strings.Contains(text, "evil@example.com") && strings.Contains(text, "Bcc:") {
		t.Errorf("newlines in subject must not become headers:\n%q", text)
	}
}

func TestCriteriaRoundTrip(t *testing.T) {
	sel := model.RuleSelector{
		From:           "billing@vendor.com",
		Subject:        "invoice",
		HasAttachment:  true,
		SizeBytes:      5 << 20,
		SizeComparison: model.SizeSmaller,
	}
	got := fromCriteria(toCriteria(sel))
	if got != sel {
		t.Errorf("round trip changed the selector:\n got %+v\nwant %+v", got, sel)
	}

	if got := fromCriteria(nil); !got.IsZero() {
		t.Errorf("nil criteria should map to a zero selector, got %+v", got)
	}
}

func TestToCriteriaDefaultsSizeComparison(t *testing.T) {
	crit := toCriteria(model.RuleSelector{SizeBytes: 100})
	if crit.SizeComparison != string(model.SizeLarger) {
		t.Errorf("size comparison = %q, want larger by default", crit.SizeComparison)
	}
	crit = toCriteria(model.RuleSelector{From: "a@b.com"})
	if crit.Size != 0 || crit.SizeComparison != "" {
		t.Errorf("zero size must not set size fields: %+v", crit)
	}
}

func TestWrapAPIErr(t *testing.T) {
	if err := wrapAPIErr("op", "", "", nil); err != nil {
		t.Fatalf("nil in, non-nil out: %v", err)
	}

	var authErr *model.AuthError
	err := wrapAPIErr("op", "", "", &googleapi.Error{Code: http.StatusForbidden})
	if !errors.As(err, &authErr) {
		t.Errorf("403: err = %v, want AuthError", err)
	}
	err = wrapAPIErr("op", "", "", &googleapi.Error{Code: http.StatusUnauthorized})
	if !errors.As(err, &authErr) {
		t.Errorf("401: err = %v, want AuthError", err)
	}

	var nf *model.NotFoundError
	err = wrapAPIErr("get filter", "filter", "flt-9", &googleapi.Error{Code: http.StatusNotFound})
	if !errors.As(err, &nf) || nf.ID != "flt-9" {
		t.Errorf("404: err = %v, want NotFoundError echoing the id", err)
	}

	// 404 without an id stays a plain wrapped error.
	err = wrapAPIErr("list", "", "", &googleapi.Error{Code: http.StatusNotFound})
	if errors.As(err, &nf) {
		t.Errorf("404 with no id should not fabricate a NotFoundError: %v", err)
	}

	err = wrapAPIErr("list messages", "", "", &googleapi.Error{Code: http.StatusInternalServerError})
	if !strings.Contains(err.Error(), "list messages") {
		t.Errorf("wrapped error should carry the operation: %v", err)
	}
}

func TestNormalizeGroupResource(t *testing.T) {
	if got := normalizeGroupResource("abc123"); got != "contactGroups/abc123" {
		t.Errorf("bare id: %s", got)
	}
	if got := normalizeGroupResource("contactGroups/abc123"); got != "contactGroups/abc123" {
		t.Errorf("full resource: %s", got)
	}
}
