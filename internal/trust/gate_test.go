package trust

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/mailwarden/internal/model"
)

func TestEvaluateCaseInsensitive(t *testing.T) {
	set := BuildSet([]string{"user@example.com"}, nil)
	d := Evaluate(model.SendRequest{To: []string{"User@Example.com"}}, set)
	if len(d.Untrusted) != 0 {
		t.Errorf("untrusted = %v, want none", d.Untrusted)
	}
	if len(d.Trusted) != 1 || d.Trusted[0] != "user@example.com" {
		t.Errorf("trusted = %v, want normalized user@example.com", d.Trusted)
	}
}

func TestEvaluateEmptySetTrustsEveryone(t *testing.T) {
	d := Evaluate(model.SendRequest{
		To: []string{"anyone@anywhere.com"},
		Cc: []string{"else@other.com"},
	}, BuildSet(nil, nil))
	if len(d.Untrusted) != 0 {
		t.Errorf("empty trust set must be a no-op gate, got untrusted %v", d.Untrusted)
	}
	if len(d.Trusted) != 2 {
		t.Errorf("trusted = %v, want both recipients", d.Trusted)
	}
}

func TestEvaluatePartitionsAllFields(t *testing.T) {
	set := BuildSet([]string{"ok@x.com"}, nil)
	d := Evaluate(model.SendRequest{
		To:  []string{"ok@x.com"},
		Cc:  []string{"bad@y.com"},
		Bcc: []string{"worse@z.com"},
	}, set)
	if !reflect.DeepEqual(d.Untrusted, []string{"bad@y.com", "worse@z.com"}) {
		t.Errorf("untrusted = %v", d.Untrusted)
	}
}

func TestSplitRecipientsCommaJoined(t *testing.T) {
	got := SplitRecipients(model.SendRequest{
		To: []string{"a@x.com, B@Y.com ,a@x.com"},
		Cc: []string{"c@z.com"},
	})
	want := []string{"a@x.com", "b@y.com", "c@z.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitRecipients = %v, want %v", got, want)
	}
}

func TestNoLiteralGroupLeak(t *testing.T) {
	// Regression: a recipient written as "group:VIP" must be expanded to
	// concrete members before evaluation and never appear verbatim in
	// the decision.
	dir := newFakeDirectory()
	dir.members["vip"] = []string{"vip1@x.com", "vip2@x.com"}

	recipients := SplitRecipients(model.SendRequest{To: []string{"group:VIP", "plain@y.com"}})
	expanded, err := ExpandRecipientGroups(context.Background(), dir, recipients)
	if err != nil {
		t.Fatalf("ExpandRecipientGroups: %v", err)
	}

	set := BuildSet([]string{"vip1@x.com"}, nil)
	d := Evaluate(model.SendRequest{To: expanded}, set)
	for _, u := range append(d.Trusted, d.Untrusted...) {
		if strings.HasPrefix(u, "group:") || strings.HasPrefix(u, "groupid:") {
			t.Fatalf("group token leaked into decision: %q", u)
		}
	}
	if !reflect.DeepEqual(d.Untrusted, []string{"vip2@x.com", "plain@y.com"}) {
		t.Errorf("untrusted = %v", d.Untrusted)
	}
}

func TestExpandRecipientGroupsFailureRejects(t *testing.T) {
	// An unresolvable group recipient is an explicit ask the gate cannot
	// honor: the whole request is rejected, nothing is silently dropped.
	dir := newFakeDirectory() // knows no groups
	_, err := ExpandRecipientGroups(context.Background(), dir, []string{"group:missing", "a@b.com"})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !strings.Contains(verr.Error(), "group:missing") {
		t.Errorf("error %q does not name the failing token", verr.Error())
	}
}

func TestExpandRecipientGroupsNoDirectory(t *testing.T) {
	_, err := ExpandRecipientGroups(context.Background(), nil, []string{"group:VIP"})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
