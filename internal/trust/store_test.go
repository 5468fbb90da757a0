package trust

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "trusted.txt"))
}

func TestFileStoreRoundTrip(t *testing.T) {
	st := newTestStore(t)
	tokens, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 0 {
		t.Errorf("fresh store should be empty, got %v", tokens)
	}

	want := []string{"a@b.com", "group:VIP"}
	if err := st.Save(want); err != nil {
		t.Fatal(err)
	}
	got, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestFileStoreTokenizesCommasAndLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trusted.txt")
	content := "# trusted senders\na@b.com, c@d.com\ngroup:ops\n\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a@b.com", "c@d.com", "group:ops"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestFileStoreDetectsExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trusted.txt")
	st := NewFileStore(path)
	if err := st.Save([]string{"a@b.com"}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(); err != nil {
		t.Fatal(err)
	}

	// Another writer mutates the file behind this store's back.
	if err := os.WriteFile(path, []byte("intruder@x.com\n"), 0600); err != nil {
		t.Fatal(err)
	}

	err := st.Save([]string{"a@b.com", "b@c.com"})
	if !errors.Is(err, ErrStale) {
		t.Errorf("Save after external write = %v, want ErrStale", err)
	}
}

func TestManagerAddIdempotent(t *testing.T) {
	m := &Manager{Store: newTestStore(t)}

	added, err := m.Add("vip@example.com")
	if err != nil || !added {
		t.Fatalf("first add = (%v, %v), want (true, nil)", added, err)
	}
	added, err = m.Add("VIP@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("second add of same entry should report already present")
	}

	tokens, err := m.Store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 {
		t.Errorf("list = %v, want exactly one entry", tokens)
	}
}

func TestManagerRemove(t *testing.T) {
	m := &Manager{Store: newTestStore(t)}
	if _, err := m.Add("a@b.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add("group:ops"); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Remove("A@B.com")
	if err != nil || !removed {
		t.Fatalf("remove = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = m.Remove("a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("removing an absent entry should report false")
	}

	tokens, _ := m.Store.Load()
	if !reflect.DeepEqual(tokens, []string{"group:ops"}) {
		t.Errorf("list = %v, want [group:ops]", tokens)
	}
}

func TestManagerViewMasksLiterals(t *testing.T) {
	m := &Manager{Store: newTestStore(t)}
	for _, tok := range []string{"jane@example.com", "group:VIP"} {
		if _, err := m.Add(tok); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := m.View()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].Masked != "j…@example.com" {
		t.Errorf("masked = %q, want j…@example.com", entries[0].Masked)
	}
	if entries[1].Group != "group:VIP" {
		t.Errorf("group entry = %q, want raw token", entries[1].Group)
	}
}

func TestManagerResolveSet(t *testing.T) {
	dir := newFakeDirectory()
	dir.members["ops"] = []string{"op1@x.com"}
	m := &Manager{Store: newTestStore(t), Dir: dir}
	for _, tok := range []string{"lit@x.com", "group:ops", "group:gone"} {
		if _, err := m.Add(tok); err != nil {
			t.Fatal(err)
		}
	}

	set, warnings, err := m.ResolveSet(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"lit@x.com", "op1@x.com"}
	if !reflect.DeepEqual(set.Addresses(), want) {
		t.Errorf("set = %v, want %v", set.Addresses(), want)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one for the missing group", warnings)
	}
}

func TestManagerLabelAdd(t *testing.T) {
	dir := newFakeDirectory()
	m := &Manager{Store: newTestStore(t), Dir: dir}

	id, err := m.LabelAdd(context.Background(), "VIP", []string{"a@b.com"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "id-VIP" {
		t.Errorf("group id = %q", id)
	}
	if !reflect.DeepEqual(dir.added["id-VIP"], []string{"a@b.com"}) {
		t.Errorf("added = %v", dir.added)
	}

	if _, err := m.LabelAdd(context.Background(), "", []string{"a@b.com"}); err == nil {
		t.Error("empty group name should be a validation error")
	}
	if _, err := m.LabelAdd(context.Background(), "VIP", nil); err == nil {
		t.Error("empty member list should be a validation error")
	}
}
