package history

import (
	"path/filepath"
	"reflect"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "user_data", "chat_history.json"))
}

func TestLoadEmptyHistory(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}

func TestAppendAssignsIDAndSession(t *testing.T) {
	s := newTestStore(t)
	e, err := s.Append(Entry{Question: "q", Answer: "a", Timestamp: "2026-03-01 10:30:00"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if e.ID == "" {
		t.Error("expected an assigned ID")
	}
	if e.Session != DefaultSession {
		t.Errorf("Session = %q, want %q", e.Session, DefaultSession)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Question != "q" {
		t.Errorf("reloaded entries = %+v", entries)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	for _, q := range []string{"first", "second", "third"} {
		if _, err := s.Append(Entry{Question: q}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Question)
	}
	if !reflect.DeepEqual(got, []string{"first", "second", "third"}) {
		t.Errorf("order = %v", got)
	}
}

func TestSessionsAndLoadSession(t *testing.T) {
	s := newTestStore(t)
	seed := []Entry{
		{Question: "q1", Session: "site-b"},
		{Question: "q2"},
		{Question: "q3", Session: "site-a"},
		{Question: "q4", Session: "site-a"},
	}
	for _, e := range seed {
		if _, err := s.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := s.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"default", "site-a", "site-b"}
	if !reflect.DeepEqual(sessions, want) {
		t.Errorf("Sessions = %v, want %v", sessions, want)
	}

	siteA, err := s.LoadSession("site-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(siteA) != 2 {
		t.Errorf("LoadSession(site-a) returned %d entries, want 2", len(siteA))
	}

	def, err := s.LoadSession("")
	if err != nil {
		t.Fatal(err)
	}
	if len(def) != 1 || def[0].Question != "q2" {
		t.Errorf("LoadSession(\"\") = %+v, want the default-session entry", def)
	}
}
