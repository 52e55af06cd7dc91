package journal

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndBySession(t *testing.T) {
	store := newTestStore(t)

	entries := []*Entry{
		{SessionID: "s1", Event: EventHandshake, ClientName: "blockbench", ClientVersion: "4.12"},
		{SessionID: "s1", Event: EventEvicted, Reason: "ping_failure"},
		{SessionID: "s2", Event: EventHandshake},
	}
	for _, e := range entries {
		if err := store.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Record() did not assign an id")
		}
	}

	got, err := store.BySession("s1")
	if err != nil {
		t.Fatalf("BySession() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("BySession(s1) returned %d entries, want 2", len(got))
	}
	if got[0].Event != EventHandshake || got[1].Event != EventEvicted {
		t.Errorf("events = %q, %q", got[0].Event, got[1].Event)
	}
	if got[0].ClientName != "blockbench" {
		t.Errorf("ClientName = %q", got[0].ClientName)
	}
	if got[1].Reason != "ping_failure" {
		t.Errorf("Reason = %q", got[1].Reason)
	}
}

func TestBySessionEmpty(t *testing.T) {
	store := newTestStore(t)
	got, err := store.BySession("ghost")
	if err != nil {
		t.Fatalf("BySession() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("BySession(ghost) returned %d entries", len(got))
	}
}

func TestRecentLimit(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := store.Record(&Entry{
			SessionID: "s1",
			Event:     EventHandshake,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent(3) returned %d entries", len(got))
	}
	// Newest first
	if !got[0].CreatedAt.After(got[2].CreatedAt) {
		t.Errorf("Recent() not ordered newest first: %v then %v", got[0].CreatedAt, got[2].CreatedAt)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	old := &Entry{SessionID: "s1", Event: EventClosed, CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &Entry{SessionID: "s2", Event: EventHandshake, CreatedAt: now}
	for _, e := range []*Entry{old, fresh} {
		if err := store.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	deleted, err := store.DeleteOlderThan(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteOlderThan() = %d, want 1", deleted)
	}

	remaining, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].SessionID != "s2" {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestJanitorRejectsBadInputs(t *testing.T) {
	store := newTestStore(t)

	if _, err := NewJanitor(store, "not a cron", 24*time.Hour); err == nil {
		t.Error("NewJanitor() accepted an invalid cron expression")
	}
	if _, err := NewJanitor(store, "0 3 * * *", 0); err == nil {
		t.Error("NewJanitor() accepted zero retention")
	}
	j, err := NewJanitor(store, "0 3 * * *", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewJanitor() error = %v", err)
	}
	j.Start()
	j.Stop()
}
