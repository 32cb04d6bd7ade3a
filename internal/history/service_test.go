package history

import (
	"context"
	"testing"
	"time"

	"signaling-platform/internal/session"
)

func TestService_AppendRequiresCoreFields(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	bad := []Record{
		{},
		{CallID: "c1", CallerID: "a", RecipientID: "b"},                      // no final state
		{CallID: "c1", CallerID: "a", FinalState: "ended"},                   // no recipient
		{CallID: "c1", RecipientID: "b", FinalState: "ended"},                // no caller
		{CallerID: "a", RecipientID: "b", FinalState: "ended"},               // no call id
	}
	for i, rec := range bad {
		if err := svc.Append(context.Background(), rec); err != ErrInvalidRecord {
			t.Fatalf("case %d: expected ErrInvalidRecord, got %v", i, err)
		}
	}
}

func TestService_AppendStampsTimes(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return fixed }

	rec := Record{CallID: "c1", CallerID: "a", RecipientID: "b", FinalState: "ended"}
	if err := svc.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := repo.Records()
	if len(got) != 1 {
		t.Fatalf("expected 1 record")
	}
	if !got[0].CreatedAt.Equal(fixed) || !got[0].TerminatedAt.Equal(fixed) {
		t.Fatalf("expected default timestamps %v, got %+v", fixed, got[0])
	}
}

func TestService_RecentClampsLimit(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	for i := 0; i < 60; i++ {
		rec := Record{CallID: "c", CallerID: "a", RecipientID: "b", FinalState: "ended"}
		if err := svc.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	for _, limit := range []int{0, -5, 501} {
		got, err := svc.Recent(context.Background(), limit)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(got) != 50 {
			t.Fatalf("limit %d: expected clamp to 50, got %d", limit, len(got))
		}
	}
}

func TestMemoryRepo_RecentNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	for _, id := range []string{"c1", "c2", "c3"} {
		_ = repo.Append(context.Background(), Record{CallID: id})
	}
	got, err := repo.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].CallID != "c3" || got[1].CallID != "c2" {
		t.Fatalf("expected newest first, got %+v", got)
	}
}

func TestSessionArchiver_MapsSnapshot(t *testing.T) {
	repo := NewMemoryRepo()
	a := SessionArchiver{Svc: NewService(repo)}

	end := time.Unix(1700000100, 0).UTC()
	snap := session.Snapshot{
		CallID:         "c1",
		CallerID:       "a",
		RecipientID:    "b",
		ConversationID: "conv-9",
		State:          session.StateRejected,
		CreatedAt:      time.Unix(1700000000, 0).UTC(),
		TerminatedAt:   &end,
	}
	if err := a.Archive(context.Background(), snap); err != nil {
		t.Fatalf("archive: %v", err)
	}

	got := repo.Records()
	if len(got) != 1 {
		t.Fatalf("expected 1 record")
	}
	if got[0].FinalState != "rejected" || got[0].ConversationID != "conv-9" {
		t.Fatalf("unexpected record: %+v", got[0])
	}
	if !got[0].TerminatedAt.Equal(end) {
		t.Fatalf("expected terminated_at preserved, got %v", got[0].TerminatedAt)
	}
}
