package store

import (
	"context"
	"os"
	"testing"

	"stockroom-cli/internal/model"
)

func TestEventLog_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	l := EventLog{Dir: t.TempDir()}

	evs, err := l.Read(0)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("expected no events, got %d", len(evs))
	}

	first, err := l.Append(ctx, model.Event{Type: model.EventItemAdd, Name: "apple", Quantity: 3, ActorID: "ada"})
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if first.ID == "" || first.At.IsZero() {
		t.Fatalf("expected id and time to be stamped: %+v", first)
	}
	if _, err := l.Append(ctx, model.Event{Type: model.EventItemRename, Name: "apple", NewName: "pear", Quantity: 2}); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if _, err := l.Append(ctx, model.Event{Type: model.EventItemDelete, Name: "pear"}); err != nil {
		t.Fatalf("append 3: %v", err)
	}

	evs, err = l.Read(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[0].ID != first.ID || evs[1].NewName != "pear" || evs[2].Type != model.EventItemDelete {
		t.Fatalf("unexpected events: %+v", evs)
	}

	last, err := l.Read(2)
	if err != nil {
		t.Fatalf("read limit: %v", err)
	}
	if len(last) != 2 || last[1].Type != model.EventItemDelete {
		t.Fatalf("expected the two most recent events, got %+v", last)
	}
}

func TestEventLog_RejectsBadEvents(t *testing.T) {
	ctx := context.Background()
	if _, err := (EventLog{Dir: t.TempDir()}).Append(ctx, model.Event{Name: "x"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := (EventLog{}).Append(ctx, model.Event{Type: model.EventItemAdd}); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestEventLog_ReportsCorruptLine(t *testing.T) {
	l := EventLog{Dir: t.TempDir()}
	if err := os.MkdirAll(l.EventsDir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(l.Path(), []byte("{\"type\":\"item.add\"}\nnot json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := l.Read(0); err == nil {
		t.Fatalf("expected parse error")
	}
}
