package log

import (
	"os"
	"testing"
	"time"

	"github.com/openspawn/openspawn-sub002/internal/sim/engine"
	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

func TestTickLogger_RoundTripAcrossRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	clock := time.Date(2025, 5, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	for tick := uint64(1); tick <= 4; tick++ {
		if tick == 3 {
			clock = clock.Add(2 * time.Minute)
		}
		entry := engine.TickLogEntry{
			Tick:   tick,
			Events: []engine.TickLogEvent{{Kind: engine.KindTaskCreated, AuditID: "a", TaskID: "t"}},
			Digest: "d",
		}
		if err := l.WriteTick(entry); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(TickDir(dir), "ticks")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 hourly files", files)
	}

	var got []uint64
	err = ReadTicks(dir, func(e engine.TickLogEntry) error {
		got = append(got, e.Tick)
		if len(e.Events) != 1 || e.Events[0].Kind != engine.KindTaskCreated {
			t.Fatalf("events=%+v", e.Events)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("ticks=%v", got)
	}
}

func TestTickLogger_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for tick := uint64(1); tick <= 2; tick++ {
		l := NewTickLogger(dir)
		l.w.now = func() time.Time { return clock }
		if err := l.WriteTick(engine.TickLogEntry{Tick: tick}); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	n := 0
	if err := ReadTicks(dir, func(engine.TickLogEntry) error { n++; return nil }); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if n != 2 {
		t.Fatalf("entries=%d want 2", n)
	}
}

func TestAuditLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	ev := model.DomainEvent{
		ID:        "e1",
		Type:      model.EventCreditsEarned,
		Severity:  model.SeverityInfo,
		Message:   "earned",
		Metadata:  map[string]any{"amount": 42},
		CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		AgentID:   "a1",
	}
	if err := l.WriteAudit(engine.AuditEntry{Tick: 9, Event: ev}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []engine.AuditEntry
	if err := ReadAudits(dir, func(e engine.AuditEntry) error { got = append(got, e); return nil }); err != nil {
		t.Fatalf("ReadAudits: %v", err)
	}
	if len(got) != 1 || got[0].Tick != 9 || got[0].Event.ID != "e1" || got[0].Event.Metadata["amount"] != float64(42) {
		t.Fatalf("got=%+v", got)
	}
}

func TestListFiles_SkipsForeign(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ticks-2025-01-01-02.jsonl.zst", "ticks-2025-01-01-01.jsonl.zst", "audit-2025-01-01-01.jsonl.zst", "ticks.txt"} {
		if err := os.WriteFile(dir+"/"+name, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := ListFiles(dir, "ticks")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0] != dir+"/ticks-2025-01-01-01.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
}
