package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
)

func testEntries() []Entry {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Entry{
		{At: base, Event: "task.fired", Mode: "synchronous", Duration: time.Second, Dispatch: "inline"},
		{At: base.Add(time.Second), Event: "task.fired", Mode: "parallel", Duration: 2 * time.Second, Dispatch: "queued"},
		{At: base.Add(2 * time.Second), Event: "task.rejected", Mode: "parallel", Error: "arena full"},
	}
}

func roundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	want := testEntries()
	for _, e := range want {
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Recent returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Event != want[i].Event || got[i].Mode != want[i].Mode ||
			got[i].Duration != want[i].Duration || got[i].Dispatch != want[i].Dispatch ||
			got[i].Error != want[i].Error {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Recent caps at n, newest kept.
	got, err = st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent(2): %v", err)
	}
	if len(got) != 2 || got[1].Event != "task.rejected" {
		t.Fatalf("Recent(2) = %+v", got)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Enabled: true, Driver: "file", Path: filepath.Join(t.TempDir(), "journal.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	roundTrip(t, st)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Enabled: true, Driver: "sqlite", Path: filepath.Join(t.TempDir(), "journal.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	roundTrip(t, st)
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatal("disabled journal returned a store")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Enabled: true, Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRecorderConsumesBusEvents(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Enabled: true, Driver: "file", Path: filepath.Join(t.TempDir(), "journal.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	bus := eventbus.New()
	rec := NewRecorder(st, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	// Give the recorder a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	bus.Publish(eventbus.Event{Type: eventbus.TaskFired, Task: eventbus.TaskEvent{Mode: "synchronous", Dispatch: "inline"}})
	bus.Publish(eventbus.Event{Type: eventbus.TaskScheduled}) // filtered out
	bus.Publish(eventbus.Event{Type: eventbus.TaskRejected, Task: eventbus.TaskEvent{Error: "arena full"}})

	deadline := time.After(2 * time.Second)
	for {
		got, err := st.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) == 2 {
			if got[0].Event != eventbus.TaskFired || got[1].Event != eventbus.TaskRejected {
				t.Fatalf("unexpected entries: %+v", got)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("recorder wrote %d entries, want 2", len(got))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop on cancel")
	}
}
