package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/rldls/doorlog/internal/errors"
)

// flakyRemote embeds the fake and flips reachability on demand.
type flakyRemote struct {
	fakeRemote
	reachable bool
}

func (f *flakyRemote) Ping(context.Context) error {
	if f.reachable {
		return nil
	}
	return errors.New(errors.ErrTransientRemote, "unreachable")
}

// TestMonitor_onlineTransition verifies probeOnce only reports the
// offline-to-online edge, the trigger for an immediate drain.
func TestMonitor_onlineTransition(t *testing.T) {
	remote := &flakyRemote{}
	engine, _ := newTestEngine(t, remote)
	m := NewMonitor(engine, remote, time.Hour, time.Hour)
	ctx := context.Background()

	if came := m.probeOnce(ctx); came {
		t.Error("probeOnce() while offline reported a transition")
	}
	if m.IsOnline() {
		t.Error("IsOnline() = true while unreachable")
	}

	remote.reachable = true
	if came := m.probeOnce(ctx); !came {
		t.Error("probeOnce() missed the offline-to-online edge")
	}
	if came := m.probeOnce(ctx); came {
		t.Error("probeOnce() reported a transition while staying online")
	}
	if !m.IsOnline() {
		t.Error("IsOnline() = false while reachable")
	}
}

// TestMonitor_startAndStop verifies the loops start once and shut down
// cleanly.
func TestMonitor_startAndStop(t *testing.T) {
	remote := &flakyRemote{reachable: true}
	engine, q := newTestEngine(t, remote)

	if _, err := q.EnqueueCreate(drainEvent("t1")); err != nil {
		t.Fatalf("EnqueueCreate() error = %v", err)
	}

	m := NewMonitor(engine, remote, time.Hour, time.Hour)
	m.Start(context.Background())
	m.Start(context.Background()) // second start is a no-op
	m.Stop()
	m.Stop() // as is a second stop

	// The startup drain must have flushed the queued entry.
	if q.Depth() != 0 {
		t.Errorf("Depth() after startup drain = %d, want 0", q.Depth())
	}
	if st := m.Status(); st.LastDrain.IsZero() {
		t.Error("Status().LastDrain not recorded")
	}
}
