// Package syncer drains the local queue against the remote boundary. One
// drain cycle runs at a time, processes entries strictly in FIFO order
// with a single in-flight write, and stops at the first transient
// failure so later events can never land before earlier ones.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/models"
	"github.com/rldls/doorlog/internal/queue"
)

// DrainResult summarizes one drain cycle.
type DrainResult struct {
	Started   time.Time
	Confirmed int  // entries removed after a confirmed remote effect
	Dropped   int  // terminal entries removed without a remote effect
	Remaining int  // entries left queued
	Aborted   bool // cycle stopped early on a transient failure
}

// Engine is the sync engine.
type Engine struct {
	q      *queue.Queue
	remote Remote

	// single-flight: a second drain while one runs is a no-op, not a
	// second submitter.
	draining sync.Mutex
}

// NewEngine creates an Engine over the queue and the remote boundary.
func NewEngine(q *queue.Queue, remote Remote) *Engine {
	return &Engine{q: q, remote: remote}
}

// Drain runs one cycle. Re-entry while a cycle is active returns
// immediately with ok=false; the active cycle covers the caller's needs.
func (e *Engine) Drain(ctx context.Context) (DrainResult, bool) {
	if !e.draining.TryLock() {
		return DrainResult{}, false
	}
	defer e.draining.Unlock()

	res := DrainResult{Started: time.Now()}

	ops, err := e.q.Pending()
	if err != nil {
		logging.Error("drain aborted: cannot read queue", err)
		res.Aborted = true
		return res, true
	}

	for i, op := range ops {
		select {
		case <-ctx.Done():
			res.Aborted = true
			res.Remaining = len(ops) - i
			return res, true
		default:
		}

		// The snapshot may be stale: a cancel-in-place can remove an
		// entry between Pending and here. Claiming verifies the entry
		// still exists and, until released, blocks its create from
		// cancelling locally while the write is on the wire.
		claimed, err := e.q.Claim(op)
		if err != nil {
			logging.Error("drain aborted: cannot claim queue entry", err,
				map[string]interface{}{"seq": op.Seq})
			res.Aborted = true
			res.Remaining = len(ops) - i
			return res, true
		}
		if !claimed {
			continue
		}

		err = e.dispatch(ctx, op)
		switch {
		case err == nil:
			// Remove before releasing the claim so the settled entry
			// can never be picked up by a late cancel-in-place.
			if cerr := e.q.Confirm(op); cerr != nil {
				logging.Error("confirmed op not removed from queue", cerr,
					map[string]interface{}{"seq": op.Seq})
			}
			e.q.Release(op)
			res.Confirmed++

		case errors.Retryable(err):
			// Leave this entry and everything after it; skipping ahead
			// would apply later events before earlier ones.
			e.q.Release(op)
			logging.Warn("drain stopped on transient failure", map[string]interface{}{
				"seq": op.Seq, "error": err.Error(),
			})
			res.Aborted = true
			res.Remaining = len(ops) - i
			return res, true

		default:
			// Terminal: the entry can never succeed (validation) or its
			// effect is already present (duplicate, already absent).
			// Either way it leaves the queue.
			logging.Warn("dropping terminal queue entry", map[string]interface{}{
				"seq": op.Seq, "kind": op.Kind, "error": err.Error(),
			})
			if cerr := e.q.Confirm(op); cerr != nil {
				logging.Error("terminal op not removed from queue", cerr,
					map[string]interface{}{"seq": op.Seq})
			}
			e.q.Release(op)
			res.Dropped++
		}
	}

	logging.Info("drain cycle complete", map[string]interface{}{
		"confirmed": res.Confirmed, "dropped": res.Dropped,
	})
	return res, true
}

// dispatch issues one remote write. nil means the entry's effect is
// confirmed present (or absent, for deletes) on the remote store.
func (e *Engine) dispatch(ctx context.Context, op *models.QueueOp) error {
	switch op.Kind {
	case models.OpCreate:
		ev, err := op.Event()
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "undecodable queued event", err)
		}
		err = e.remote.CreateLog(ctx, ev)
		if errors.Is(err, errors.ErrDuplicate) {
			// The server already holds this event: a retried write that
			// actually succeeded, or a replay after restart. The effect
			// is present, which is all confirmation means here.
			logging.Info("create already applied remotely", map[string]interface{}{
				"timestamp": op.EventTimestamp,
			})
			return nil
		}
		return err

	case models.OpDelete:
		err := e.remote.DeleteLog(ctx, op.EventTimestamp)
		if errors.Is(err, errors.ErrNotFoundRemote) {
			// Already absent is the outcome a delete wants.
			return nil
		}
		return err

	default:
		return errors.New(errors.ErrValidation, "unknown queue operation "+op.Kind)
	}
}
