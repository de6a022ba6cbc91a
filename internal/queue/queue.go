// Package queue provides the client-resident durable write queue. Every
// event is either confirmed remotely or present here; the only discard
// path is cancel-in-place, where a delete annihilates its own still-queued
// create without a remote round trip.
package queue

import (
	"fmt"
	"sync"

	"github.com/rldls/doorlog/internal/db"
	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/models"
)

// DeletePayload is the body queued for a delete operation.
type DeletePayload struct {
	TimestampToDelete string `json:"timestampToDelete"`
}

// Queue is the durable ordered sequence of pending remote writes.
type Queue struct {
	repo    *db.Repository
	mu      sync.Mutex
	maxSize int

	// inFlight is the seq of the entry the drain loop is currently
	// dispatching, or zero. While an entry is in flight its create can
	// no longer cancel in place; the remote write may already have
	// landed, so the delete must travel to the server.
	inFlight int64
}

// New creates a Queue over the local repository. maxSize bounds the
// number of unsynced operations a device may accumulate; zero means
// unbounded.
func New(repo *db.Repository, maxSize int) *Queue {
	return &Queue{repo: repo, maxSize: maxSize}
}

// EnqueueCreate appends a create operation for the event.
func (q *Queue) EnqueueCreate(e *models.Event) (*models.QueueOp, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.checkCapacity(); err != nil {
		return nil, err
	}

	op, err := q.repo.EnqueueOp(models.OpCreate, e.Timestamp, e)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to enqueue create", err)
	}

	logging.Info("queued create", map[string]interface{}{
		"seq": op.Seq, "timestamp": e.Timestamp,
	})
	return op, nil
}

// EnqueueDelete appends a delete operation for the event timestamp. When
// the matching create is still pending, the create is removed outright
// and the delete is discarded: the pair cancels locally with zero remote
// calls. The returned op is nil in that case.
func (q *Queue) EnqueueDelete(eventTimestamp string) (*models.QueueOp, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.repo.FindPendingCreate(eventTimestamp)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrDatabase, "failed to inspect queue", err)
	}
	if pending != nil && pending.Seq != q.inFlight {
		if err := q.repo.RemoveOp(pending.Seq); err != nil {
			return nil, false, errors.Wrap(errors.ErrDatabase, "failed to cancel pending create", err)
		}
		logging.Info("cancelled in place", map[string]interface{}{
			"seq": pending.Seq, "timestamp": eventTimestamp,
		})
		return nil, true, nil
	}
	// An in-flight create is past the point of local cancellation: its
	// remote write may already have landed, so the delete is queued and
	// travels to the server like any other.

	if err := q.checkCapacity(); err != nil {
		return nil, false, err
	}

	op, err := q.repo.EnqueueOp(models.OpDelete, eventTimestamp, DeletePayload{TimestampToDelete: eventTimestamp})
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrDatabase, "failed to enqueue delete", err)
	}

	logging.Info("queued delete", map[string]interface{}{
		"seq": op.Seq, "timestamp": eventTimestamp,
	})
	return op, false, nil
}

// Pending returns all queued operations in FIFO order.
func (q *Queue) Pending() ([]*models.QueueOp, error) {
	return q.repo.PendingOps()
}

// Claim marks an operation as in flight before its remote dispatch.
// It returns false when the entry has been cancelled in place since the
// drain cycle snapshotted the queue, in which case it must be skipped.
func (q *Queue) Claim(op *models.QueueOp) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	exists, err := q.repo.OpExists(op.Seq)
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabase, "failed to inspect queue", err)
	}
	if !exists {
		return false, nil
	}
	q.inFlight = op.Seq
	return true, nil
}

// Release clears the in-flight mark. Callers confirm or drop the entry
// first; releasing before removal would reopen the cancel-in-place
// window for a write that already reached the server.
func (q *Queue) Release(op *models.QueueOp) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == op.Seq {
		q.inFlight = 0
	}
}

// Confirm removes an operation whose remote effect has been confirmed.
func (q *Queue) Confirm(op *models.QueueOp) error {
	if err := q.repo.RemoveOp(op.Seq); err != nil {
		return errors.Wrap(errors.ErrDatabase,
			fmt.Sprintf("failed to remove op %d", op.Seq), err)
	}
	return nil
}

// Depth returns the number of queued operations.
func (q *Queue) Depth() int {
	n, err := q.repo.QueueDepth()
	if err != nil {
		logging.Error("failed to read queue depth", err)
		return 0
	}
	return n
}

func (q *Queue) checkCapacity() error {
	if q.maxSize <= 0 {
		return nil
	}
	n, err := q.repo.QueueDepth()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to read queue depth", err)
	}
	if n >= q.maxSize {
		return errors.New(errors.ErrQueueFull,
			fmt.Sprintf("queue is full (max size: %d)", q.maxSize))
	}
	return nil
}
