package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rldls/doorlog/internal/models"
)

// Repository provides data access for the agent database.
type Repository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// =====================================================
// Queue operations
// =====================================================

// EnqueueOp appends an operation to the durable queue and returns it with
// its assigned FIFO position.
func (r *Repository) EnqueueOp(kind, eventTimestamp string, payload interface{}) (*models.QueueOp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	op := &models.QueueOp{
		ID:             uuid.New().String(),
		Kind:           kind,
		EventTimestamp: eventTimestamp,
		Payload:        data,
		CreatedAt:      time.Now().Unix(),
	}

	res, err := r.db.Exec(`
		INSERT INTO queue_ops (id, kind, event_timestamp, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		op.ID, op.Kind, op.EventTimestamp, string(op.Payload), op.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	op.Seq, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return op, nil
}

// PendingOps returns all queued operations in FIFO order.
func (r *Repository) PendingOps() ([]*models.QueueOp, error) {
	rows, err := r.db.Query(`
		SELECT seq, id, kind, event_timestamp, payload, created_at
		FROM queue_ops ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*models.QueueOp
	for rows.Next() {
		op := &models.QueueOp{}
		var payload string
		if err := rows.Scan(&op.Seq, &op.ID, &op.Kind, &op.EventTimestamp, &payload, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Payload = json.RawMessage(payload)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// RemoveOp deletes a confirmed or cancelled operation from the queue.
func (r *Repository) RemoveOp(seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`DELETE FROM queue_ops WHERE seq = ?`, seq)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindPendingCreate returns the queued create for an event timestamp, or
// nil when none is pending. Used by the cancel-in-place rule.
func (r *Repository) FindPendingCreate(eventTimestamp string) (*models.QueueOp, error) {
	op := &models.QueueOp{}
	var payload string
	err := r.db.QueryRow(`
		SELECT seq, id, kind, event_timestamp, payload, created_at
		FROM queue_ops
		WHERE kind = ? AND event_timestamp = ?
		ORDER BY seq ASC LIMIT 1`,
		models.OpCreate, eventTimestamp).
		Scan(&op.Seq, &op.ID, &op.Kind, &op.EventTimestamp, &payload, &op.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	op.Payload = json.RawMessage(payload)
	return op, nil
}

// OpExists reports whether a queued operation is still present. The
// drain loop checks this before dispatching an entry from its cycle
// snapshot, since a cancel-in-place may have removed it in the meantime.
func (r *Repository) OpExists(seq int64) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM queue_ops WHERE seq = ?`, seq).Scan(&n)
	return n > 0, err
}

// QueueDepth returns the number of queued operations.
func (r *Repository) QueueDepth() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM queue_ops`).Scan(&n)
	return n, err
}

// =====================================================
// Day log history
// =====================================================

// InsertHistory records an event in the visible log history.
func (r *Repository) InsertHistory(e *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO history (event_timestamp, date, street, door, is_first_entry, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Date, e.StreetName, e.DoorNumber, boolToInt(e.IsFirstEntry),
		string(data), time.Now().Unix())
	return err
}

// HistoryForDay returns the events logged for one date, oldest first.
func (r *Repository) HistoryForDay(date string) ([]*models.Event, error) {
	rows, err := r.db.Query(`
		SELECT payload FROM history WHERE date = ? ORDER BY event_timestamp ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		e := &models.Event{}
		if err := json.Unmarshal([]byte(payload), e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteHistory removes an event from the visible log history.
func (r *Repository) DeleteHistory(eventTimestamp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`DELETE FROM history WHERE event_timestamp = ?`, eventTimestamp)
	return err
}

// LastTimestamp returns the newest event timestamp ever recorded on this
// device, used to keep new timestamps strictly monotonic across restarts.
func (r *Repository) LastTimestamp() (string, error) {
	var ts string
	err := r.db.QueryRow(`SELECT event_timestamp FROM history ORDER BY event_timestamp DESC LIMIT 1`).Scan(&ts)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return ts, err
}

// =====================================================
// Preferences
// =====================================================

// SetPref stores a key-value preference (street, door, day check-in).
func (r *Repository) SetPref(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	return err
}

// GetPref returns a stored preference, or def when unset.
func (r *Repository) GetPref(key, def string) (string, error) {
	var v string
	err := r.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
