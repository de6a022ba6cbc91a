package aggregate

import (
	"context"
	"testing"

	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/models"
)

// TestAppendLog_writesRow verifies the happy path lands one row under
// the header.
func TestAppendLog_writesRow(t *testing.T) {
	u, store := newTestUpdater(t)

	e := testEvent("Elm Street", "12", models.StatusOpened)
	if err := u.AppendLog(context.Background(), e); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	rows := store.Rows("Log")
	if len(rows) != 2 {
		t.Fatalf("log rows = %d, want header + 1", len(rows))
	}
	if rows[1][models.LogColStreet] != "Elm Street" || rows[1][models.LogColTimestamp] != e.Timestamp {
		t.Errorf("log row = %v", rows[1])
	}
}

// TestAppendLog_duplicateAddressSameDay verifies the server-side repeat
// of the duplicate check, independent of the client guard.
func TestAppendLog_duplicateAddressSameDay(t *testing.T) {
	u, _ := newTestUpdater(t)
	ctx := context.Background()

	if err := u.AppendLog(ctx, testEvent("Elm Street", "12", models.StatusNotHome)); err != nil {
		t.Fatalf("AppendLog() first error = %v", err)
	}

	// Same address, different outcome: still a duplicate.
	err := u.AppendLog(ctx, testEvent("Elm Street", "12", models.StatusOpened))
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("AppendLog() second = %v, want duplicate error", err)
	}

	// Different door on the same street is fine.
	if err := u.AppendLog(ctx, testEvent("Elm Street", "14", models.StatusOpened)); err != nil {
		t.Errorf("AppendLog() other door = %v, want nil", err)
	}
}

// TestAppendLog_firstEntrySkipsDuplicateCheck verifies carry-over rows
// neither trip the check nor participate in it.
func TestAppendLog_firstEntrySkipsDuplicateCheck(t *testing.T) {
	u, _ := newTestUpdater(t)
	ctx := context.Background()

	first := testEvent("Elm Street", "12", models.StatusNotHome)
	first.IsFirstEntry = true
	if err := u.AppendLog(ctx, first); err != nil {
		t.Fatalf("AppendLog() carry-over error = %v", err)
	}

	// A real visit to the carried-over address must still be accepted.
	if err := u.AppendLog(ctx, testEvent("Elm Street", "12", models.StatusOpened)); err != nil {
		t.Errorf("AppendLog() after carry-over = %v, want nil", err)
	}
}

// TestDeleteByTimestamp_clearsRowAndDecrements verifies the full delete
// path: resolve, blank the row, pull the bucket back down.
func TestDeleteByTimestamp_clearsRowAndDecrements(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	e := testEvent("Elm Street", "12", models.StatusOpened)
	if err := u.AppendLog(ctx, e); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}
	if err := u.Apply(ctx, e); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	deleted, err := u.DeleteByTimestamp(ctx, e.Timestamp)
	if err != nil {
		t.Fatalf("DeleteByTimestamp() error = %v", err)
	}
	if deleted.StreetName != "Elm Street" || deleted.Status != models.StatusOpened {
		t.Errorf("deleted = %+v", deleted)
	}

	logRows := store.Rows("Log")
	if logRows[1][models.LogColTimestamp] != "" {
		t.Errorf("log row not cleared: %v", logRows[1])
	}
	_, opened, _ := models.CountsFromRow(store.Rows("Daily Stats")[1])
	if opened != 0 {
		t.Errorf("opened count after delete = %d, want 0", opened)
	}
}

// TestDeleteByTimestamp_normalizedTimestamp verifies the tiered match
// still resolves a row the store rewrote without milliseconds.
func TestDeleteByTimestamp_normalizedTimestamp(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	e := testEvent("Elm Street", "12", models.StatusOpened)
	e.Timestamp = "2024-03-01T10:00:00Z" // as the store rewrote it
	if err := u.AppendLog(ctx, e); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	deleted, err := u.DeleteByTimestamp(ctx, "2024-03-01T10:00:00.000Z")
	if err != nil {
		t.Fatalf("DeleteByTimestamp() error = %v", err)
	}
	if deleted.DoorNumber != "12" {
		t.Errorf("deleted = %+v", deleted)
	}
	if store.Rows("Log")[1][models.LogColTimestamp] != "" {
		t.Errorf("row not cleared after instant-tier match")
	}
}

// TestDeleteByTimestamp_missing verifies an unresolvable timestamp is
// reported as remote-not-found, the signal the client treats as benign.
func TestDeleteByTimestamp_missing(t *testing.T) {
	u, _ := newTestUpdater(t)

	_, err := u.DeleteByTimestamp(context.Background(), "2099-01-01T00:00:00.000Z")
	if !errors.Is(err, errors.ErrNotFoundRemote) {
		t.Errorf("DeleteByTimestamp() = %v, want not-found", err)
	}
}

// TestDeleteByTimestamp_firstEntryLeavesBuckets verifies deleting a
// carry-over row never touches the counters.
func TestDeleteByTimestamp_firstEntryLeavesBuckets(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	first := testEvent("Elm Street", "12", models.StatusNotHome)
	first.IsFirstEntry = true
	if err := u.AppendLog(ctx, first); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	if _, err := u.DeleteByTimestamp(ctx, first.Timestamp); err != nil {
		t.Fatalf("DeleteByTimestamp() error = %v", err)
	}
	if got := len(store.Rows("Daily Stats")); got != 1 {
		t.Errorf("stats rows = %d, want header only", got)
	}
}

// TestLastPosition_prefersPositionTable verifies the user's row wins over
// the log fallback.
func TestLastPosition_prefersPositionTable(t *testing.T) {
	u, _ := newTestUpdater(t)
	ctx := context.Background()

	e := testEvent("Elm Street", "12", models.StatusOpened)
	if err := u.AppendLog(ctx, e); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}
	if err := u.Apply(ctx, e); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	pos, err := u.LastPosition(ctx, "alex")
	if err != nil {
		t.Fatalf("LastPosition() error = %v", err)
	}
	if pos.StreetName != "Elm Street" || pos.DoorNumber != "12" {
		t.Errorf("LastPosition() = %+v", pos)
	}
}

// TestLastPosition_fallsBackToLog verifies an unknown user still gets the
// newest log row's address.
func TestLastPosition_fallsBackToLog(t *testing.T) {
	u, _ := newTestUpdater(t)
	ctx := context.Background()

	a := testEvent("Elm Street", "12", models.StatusOpened)
	b := testEvent("Oak Avenue", "3", models.StatusOpened)
	b.Timestamp = "2024-03-01T11:00:00.000Z"
	for _, e := range []*models.Event{a, b} {
		if err := u.AppendLog(ctx, e); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	pos, err := u.LastPosition(ctx, "someone-else")
	if err != nil {
		t.Fatalf("LastPosition() error = %v", err)
	}
	if pos.StreetName != "Oak Avenue" {
		t.Errorf("LastPosition() fallback = %+v, want newest log row", pos)
	}
}

// TestLastPosition_emptyStore verifies a store with no data yields
// not-found.
func TestLastPosition_emptyStore(t *testing.T) {
	u, _ := newTestUpdater(t)

	_, err := u.LastPosition(context.Background(), "alex")
	if !errors.Is(err, errors.ErrNotFoundRemote) {
		t.Errorf("LastPosition() = %v, want not-found", err)
	}
}
