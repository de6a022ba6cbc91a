package db

import (
	"database/sql"
	"testing"

	"github.com/rldls/doorlog/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.DB)
}

func historyEvent(ts, date, street, door string) *models.Event {
	return &models.Event{
		Date:       date,
		Interval:   "10:00",
		StreetName: street,
		DoorNumber: door,
		Status:     models.StatusOpened,
		Timestamp:  ts,
	}
}

// TestEnqueueOp_fifoOrder verifies sequence numbers preserve insertion
// order across kinds.
func TestEnqueueOp_fifoOrder(t *testing.T) {
	repo := newTestRepo(t)

	first, err := repo.EnqueueOp(models.OpCreate, "t1", map[string]string{"k": "1"})
	if err != nil {
		t.Fatalf("EnqueueOp() error = %v", err)
	}
	second, err := repo.EnqueueOp(models.OpDelete, "t0", map[string]string{"k": "2"})
	if err != nil {
		t.Fatalf("EnqueueOp() error = %v", err)
	}
	if second.Seq <= first.Seq {
		t.Errorf("seq not increasing: %d then %d", first.Seq, second.Seq)
	}

	ops, err := repo.PendingOps()
	if err != nil {
		t.Fatalf("PendingOps() error = %v", err)
	}
	if len(ops) != 2 || ops[0].EventTimestamp != "t1" || ops[1].EventTimestamp != "t0" {
		t.Errorf("PendingOps() = %v, want insertion order regardless of timestamp", ops)
	}
}

// TestRemoveOp_missing verifies removing an absent op reports no rows.
func TestRemoveOp_missing(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.RemoveOp(999); err != sql.ErrNoRows {
		t.Errorf("RemoveOp(999) = %v, want sql.ErrNoRows", err)
	}
}

// TestFindPendingCreate verifies lookup by event timestamp ignores
// deletes and absent rows.
func TestFindPendingCreate(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.EnqueueOp(models.OpDelete, "t1", nil); err != nil {
		t.Fatalf("EnqueueOp() error = %v", err)
	}
	created, err := repo.EnqueueOp(models.OpCreate, "t1", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("EnqueueOp() error = %v", err)
	}

	got, err := repo.FindPendingCreate("t1")
	if err != nil {
		t.Fatalf("FindPendingCreate() error = %v", err)
	}
	if got == nil || got.Seq != created.Seq {
		t.Errorf("FindPendingCreate() = %v, want the create op", got)
	}

	got, err = repo.FindPendingCreate("t2")
	if err != nil {
		t.Fatalf("FindPendingCreate() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindPendingCreate(miss) = %v, want nil", got)
	}
}

// TestHistory_roundTripAndOrder verifies events come back per day, oldest
// first, with their payload intact.
func TestHistory_roundTripAndOrder(t *testing.T) {
	repo := newTestRepo(t)

	events := []*models.Event{
		historyEvent("2024-03-01T11:00:00.000Z", "2024-03-01", "Elm Street", "14"),
		historyEvent("2024-03-01T10:00:00.000Z", "2024-03-01", "Elm Street", "12"),
		historyEvent("2024-03-02T09:00:00.000Z", "2024-03-02", "Oak Avenue", "3"),
	}
	for _, e := range events {
		if err := repo.InsertHistory(e); err != nil {
			t.Fatalf("InsertHistory() error = %v", err)
		}
	}

	day, err := repo.HistoryForDay("2024-03-01")
	if err != nil {
		t.Fatalf("HistoryForDay() error = %v", err)
	}
	if len(day) != 2 || day[0].DoorNumber != "12" || day[1].DoorNumber != "14" {
		t.Errorf("HistoryForDay() = %v, want two events oldest first", day)
	}
	if day[0].Status != models.StatusOpened {
		t.Errorf("payload lost status: %+v", day[0])
	}
}

// TestDeleteHistory verifies removal by timestamp.
func TestDeleteHistory(t *testing.T) {
	repo := newTestRepo(t)

	e := historyEvent("2024-03-01T10:00:00.000Z", "2024-03-01", "Elm Street", "12")
	if err := repo.InsertHistory(e); err != nil {
		t.Fatalf("InsertHistory() error = %v", err)
	}
	if err := repo.DeleteHistory(e.Timestamp); err != nil {
		t.Fatalf("DeleteHistory() error = %v", err)
	}

	day, err := repo.HistoryForDay("2024-03-01")
	if err != nil {
		t.Fatalf("HistoryForDay() error = %v", err)
	}
	if len(day) != 0 {
		t.Errorf("history after delete = %v, want empty", day)
	}
}

// TestLastTimestamp verifies the newest timestamp is found across days
// and an empty table yields "".
func TestLastTimestamp(t *testing.T) {
	repo := newTestRepo(t)

	ts, err := repo.LastTimestamp()
	if err != nil || ts != "" {
		t.Fatalf("LastTimestamp() on empty = (%q, %v), want (\"\", nil)", ts, err)
	}

	for _, e := range []*models.Event{
		historyEvent("2024-03-02T09:00:00.000Z", "2024-03-02", "Oak Avenue", "3"),
		historyEvent("2024-03-01T10:00:00.000Z", "2024-03-01", "Elm Street", "12"),
	} {
		if err := repo.InsertHistory(e); err != nil {
			t.Fatalf("InsertHistory() error = %v", err)
		}
	}

	ts, err = repo.LastTimestamp()
	if err != nil {
		t.Fatalf("LastTimestamp() error = %v", err)
	}
	if ts != "2024-03-02T09:00:00.000Z" {
		t.Errorf("LastTimestamp() = %q, want the newest", ts)
	}
}

// TestPrefs_upsert verifies set, overwrite and default fallback.
func TestPrefs_upsert(t *testing.T) {
	repo := newTestRepo(t)

	if got, _ := repo.GetPref("streetName", "fallback"); got != "fallback" {
		t.Errorf("GetPref(unset) = %q, want fallback", got)
	}

	if err := repo.SetPref("streetName", "Elm Street"); err != nil {
		t.Fatalf("SetPref() error = %v", err)
	}
	if err := repo.SetPref("streetName", "Oak Avenue"); err != nil {
		t.Fatalf("SetPref() overwrite error = %v", err)
	}

	if got, _ := repo.GetPref("streetName", ""); got != "Oak Avenue" {
		t.Errorf("GetPref() = %q, want Oak Avenue", got)
	}
}
