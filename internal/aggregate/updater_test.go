package aggregate

import (
	"context"
	"testing"

	"github.com/rldls/doorlog/internal/models"
	"github.com/rldls/doorlog/internal/remote"
)

func testEvent(street, door string, status models.Status) *models.Event {
	return &models.Event{
		Date:       "2024-03-01",
		Interval:   "10:00",
		StreetName: street,
		DoorNumber: door,
		Status:     status,
		Timestamp:  "2024-03-01T10:05:00.000Z",
		Day:        models.DayContext{DayOfWeek: "Friday"},
		User:       "alex",
	}
}

func newTestUpdater(t *testing.T) (*Updater, *remote.MemoryStore) {
	t.Helper()
	store := remote.NewMemoryStore()
	u := NewUpdater(store)
	if err := u.EnsureHeaders(context.Background()); err != nil {
		t.Fatalf("EnsureHeaders() error = %v", err)
	}
	return u, store
}

// TestApply_createsBucketAndPosition verifies a first event for an
// interval seeds a stats row and the user's position row.
func TestApply_createsBucketAndPosition(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	e := testEvent("Elm Street", "12", models.StatusOpened)
	if err := u.Apply(ctx, e); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	stats := store.Rows("Daily Stats")
	if len(stats) != 2 {
		t.Fatalf("stats rows = %d, want header + 1", len(stats))
	}
	notHome, opened, estimate := models.CountsFromRow(stats[1])
	if notHome != 0 || opened != 1 || estimate != 0 {
		t.Errorf("counts = (%d, %d, %d), want (0, 1, 0)", notHome, opened, estimate)
	}

	positions := store.Rows("Positions")
	if len(positions) != 2 || positions[1][0] != "alex" || positions[1][1] != "Elm Street" {
		t.Errorf("positions = %v, want alex at Elm Street", positions)
	}
}

// TestApply_incrementsExistingBucket verifies a second event in the same
// interval bumps the existing row instead of appending a new one.
func TestApply_incrementsExistingBucket(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.Apply(ctx, testEvent("Elm Street", "12", models.StatusOpened)); err != nil {
		t.Fatalf("Apply() first error = %v", err)
	}
	if err := u.Apply(ctx, testEvent("Elm Street", "14", models.StatusOpened)); err != nil {
		t.Fatalf("Apply() second error = %v", err)
	}

	stats := store.Rows("Daily Stats")
	if len(stats) != 2 {
		t.Fatalf("stats rows = %d, want a single bucket row", len(stats))
	}
	_, opened, _ := models.CountsFromRow(stats[1])
	if opened != 2 {
		t.Errorf("opened count = %d, want 2", opened)
	}
}

// TestApply_reappliedEventCountsTwice documents the at-least-once
// contract: replaying a confirmed event doubles its counts, and nothing
// here deduplicates that.
func TestApply_reappliedEventCountsTwice(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	e := testEvent("Elm Street", "12", models.StatusNotHome)
	for i := 0; i < 2; i++ {
		if err := u.Apply(ctx, e); err != nil {
			t.Fatalf("Apply() #%d error = %v", i+1, err)
		}
	}

	stats := store.Rows("Daily Stats")
	notHome, _, _ := models.CountsFromRow(stats[1])
	if notHome != 2 {
		t.Errorf("notHome count = %d, want 2 (replays are not deduplicated)", notHome)
	}
}

// TestApply_skipsFirstEntry verifies carry-over entries touch no derived
// table.
func TestApply_skipsFirstEntry(t *testing.T) {
	u, store := newTestUpdater(t)

	e := testEvent("Elm Street", "12", models.StatusNotHome)
	e.IsFirstEntry = true
	if err := u.Apply(context.Background(), e); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := len(store.Rows("Daily Stats")); got != 1 {
		t.Errorf("stats rows = %d, want header only", got)
	}
	if got := len(store.Rows("Positions")); got != 1 {
		t.Errorf("position rows = %d, want header only", got)
	}
	if got := len(store.Rows("Not Home")); got != 1 {
		t.Errorf("not-home rows = %d, want header only", got)
	}
}

// TestApply_notHomeRegistry verifies doors accumulate per street and a
// second street reuses the first blank row rather than the end.
func TestApply_notHomeRegistry(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.Apply(ctx, testEvent("Elm Street", "12", models.StatusNotHome)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := u.Apply(ctx, testEvent("Elm Street", "14", models.StatusNotHome)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	rows := store.Rows("Not Home")
	if len(rows) != 2 || rows[1][0] != "Elm Street" || rows[1][1] != "12, 14" {
		t.Fatalf("registry = %v, want Elm Street with \"12, 14\"", rows)
	}

	// Blank out the street row, then log a new street: it must land in
	// the gap, not below it.
	if err := store.Update(ctx, "Not Home!A2:B2", [][]string{{"", ""}}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := store.Append(ctx, "Not Home!A:B", []string{"Oak Avenue", "3"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := u.Apply(ctx, testEvent("Pine Road", "7", models.StatusNotHome)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	rows = store.Rows("Not Home")
	if rows[1][0] != "Pine Road" || rows[1][1] != "7" {
		t.Errorf("gap row = %v, want Pine Road in the blank slot", rows[1])
	}
	if rows[2][0] != "Oak Avenue" {
		t.Errorf("row 3 = %v, want Oak Avenue untouched", rows[2])
	}
}

// TestApply_positionLastWriteWins verifies the position row is
// overwritten, not duplicated.
func TestApply_positionLastWriteWins(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.Apply(ctx, testEvent("Elm Street", "12", models.StatusOpened)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := u.Apply(ctx, testEvent("Oak Avenue", "3", models.StatusOpened)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	rows := store.Rows("Positions")
	if len(rows) != 2 {
		t.Fatalf("position rows = %d, want a single row per user", len(rows))
	}
	if rows[1][1] != "Oak Avenue" || rows[1][2] != "3" {
		t.Errorf("position = %v, want Oak Avenue 3", rows[1])
	}
}

// TestDecrementBucket_floorsAtZero verifies the delete path never drives
// a counter negative and tolerates a missing bucket.
func TestDecrementBucket_floorsAtZero(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.Apply(ctx, testEvent("Elm Street", "12", models.StatusOpened)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := u.DecrementBucket(ctx, "2024-03-01", "10:00", models.StatusOpened); err != nil {
			t.Fatalf("DecrementBucket() #%d error = %v", i+1, err)
		}
	}
	_, opened, _ := models.CountsFromRow(store.Rows("Daily Stats")[1])
	if opened != 0 {
		t.Errorf("opened count = %d, want 0", opened)
	}

	// No bucket for this interval at all: a no-op, not an error.
	if err := u.DecrementBucket(ctx, "2024-03-01", "23:00", models.StatusOpened); err != nil {
		t.Errorf("DecrementBucket() on missing bucket = %v, want nil", err)
	}
}
