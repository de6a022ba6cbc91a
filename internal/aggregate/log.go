package aggregate

import (
	"context"
	"fmt"

	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/models"
	"github.com/rldls/doorlog/internal/remote"
	"github.com/rldls/doorlog/internal/resolver"
)

// AppendLog writes the raw event row. For non-first entries it first
// repeats the duplicate check on the store itself: the client guard only
// sees in-memory history, which a replayed queue can outlive.
func (u *Updater) AppendLog(ctx context.Context, e *models.Event) error {
	if !e.IsFirstEntry {
		rows, err := u.store.Read(ctx, models.LogRange)
		if err != nil {
			return err
		}
		for i := 1; i < len(rows); i++ {
			prior := models.EventFromLogRow(rows[i])
			if prior.IsFirstEntry {
				continue
			}
			if prior.Date == e.Date && prior.SameAddress(e) {
				return errors.New(errors.ErrDuplicate,
					fmt.Sprintf("%s, %s already logged on %s", e.DoorNumber, e.StreetName, e.Date))
			}
		}
	}

	return u.store.Append(ctx, models.LogRange, models.LogRow(e))
}

// DeleteByTimestamp resolves the log row via the tiered timestamp match,
// clears it, and decrements the matching interval bucket. The cleared
// row's event is returned so callers can report what went away. A failed
// decrement does not undo the clear; it is returned alongside the event.
func (u *Updater) DeleteByTimestamp(ctx context.Context, timestamp string) (*models.Event, error) {
	rows, err := u.store.Read(ctx, models.LogRange)
	if err != nil {
		return nil, err
	}

	idx := resolver.FindTimestamp(rows, models.LogColTimestamp, timestamp)
	if idx == resolver.NotFound {
		return nil, errors.New(errors.ErrNotFoundRemote,
			fmt.Sprintf("no log row matches timestamp %q", timestamp))
	}

	deleted := models.EventFromLogRow(rows[idx])

	blank := make([]string, models.LogColCount)
	rng := remote.CellRange(sheetName(models.LogRange), 0, models.LogColCount-1, idx+1)
	if err := u.store.Update(ctx, rng, [][]string{blank}); err != nil {
		return nil, err
	}

	if deleted.IsFirstEntry {
		return deleted, nil
	}
	if err := u.DecrementBucket(ctx, deleted.Date, deleted.Interval, deleted.Status); err != nil {
		return deleted, fmt.Errorf("row cleared but bucket not decremented: %w", err)
	}
	return deleted, nil
}

// LastPosition returns the user's row from the position table, falling
// back to the newest log row when the user has none yet. Only a store
// with no data at all yields not-found.
func (u *Updater) LastPosition(ctx context.Context, user string) (*models.UserPosition, error) {
	rows, err := u.store.Read(ctx, models.PositionRange)
	if err != nil {
		return nil, err
	}

	if user != "" {
		for i := 1; i < len(rows); i++ {
			if cellAt(rows[i], 0) == user {
				return &models.UserPosition{
					User:       user,
					StreetName: cellAt(rows[i], 1),
					DoorNumber: cellAt(rows[i], 2),
				}, nil
			}
		}
	}

	logRows, err := u.store.Read(ctx, models.LogRange)
	if err != nil {
		return nil, err
	}
	for i := len(logRows) - 1; i >= 1; i-- {
		e := models.EventFromLogRow(logRows[i])
		if e.Timestamp == "" {
			continue // cleared row
		}
		return &models.UserPosition{User: user, StreetName: e.StreetName, DoorNumber: e.DoorNumber}, nil
	}

	return nil, errors.New(errors.ErrNotFoundRemote, "no positions recorded")
}

// EnsureHeaders appends a header row to any table that reads back empty.
// Safe to run on every start; populated tables are left alone.
func (u *Updater) EnsureHeaders(ctx context.Context) error {
	headers := map[string][]string{
		models.LogRange: {"Date", "Day", "Groomed", "Mood", "Jacket", "Condition", "Temp",
			"Interval", "Street", "Door", "Status", "Timestamp", "First Entry"},
		models.StatsRange: {"Date", "Day", "Interval", "Groomed", "Jacket", "Mood", "Condition",
			"Temp", "Not Home", "Opened", "Estimate", "User"},
		models.PositionRange: {"User", "Street", "Door"},
		models.NotHomeRange:  {"Street", "Doors"},
	}

	for rng, header := range headers {
		rows, err := u.store.Read(ctx, rng)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			if err := u.store.Append(ctx, rng, header); err != nil {
				return err
			}
		}
	}
	return nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
