// Package aggregate maintains the derived remote tables: per-interval
// counters, last position per user, and the not-home registry. Every
// mutation is resolve → read → write with no transaction around it; a
// racing writer can stomp an increment, and that window is accepted
// rather than papered over with client-side locking.
package aggregate

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rldls/doorlog/internal/models"
	"github.com/rldls/doorlog/internal/remote"
	"github.com/rldls/doorlog/internal/resolver"
)

// Updater folds confirmed events into the derived tables.
type Updater struct {
	store remote.Store
}

// NewUpdater creates an Updater over the remote store.
func NewUpdater(store remote.Store) *Updater {
	return &Updater{store: store}
}

// Apply folds one confirmed event into the interval bucket, the user
// position, and (for not-home) the registry. The three steps are
// independent remote mutations: a failed step is reported but does not
// roll back the steps that already committed. First entries are skipped
// entirely.
func (u *Updater) Apply(ctx context.Context, e *models.Event) error {
	if e.IsFirstEntry {
		return nil
	}

	var errs []error
	if err := u.applyBucket(ctx, e); err != nil {
		errs = append(errs, fmt.Errorf("interval bucket: %w", err))
	}
	if err := u.applyPosition(ctx, e); err != nil {
		errs = append(errs, fmt.Errorf("user position: %w", err))
	}
	if e.Status == models.StatusNotHome {
		if err := u.applyNotHome(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("not-home registry: %w", err))
		}
	}
	return stderrors.Join(errs...)
}

// applyBucket upserts the (date, interval) bucket. A present bucket is
// re-read and all three counts are written back together in one range
// write to keep the read-modify-write window as small as the store
// allows.
func (u *Updater) applyBucket(ctx context.Context, e *models.Event) error {
	rows, err := u.store.Read(ctx, models.StatsRange)
	if err != nil {
		return err
	}

	idx := resolver.FindComposite(rows, models.StatColDate, e.Date, models.StatColInterval, e.Interval)
	if idx == resolver.NotFound {
		return u.store.Append(ctx, models.StatsRange, models.NewBucket(e).Row())
	}

	return u.shiftBucketCounts(ctx, idx, e.Status, +1)
}

// DecrementBucket is the delete path: the bucket matching the removed
// event loses one from the count matching its status, floored at zero.
// A missing bucket is benign — there is nothing left to decrement.
func (u *Updater) DecrementBucket(ctx context.Context, date, interval string, status models.Status) error {
	rows, err := u.store.Read(ctx, models.StatsRange)
	if err != nil {
		return err
	}

	idx := resolver.FindComposite(rows, models.StatColDate, date, models.StatColInterval, interval)
	if idx == resolver.NotFound {
		return nil
	}

	return u.shiftBucketCounts(ctx, idx, status, -1)
}

// shiftBucketCounts re-reads the three count cells of a resolved bucket
// row and writes them back with one count moved by delta.
func (u *Updater) shiftBucketCounts(ctx context.Context, idx int, status models.Status, delta int) error {
	statsSheet := sheetName(models.StatsRange)
	countRange := remote.CellRange(statsSheet, models.StatColNotHome, models.StatColEstimate, idx+1)

	counts, err := u.store.Read(ctx, countRange)
	if err != nil {
		return err
	}

	b := &models.IntervalBucket{}
	if len(counts) > 0 {
		b.NotHomeCount, b.OpenedCount, b.EstimateCount = models.CountsFromRow(padCounts(counts[0]))
	}
	b.Bump(status, delta)

	return u.store.Update(ctx, countRange, [][]string{b.Counts()})
}

// applyPosition overwrites (or appends) the user's last known position,
// last write wins.
func (u *Updater) applyPosition(ctx context.Context, e *models.Event) error {
	rows, err := u.store.Read(ctx, models.PositionRange)
	if err != nil {
		return err
	}

	pos := models.UserPosition{User: e.User, StreetName: e.StreetName, DoorNumber: e.DoorNumber}

	for i := 1; i < len(rows); i++ {
		if cellAt(rows[i], 0) == e.User {
			rng := remote.CellRange(sheetName(models.PositionRange), 0, 2, i+1)
			return u.store.Update(ctx, rng, [][]string{pos.Row()})
		}
	}
	return u.store.Append(ctx, models.PositionRange, pos.Row())
}

// applyNotHome appends the door to the street's comma-joined list. A new
// street takes the first row whose key cell is empty — a linear scan for
// the first gap, not necessarily the end of the range.
func (u *Updater) applyNotHome(ctx context.Context, e *models.Event) error {
	rows, err := u.store.Read(ctx, models.NotHomeRange)
	if err != nil {
		return err
	}

	sheet := sheetName(models.NotHomeRange)

	firstGap := resolver.NotFound
	for i := 1; i < len(rows); i++ {
		key := cellAt(rows[i], 0)
		if key == e.StreetName {
			entry := models.NotHomeEntry{StreetName: e.StreetName, DoorNumbers: cellAt(rows[i], 1)}
			entry.Append(e.DoorNumber)
			return u.store.Update(ctx, remote.CellRange(sheet, 0, 1, i+1), [][]string{entry.Row()})
		}
		if key == "" && firstGap == resolver.NotFound {
			firstGap = i
		}
	}

	entry := models.NotHomeEntry{StreetName: e.StreetName, DoorNumbers: e.DoorNumber}
	if firstGap != resolver.NotFound {
		return u.store.Update(ctx, remote.CellRange(sheet, 0, 1, firstGap+1), [][]string{entry.Row()})
	}
	return u.store.Append(ctx, models.NotHomeRange, entry.Row())
}

// sheetName strips the column span from a range constant.
func sheetName(rng string) string {
	ref, err := remote.ParseRange(rng)
	if err != nil {
		return rng
	}
	return ref.Sheet
}

// padCounts left-pads a short count row read from a bounded range, where
// the first cell returned is already column I.
func padCounts(counts []string) []string {
	row := make([]string, models.StatColCount)
	for i, c := range counts {
		if models.StatColNotHome+i < len(row) {
			row[models.StatColNotHome+i] = c
		}
	}
	return row
}
