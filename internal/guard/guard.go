// Package guard implements the client-side duplicate check: one visit per
// address per day, regardless of outcome. The check is advisory — the
// server repeats it at write time, because a replayed queue can outlive
// the history this check reads.
package guard

import (
	"fmt"

	"github.com/rldls/doorlog/internal/db"
	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/models"
)

// Guard rejects candidate events that collide with the day's history.
type Guard struct {
	repo *db.Repository
}

// New creates a Guard over the local history.
func New(repo *db.Repository) *Guard {
	return &Guard{repo: repo}
}

// Check returns a duplicate error when any non-first-entry event for the
// candidate's day shares its (door, street). Status is ignored: a second
// visit to the same door is rejected even with a different outcome.
func (g *Guard) Check(candidate *models.Event) error {
	history, err := g.repo.HistoryForDay(candidate.Date)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load day history", err)
	}
	return Conflicts(candidate, history)
}

// Conflicts is the pure form of the check, shared with tests and the
// server-side variant.
func Conflicts(candidate *models.Event, history []*models.Event) error {
	for _, h := range history {
		if h.IsFirstEntry {
			continue
		}
		if h.SameAddress(candidate) {
			return errors.New(errors.ErrDuplicate,
				fmt.Sprintf("%s, %s already logged today", candidate.DoorNumber, candidate.StreetName))
		}
	}
	return nil
}
