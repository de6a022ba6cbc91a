// Package models provides the data model shared by the field client and
// the server.
package models

import (
	"strings"
	"time"

	"github.com/rldls/doorlog/internal/errors"
)

// Status is the recorded outcome of one door visit.
type Status string

const (
	StatusNotHome  Status = "not-home"
	StatusOpened   Status = "opened"
	StatusEstimate Status = "estimate"
)

// IsValid reports whether the status is one of the three known outcomes.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotHome, StatusOpened, StatusEstimate:
		return true
	}
	return false
}

// Label returns the human form, e.g. "Not Home".
func (s Status) Label() string {
	parts := strings.Split(string(s), "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Weather is the opaque enrichment attached to an event. Temp is nil when
// the lookup failed; Condition then carries a sentinel string instead.
type Weather struct {
	Temp      *float64 `json:"temp"`
	Condition string   `json:"condition"`
}

// DayContext is the once-per-day check-in stamped onto every event.
type DayContext struct {
	DayOfWeek string `json:"dayOfWeek"`
	Groomed   string `json:"groomed"`
	Mood      string `json:"mood"`
	Jacket    string `json:"jacket"`
}

// Event is one user-recorded visit outcome. Timestamp doubles as the
// event's only handle for later deletion and must never be regenerated
// or mutated after creation.
type Event struct {
	Date         string     `json:"date"`     // YYYY-MM-DD
	Interval     string     `json:"interval"` // HH:MM bucket start
	StreetName   string     `json:"streetName"`
	DoorNumber   string     `json:"doorNumber"`
	Status       Status     `json:"status"`
	Timestamp    string     `json:"timestamp"` // RFC3339, unique per device
	Day          DayContext `json:"dayContext"`
	Weather      Weather    `json:"weather"`
	User         string     `json:"user"`
	IsFirstEntry bool       `json:"isFirstEntry"`
}

// Validate checks the fields every event must carry before it may be
// queued or written remotely.
func (e *Event) Validate() error {
	switch {
	case e.StreetName == "":
		return errors.New(errors.ErrValidation, "streetName is required")
	case e.DoorNumber == "":
		return errors.New(errors.ErrValidation, "doorNumber is required")
	case e.Timestamp == "":
		return errors.New(errors.ErrValidation, "timestamp is required")
	case e.Date == "":
		return errors.New(errors.ErrValidation, "date is required")
	case e.Interval == "":
		return errors.New(errors.ErrValidation, "interval is required")
	case !e.Status.IsValid():
		return errors.New(errors.ErrValidation, "status must be not-home, opened or estimate")
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return errors.Wrap(errors.ErrValidation, "timestamp must be RFC3339", err)
	}
	return nil
}

// SameAddress reports whether two events target the same natural key,
// ignoring status. Used by both duplicate checks.
func (e *Event) SameAddress(other *Event) bool {
	return e.DoorNumber == other.DoorNumber && e.StreetName == other.StreetName
}

// Time returns the parsed timestamp, or the zero time when unparsable.
func (e *Event) Time() time.Time {
	t, _ := time.Parse(time.RFC3339, e.Timestamp)
	return t
}
