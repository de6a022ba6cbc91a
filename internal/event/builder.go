// Package event assembles immutable enriched events from user input and
// the injected collaborators (weather, identity, clock).
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rldls/doorlog/internal/models"
)

// WeatherFunc is the enrichment collaborator contract. It never fails:
// on any internal error it returns a sentinel condition string and a nil
// temperature.
type WeatherFunc func(ctx context.Context, at time.Time) models.Weather

// Builder produces events with strictly monotonic timestamps. The
// timestamp is the event's only deletion handle, so two events built on
// one device must never share one, even inside the same millisecond.
type Builder struct {
	user      string
	bucketMin int
	weather   WeatherFunc
	now       func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewBuilder creates a Builder for a device identity. bucketMinutes
// controls the interval bucketing (60 gives "15:00", "16:00", ...).
func NewBuilder(user string, bucketMinutes int, weather WeatherFunc) *Builder {
	return &Builder{
		user:      user,
		bucketMin: bucketMinutes,
		weather:   weather,
		now:       time.Now,
	}
}

// Seed informs the builder of the newest timestamp already persisted on
// this device so monotonicity holds across restarts.
func (b *Builder) Seed(lastTimestamp string) {
	t, err := time.Parse(time.RFC3339, lastTimestamp)
	if err != nil {
		return
	}
	b.mu.Lock()
	if t.After(b.last) {
		b.last = t
	}
	b.mu.Unlock()
}

// Build assembles an event for one visit outcome. The day context comes
// from the daily check-in; weather is looked up per event.
func (b *Builder) Build(ctx context.Context, street, door string, status models.Status, day models.DayContext) *models.Event {
	t := b.nextTimestamp()

	if day.DayOfWeek == "" {
		day.DayOfWeek = t.Weekday().String()
	}

	e := &models.Event{
		Date:       t.Format("2006-01-02"),
		Interval:   b.Interval(t),
		StreetName: street,
		DoorNumber: door,
		Status:     status,
		Timestamp:  t.Format("2006-01-02T15:04:05.000Z07:00"),
		Day:        day,
		User:       b.user,
	}

	if b.weather != nil {
		e.Weather = b.weather(ctx, t)
	}
	return e
}

// CarryOver builds the synthetic first entry that seeds a new day from
// the previous known position. It is persisted and synced for continuity
// but excluded from duplicate checks and aggregation.
func (b *Builder) CarryOver(pos *models.UserPosition, originalDate string) *models.Event {
	t := b.nextTimestamp()
	return &models.Event{
		Date:         t.Format("2006-01-02"),
		Interval:     b.Interval(t),
		StreetName:   pos.StreetName,
		DoorNumber:   pos.DoorNumber,
		Status:       models.StatusNotHome,
		Timestamp:    t.Format("2006-01-02T15:04:05.000Z07:00"),
		Day:          models.DayContext{DayOfWeek: t.Weekday().String()},
		User:         b.user,
		IsFirstEntry: true,
	}
}

// Interval returns the "HH:MM" bucket start for an instant.
func (b *Builder) Interval(t time.Time) string {
	min := b.bucketMin
	if min <= 0 {
		min = 60
	}
	bucket := (t.Hour()*60 + t.Minute()) / min * min
	return fmt.Sprintf("%02d:%02d", bucket/60, bucket%60)
}

// nextTimestamp returns a UTC instant strictly after every previous one,
// bumping by a millisecond when the clock has not advanced.
func (b *Builder) nextTimestamp() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now().UTC().Truncate(time.Millisecond)
	if !t.After(b.last) {
		t = b.last.Add(time.Millisecond)
	}
	b.last = t
	return t
}
