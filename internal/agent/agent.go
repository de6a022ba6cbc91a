// Package agent composes the client-resident engine: builder, guard,
// durable queue, sync engine and connectivity monitor, over one local
// database. The UI layer (CLI here, a mobile shell in the field) only
// ever talks to this facade; it never touches the queue directly.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rldls/doorlog/internal/config"
	"github.com/rldls/doorlog/internal/db"
	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/event"
	"github.com/rldls/doorlog/internal/guard"
	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/models"
	"github.com/rldls/doorlog/internal/queue"
	"github.com/rldls/doorlog/internal/syncer"
	"github.com/rldls/doorlog/internal/weather"
)

// Preference keys.
const (
	prefStreet  = "streetName"
	prefDoor    = "doorNumber"
	prefCheckin = "checkin:" // + date
)

// Agent is the field client engine.
type Agent struct {
	cfg     config.Client
	db      *db.DB
	repo    *db.Repository
	queue   *queue.Queue
	guard   *guard.Guard
	builder *event.Builder
	remote  syncer.Remote
	engine  *syncer.Engine
	monitor *syncer.Monitor
}

// New opens the local database and wires the engine. Call Close when
// done; call StartMonitor to run the background drain loops.
func New(cfg config.Client) (*Agent, error) {
	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to open local store", err)
	}

	repo := db.NewRepository(database.DB)
	q := queue.New(repo, 0)
	remote := syncer.NewHTTPRemote(cfg.ServerURL, cfg.RequestTimeout)
	engine := syncer.NewEngine(q, remote)

	wx := weather.NewClient(cfg.Latitude, cfg.Longitude)
	builder := event.NewBuilder(cfg.User, cfg.IntervalMinutes, wx.Fetch)
	if last, err := repo.LastTimestamp(); err == nil && last != "" {
		builder.Seed(last)
	}

	return &Agent{
		cfg:     cfg,
		db:      database,
		repo:    repo,
		queue:   q,
		guard:   guard.New(repo),
		builder: builder,
		remote:  remote,
		engine:  engine,
		monitor: syncer.NewMonitor(engine, remote, cfg.ProbeInterval, cfg.DrainInterval),
	}, nil
}

// StartMonitor launches the background sync loops.
func (a *Agent) StartMonitor(ctx context.Context) {
	a.monitor.Start(ctx)
}

// Close stops the monitor and the local database.
func (a *Agent) Close() error {
	a.monitor.Stop()
	return a.db.Close()
}

// RecordResult tells the UI what happened to a new event.
type RecordResult struct {
	Event  *models.Event
	Queued bool // true when the event awaits a later drain cycle
}

// Record captures one visit outcome. The event lands in local history
// immediately; the remote write is attempted inline when the device is
// online and nothing is queued ahead of it, otherwise it is queued. A
// duplicate for today's history is rejected before anything is stored.
func (a *Agent) Record(ctx context.Context, street, door string, status models.Status) (*RecordResult, error) {
	day, _ := a.DayCheckin(time.Now().Format("2006-01-02"))
	e := a.builder.Build(ctx, street, door, status, day)

	if err := a.guard.Check(e); err != nil {
		return nil, err
	}

	if err := a.repo.InsertHistory(e); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to record event", err)
	}
	a.rememberPosition(street, door)

	// Inline writes are only safe with an empty queue; jumping ahead of
	// queued entries would reorder effects for the same address.
	if a.monitor.IsOnline() && a.queue.Depth() == 0 {
		err := a.remote.CreateLog(ctx, e)
		switch {
		case err == nil:
			return &RecordResult{Event: e}, nil
		case errors.Is(err, errors.ErrDuplicate), errors.Is(err, errors.ErrValidation):
			// The server refused the event for good; a history row for a
			// write that will never exist remotely must not linger.
			if herr := a.repo.DeleteHistory(e.Timestamp); herr != nil {
				logging.Warn("failed to drop rejected event from history", map[string]interface{}{
					"timestamp": e.Timestamp, "error": herr.Error(),
				})
			}
			return nil, err
		default:
			logging.Warn("inline write failed, queueing", map[string]interface{}{
				"timestamp": e.Timestamp, "error": err.Error(),
			})
		}
	}

	if _, err := a.queue.EnqueueCreate(e); err != nil {
		return nil, err
	}
	a.monitor.TriggerDrain(ctx)
	return &RecordResult{Event: e, Queued: true}, nil
}

// Delete removes an event by its timestamp, the only handle there is.
// A still-queued create cancels in place with zero remote calls; an
// already-synced event queues (or sends) a remote delete.
func (a *Agent) Delete(ctx context.Context, timestamp string) (cancelled bool, err error) {
	if err := a.repo.DeleteHistory(timestamp); err != nil {
		return false, errors.Wrap(errors.ErrDatabase, "failed to drop history entry", err)
	}

	_, cancelled, err = a.queue.EnqueueDelete(timestamp)
	if err != nil {
		return false, err
	}
	if !cancelled {
		a.monitor.TriggerDrain(ctx)
	}
	return cancelled, nil
}

// StartDay seeds today's history with the carry-over entry built from
// the server's last known position. Offline, the day simply starts
// without one.
func (a *Agent) StartDay(ctx context.Context) (*models.Event, error) {
	today := time.Now().Format("2006-01-02")

	history, err := a.repo.HistoryForDay(today)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read history", err)
	}
	if len(history) > 0 {
		return nil, errors.New(errors.ErrDuplicate, "day already started")
	}

	pos, err := a.remote.LastLog(ctx, a.cfg.User)
	if err != nil {
		if errors.Is(err, errors.ErrNotFoundRemote) {
			return nil, nil // nothing to carry over
		}
		return nil, err
	}

	e := a.builder.CarryOver(pos, "")
	if err := a.repo.InsertHistory(e); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to record carry-over", err)
	}
	if _, err := a.queue.EnqueueCreate(e); err != nil {
		return nil, err
	}
	a.monitor.TriggerDrain(ctx)
	return e, nil
}

// CheckIn stores the day context stamped onto the rest of the day's
// events.
func (a *Agent) CheckIn(day models.DayContext) error {
	data, err := json.Marshal(day)
	if err != nil {
		return err
	}
	date := time.Now().Format("2006-01-02")
	return a.repo.SetPref(prefCheckin+date, string(data))
}

// DayCheckin returns the stored check-in for a date, zero when absent.
func (a *Agent) DayCheckin(date string) (models.DayContext, error) {
	var day models.DayContext
	raw, err := a.repo.GetPref(prefCheckin+date, "")
	if err != nil || raw == "" {
		return day, err
	}
	err = json.Unmarshal([]byte(raw), &day)
	return day, err
}

// History returns the visible log for a date, oldest first.
func (a *Agent) History(date string) ([]*models.Event, error) {
	return a.repo.HistoryForDay(date)
}

// Position returns the locally remembered street and door.
func (a *Agent) Position() (street, door string) {
	street, _ = a.repo.GetPref(prefStreet, "")
	door, _ = a.repo.GetPref(prefDoor, "1")
	return street, door
}

// Status reports queue depth and connectivity for the status command.
type Status struct {
	Online     bool
	QueueDepth int
	LastDrain  time.Time
}

// Status returns a snapshot of the engine.
func (a *Agent) Status() Status {
	ms := a.monitor.Status()
	return Status{
		Online:     ms.Online,
		QueueDepth: a.queue.Depth(),
		LastDrain:  ms.LastDrain,
	}
}

// Drain runs one synchronous drain cycle, for the sync command.
func (a *Agent) Drain(ctx context.Context) (syncer.DrainResult, bool) {
	return a.engine.Drain(ctx)
}

// Ping probes the server directly, bypassing the monitor's cached view.
func (a *Agent) Ping(ctx context.Context) error {
	return a.remote.Ping(ctx)
}

func (a *Agent) rememberPosition(street, door string) {
	if err := a.repo.SetPref(prefStreet, street); err != nil {
		logging.Warn("failed to remember street", map[string]interface{}{"error": err.Error()})
	}
	if err := a.repo.SetPref(prefDoor, door); err != nil {
		logging.Warn("failed to remember door", map[string]interface{}{"error": err.Error()})
	}
}
