package models

import (
	"strconv"
	"strings"
)

// Remote table layout. The store is a plain grid with no row ids; every
// entity below is addressed by scanning, never by cached index.
//
//	Log!A:M         one row per event
//	Daily Stats!A:L one row per (date, interval)
//	Positions!A:C   one row per user
//	Not Home!A:B    one row per street
const (
	LogRange      = "Log!A:M"
	StatsRange    = "Daily Stats!A:L"
	PositionRange = "Positions!A:C"
	NotHomeRange  = "Not Home!A:B"
)

// Log sheet column indexes.
const (
	LogColDate = iota
	LogColDayOfWeek
	LogColGroomed
	LogColMood
	LogColJacket
	LogColCondition
	LogColTemp
	LogColInterval
	LogColStreet
	LogColDoor
	LogColStatus
	LogColTimestamp
	LogColFirstEntry
	LogColCount
)

// Daily Stats sheet column indexes. Counts live in I:K so they can be
// read and written back together in a single range operation.
const (
	StatColDate = iota
	StatColDayOfWeek
	StatColInterval
	StatColGroomed
	StatColJacket
	StatColMood
	StatColCondition
	StatColTemp
	StatColNotHome
	StatColOpened
	StatColEstimate
	StatColUser
	StatColCount
)

// LogRow flattens an event into its Log sheet representation.
func LogRow(e *Event) []string {
	row := make([]string, LogColCount)
	row[LogColDate] = e.Date
	row[LogColDayOfWeek] = e.Day.DayOfWeek
	row[LogColGroomed] = e.Day.Groomed
	row[LogColMood] = e.Day.Mood
	row[LogColJacket] = e.Day.Jacket
	row[LogColCondition] = e.Weather.Condition
	row[LogColTemp] = FormatTemp(e.Weather.Temp)
	row[LogColInterval] = e.Interval
	row[LogColStreet] = e.StreetName
	row[LogColDoor] = e.DoorNumber
	row[LogColStatus] = string(e.Status)
	row[LogColTimestamp] = e.Timestamp
	if e.IsFirstEntry {
		row[LogColFirstEntry] = "1"
	}
	return row
}

// EventFromLogRow rebuilds the event fields stored in a Log sheet row.
// Short rows are tolerated; missing cells come back empty.
func EventFromLogRow(row []string) *Event {
	e := &Event{
		Date:       cell(row, LogColDate),
		Interval:   cell(row, LogColInterval),
		StreetName: cell(row, LogColStreet),
		DoorNumber: cell(row, LogColDoor),
		Status:     Status(cell(row, LogColStatus)),
		Timestamp:  cell(row, LogColTimestamp),
		Day: DayContext{
			DayOfWeek: cell(row, LogColDayOfWeek),
			Groomed:   cell(row, LogColGroomed),
			Mood:      cell(row, LogColMood),
			Jacket:    cell(row, LogColJacket),
		},
		Weather: Weather{
			Condition: cell(row, LogColCondition),
			Temp:      ParseTemp(cell(row, LogColTemp)),
		},
		IsFirstEntry: cell(row, LogColFirstEntry) == "1",
	}
	return e
}

// IntervalBucket is one Daily Stats row: per-interval counters seeded
// with the first event's context fields.
type IntervalBucket struct {
	Date          string
	DayOfWeek     string
	Interval      string
	Groomed       string
	Jacket        string
	Mood          string
	Condition     string
	Temp          string
	NotHomeCount  int
	OpenedCount   int
	EstimateCount int
	User          string
}

// NewBucket seeds a bucket from an event with a 1 in the column matching
// the event's status.
func NewBucket(e *Event) *IntervalBucket {
	b := &IntervalBucket{
		Date:      e.Date,
		DayOfWeek: e.Day.DayOfWeek,
		Interval:  e.Interval,
		Groomed:   e.Day.Groomed,
		Jacket:    e.Day.Jacket,
		Mood:      e.Day.Mood,
		Condition: e.Weather.Condition,
		Temp:      FormatTemp(e.Weather.Temp),
		User:      e.User,
	}
	b.Bump(e.Status, 1)
	return b
}

// Bump moves the counter matching status by delta, floored at zero.
func (b *IntervalBucket) Bump(status Status, delta int) {
	switch status {
	case StatusNotHome:
		b.NotHomeCount = clampCount(b.NotHomeCount + delta)
	case StatusOpened:
		b.OpenedCount = clampCount(b.OpenedCount + delta)
	case StatusEstimate:
		b.EstimateCount = clampCount(b.EstimateCount + delta)
	}
}

// Counts returns the three count cells in sheet order (I:K).
func (b *IntervalBucket) Counts() []string {
	return []string{
		strconv.Itoa(b.NotHomeCount),
		strconv.Itoa(b.OpenedCount),
		strconv.Itoa(b.EstimateCount),
	}
}

// Row flattens the bucket into its Daily Stats representation.
func (b *IntervalBucket) Row() []string {
	row := make([]string, StatColCount)
	row[StatColDate] = b.Date
	row[StatColDayOfWeek] = b.DayOfWeek
	row[StatColInterval] = b.Interval
	row[StatColGroomed] = b.Groomed
	row[StatColJacket] = b.Jacket
	row[StatColMood] = b.Mood
	row[StatColCondition] = b.Condition
	row[StatColTemp] = b.Temp
	row[StatColNotHome] = strconv.Itoa(b.NotHomeCount)
	row[StatColOpened] = strconv.Itoa(b.OpenedCount)
	row[StatColEstimate] = strconv.Itoa(b.EstimateCount)
	row[StatColUser] = b.User
	return row
}

// CountsFromRow reads the three count cells of a Daily Stats row. Cells
// that fail to parse count as zero, matching how the store loosely types
// everything as text.
func CountsFromRow(row []string) (notHome, opened, estimate int) {
	notHome = parseCount(cell(row, StatColNotHome))
	opened = parseCount(cell(row, StatColOpened))
	estimate = parseCount(cell(row, StatColEstimate))
	return
}

// UserPosition is one Positions row: the last known address per user,
// last-write-wins.
type UserPosition struct {
	User       string `json:"user"`
	StreetName string `json:"streetName"`
	DoorNumber string `json:"doorNumber"`
}

// Row flattens the position into its Positions sheet representation.
func (p *UserPosition) Row() []string {
	return []string{p.User, p.StreetName, p.DoorNumber}
}

// NotHomeEntry is one Not Home row: a street and the comma-joined doors
// recorded as not-home there. The list only ever grows.
type NotHomeEntry struct {
	StreetName  string
	DoorNumbers string
}

// Append adds a door number to the comma-joined list.
func (n *NotHomeEntry) Append(door string) {
	if n.DoorNumbers == "" {
		n.DoorNumbers = door
		return
	}
	n.DoorNumbers = n.DoorNumbers + ", " + door
}

// Row flattens the entry into its Not Home sheet representation.
func (n *NotHomeEntry) Row() []string {
	return []string{n.StreetName, n.DoorNumbers}
}

// FormatTemp renders a temperature cell; nil becomes the empty cell.
func FormatTemp(t *float64) string {
	if t == nil {
		return ""
	}
	return strconv.FormatFloat(*t, 'f', 1, 64)
}

// ParseTemp reads a temperature cell; empty or malformed becomes nil.
func ParseTemp(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func parseCount(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func clampCount(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
