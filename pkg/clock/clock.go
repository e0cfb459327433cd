// Package clock is the single source of "now" and of calendar-day boundaries.
// Day keys and investment end dates are always computed in the reference
// location, never in the host's local zone.
package clock

import (
	"fmt"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Clock resolves instants and calendar days in a reference location.
type Clock struct {
	loc    *time.Location
	source func() time.Time
}

// New returns a wall clock for loc. A nil loc means UTC.
func New(loc *time.Location) *Clock {
	return NewWithSource(loc, time.Now)
}

// NewWithSource returns a clock that reads the current instant from source.
func NewWithSource(loc *time.Location, source func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if source == nil {
		source = time.Now
	}
	return &Clock{loc: loc, source: source}
}

// LoadLocation resolves an IANA zone name such as "America/Sao_Paulo".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Location returns the reference location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant expressed in the reference location.
func (c *Clock) Now() time.Time {
	return c.source().In(c.loc)
}

// DayKey returns the reference-location calendar date of t as YYYY-MM-DD.
func (c *Clock) DayKey(t time.Time) string {
	return t.In(c.loc).Format(dayLayout)
}

// StartOfDay returns local midnight of the reference-location day containing t.
func (c *Clock) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// AddDays moves t forward by n calendar days in the reference location,
// keeping the wall-clock time of day.
func (c *Clock) AddDays(t time.Time, n int) time.Time {
	return t.In(c.loc).AddDate(0, 0, n)
}

// Manual is a settable time source for tests and backfills.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

// NewManual returns a Manual source positioned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{t: start}
}

// Now implements the source signature expected by NewWithSource.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Set moves the source to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.t = t
	m.mu.Unlock()
}

// Advance moves the source forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}
