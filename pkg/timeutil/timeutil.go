// Package timeutil provides the instant format shared by every Caliper fixture.
// All instants are UTC with microsecond resolution and a literal Z designator,
// e.g. 2015-09-15T10:15:00.000000Z.
// No external dependencies - uses only standard library.
package timeutil

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// InstantLayout is the fixed external form of an instant.
const InstantLayout = "2006-01-02T15:04:05.000000Z"

// time.Parse accepts single-digit hours and similar leniencies, so the shape is
// checked before parsing.
var instantShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}Z$`)

// ErrMalformedInstant is the kind carried by every ParseError.
var ErrMalformedInstant = errors.New("malformed instant")

// ParseError reports a timestamp that does not match InstantLayout.
type ParseError struct {
	Layout string
	Value  string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timeutil: cannot parse %q as %q: %v", e.Value, e.Layout, e.Err)
	}
	return fmt.Sprintf("timeutil: cannot parse %q as %q", e.Value, e.Layout)
}

// Unwrap returns the underlying parse error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedInstant.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedInstant
}

// ParseInstant parses a UTC instant in InstantLayout.
func ParseInstant(value string) (time.Time, error) {
	if !instantShape.MatchString(value) {
		return time.Time{}, &ParseError{Layout: InstantLayout, Value: value}
	}
	t, err := time.Parse(InstantLayout, value)
	if err != nil {
		return time.Time{}, &ParseError{Layout: InstantLayout, Value: value, Err: err}
	}
	return t, nil
}

// MustParseInstant is like ParseInstant but panics on malformed input.
// Intended for literals in tests and defaults.
func MustParseInstant(value string) time.Time {
	t, err := ParseInstant(value)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatInstant formats t as a UTC instant truncated to microseconds.
func FormatInstant(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(InstantLayout)
}

// IsInstant reports whether value is a well-formed instant.
func IsInstant(value string) bool {
	_, err := ParseInstant(value)
	return err == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCKS
// ══════════════════════════════════════════════════════════════════════════════

// Clock provides the current time. Fixture builders take a Clock so generated
// timestamps can be made deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.Time
}

// SteppingClock starts at a fixed instant and advances by Step after every
// call to Now. It is safe for concurrent use.
type SteppingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewSteppingClock returns a clock whose first reading is start.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{next: start.UTC(), step: step}
}

// Now returns the current reading and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// NowInstant reads clock and formats the reading as an instant.
func NowInstant(clock Clock) string {
	return FormatInstant(clock.Now())
}
