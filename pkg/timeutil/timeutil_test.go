package timeutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2015-09-15T10:15:00.500000Z")
	require.NoError(t, err)

	want := time.Date(2015, time.September, 15, 10, 15, 0, 500000000, time.UTC)
	assert.True(t, want.Equal(got), "got %v", got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseInstant_Malformed(t *testing.T) {
	cases := []string{
		"",
		"2015-09-15",
		"2015-09-15T10:15:00Z",
		"2015-09-15T10:15:00.000Z",
		"2015-09-15T10:15:00.0000000Z",
		"2015-09-15T10:15:00.000000",
		"2015-09-15T10:15:00.000000+00:00",
		"2015-09-15 10:15:00.000000Z",
		"2015-9-15T10:15:00.000000Z",
		"2015-09-15T1:15:00.0000000Z",
		"2015-13-15T10:15:00.000000Z",
		"2015-02-30T10:15:00.000000Z",
		"2015-09-15T25:15:00.000000Z",
		" 2015-09-15T10:15:00.000000Z",
	}
	for _, value := range cases {
		_, err := ParseInstant(value)
		require.Error(t, err, value)

		var perr *ParseError
		require.True(t, errors.As(err, &perr), value)
		assert.Equal(t, value, perr.Value)
		assert.Equal(t, InstantLayout, perr.Layout)
		assert.ErrorIs(t, err, ErrMalformedInstant)
	}
}

func TestFormatInstant(t *testing.T) {
	ts := time.Date(2015, time.September, 15, 15, 15, 0, 123456789, time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, "2015-09-15T10:15:00.123456Z", FormatInstant(ts))
}

func TestFormatInstant_RoundTrip(t *testing.T) {
	const value = "2015-08-01T06:00:00.000000Z"
	assert.Equal(t, value, FormatInstant(MustParseInstant(value)))
}

func TestMustParseInstant_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseInstant("not a time") })
}

func TestSteppingClock(t *testing.T) {
	start := MustParseInstant("2015-09-15T10:15:00.000000Z")
	clock := NewSteppingClock(start, time.Second)

	assert.Equal(t, "2015-09-15T10:15:00.000000Z", NowInstant(clock))
	assert.Equal(t, "2015-09-15T10:15:01.000000Z", NowInstant(clock))
	assert.Equal(t, "2015-09-15T10:15:02.000000Z", NowInstant(clock))
}

func TestSteppingClock_Concurrent(t *testing.T) {
	start := MustParseInstant("2015-09-15T10:15:00.000000Z")
	clock := NewSteppingClock(start, time.Millisecond)

	const n = 100
	var wg sync.WaitGroup
	seen := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.Now()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]struct{}, n)
	for ts := range seen {
		unique[ts] = struct{}{}
	}
	assert.Len(t, unique, n)
	assert.True(t, start.Add(n*time.Millisecond).Equal(clock.Now()))
}

func TestFixedClock(t *testing.T) {
	ts := MustParseInstant("2015-09-15T10:15:00.000000Z")
	clock := FixedClock{Time: ts}
	assert.Equal(t, ts, clock.Now())
	assert.Equal(t, ts, clock.Now())
}
