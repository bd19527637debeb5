package isoduration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

// Zero is the representation of an empty interval.
const Zero = "PT00S"

const microsPerSecond = int64(time.Second / time.Microsecond)

// ErrInvalidDuration is returned by Parse for strings outside the D/H/M/S grammar.
var ErrInvalidDuration = errors.New("invalid ISO-8601 duration")

// Format parses start and end as instants and returns the elapsed time between
// them. Malformed instants return a *timeutil.ParseError.
func Format(start, end string) (string, error) {
	tstart, err := timeutil.ParseInstant(start)
	if err != nil {
		return "", err
	}
	tend, err := timeutil.ParseInstant(end)
	if err != nil {
		return "", err
	}
	return Between(tstart, tend), nil
}

// Between returns the elapsed time from start to end. The span is taken in
// whole microseconds, which covers any pair of years 0001 to 9999 without the
// ~292 year ceiling of time.Duration.
func Between(start, end time.Time) string {
	micros := end.UnixMicro() - start.UnixMicro()
	if micros <= 0 {
		return Zero
	}
	return format(micros)
}

// Of formats d, truncated to whole microseconds. Negative spans format as Zero.
func Of(d time.Duration) string {
	if d <= 0 {
		return Zero
	}
	return format(int64(d / time.Microsecond))
}

// FromSeconds formats a second count rounded to the nearest microsecond.
// Negative and NaN inputs format as Zero.
func FromSeconds(sec float64) string {
	if !(sec > 0) {
		return Zero
	}
	micros := math.Round(sec * float64(microsPerSecond))
	if micros >= math.MaxInt64 {
		return format(math.MaxInt64)
	}
	return format(int64(micros))
}

func format(micros int64) string {
	secs, frac := micros/microsPerSecond, micros%microsPerSecond

	minutes, seconds := secs/60, secs%60
	hours, minutes := minutes/60, minutes%60
	days, hours := hours/24, hours%24

	var b strings.Builder
	b.WriteByte('P')
	if days > 0 {
		b.WriteString(strconv.FormatInt(days, 10))
		b.WriteByte('D')
	}

	b.WriteByte('T')
	bigger := days > 0 || hours > 0
	if bigger {
		fmt.Fprintf(&b, "%02dH", hours)
	}
	bigger = bigger || minutes > 0
	if bigger {
		fmt.Fprintf(&b, "%02dM", minutes)
	}

	b.WriteString(formatSeconds(seconds, frac))
	b.WriteByte('S')
	return b.String()
}

// formatSeconds strips trailing zeros from the fraction only; frac is non-zero
// whenever a point is written, so trimming never reaches it.
func formatSeconds(whole, frac int64) string {
	if frac == 0 {
		return fmt.Sprintf("%02d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%02d.%06d", whole, frac), "0")
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSING
// ══════════════════════════════════════════════════════════════════════════════

var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.(\d{1,9}))?S)?)?$`)

// Parse reads a duration written with D, H, M and S units back into a
// time.Duration. Components need not be padded, so legacy values such as
// PT3000S are accepted.
func Parse(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var total float64
	units := []struct {
		value string
		scale time.Duration
	}{
		{m[1], 24 * time.Hour},
		{m[2], time.Hour},
		{m[3], time.Minute},
		{m[4], time.Second},
	}

	var d time.Duration
	for _, u := range units {
		if u.value == "" {
			continue
		}
		n, err := strconv.ParseInt(u.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
		}
		total += float64(n) * float64(u.scale)
		if total > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %q: out of range", ErrInvalidDuration, s)
		}
		d += time.Duration(n) * u.scale
	}

	if frac := m[5]; frac != "" {
		frac += strings.Repeat("0", 9-len(frac))
		ns, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
		}
		if total+float64(ns) > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %q: out of range", ErrInvalidDuration, s)
		}
		d += time.Duration(ns)
	}

	return d, nil
}

// Seconds parses s and returns its length in seconds.
func Seconds(s string) (float64, error) {
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// Valid reports whether s is a duration this package can read.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
