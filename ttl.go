package litecache

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TTL is a time-to-live in whole seconds.
type TTL int64

const (
	// DefaultTTL selects the TTL configured with WithDefaultTTL.
	DefaultTTL TTL = -2
	// Never keeps an artifact until it is deleted explicitly.
	Never TTL = -1
	// Immediate stores an artifact that is already expired.
	Immediate TTL = 0
)

// Seconds returns a TTL of n seconds.
func Seconds(n int64) TTL {
	return TTL(n)
}

// FromDuration converts d to a TTL, truncating to whole seconds.
func FromDuration(d time.Duration) TTL {
	return TTL(d / time.Second)
}

// Duration returns t as a time.Duration. Sentinels map to zero.
func (t TTL) Duration() time.Duration {
	if t <= 0 {
		return 0
	}
	return time.Duration(t) * time.Second
}

// String renders t as "never", "default" or HH:MM:SS with unbounded hours.
func (t TTL) String() string {
	switch t {
	case Never:
		return "never"
	case DefaultTTL:
		return "default"
	}
	if t < 0 {
		return fmt.Sprintf("invalid(%d)", int64(t))
	}
	return fmt.Sprintf("%02d:%02d:%02d", t/3600, t%3600/60, t%60)
}

func (t TTL) valid() bool {
	return t >= DefaultTTL
}

// ParseTTL normalizes the accepted external TTL representations: integer
// kinds (seconds), TTL, time.Duration, and strings. Strings may be "never",
// "immediate", plain seconds ("90"), Go durations ("1h30m") or relative
// phrases ("10 seconds", "1 day 3 hours", "+2 weeks"). A nil value selects
// DefaultTTL. Months count as 30 days and years as 365 days.
func ParseTTL(v any) (TTL, error) {
	var n int64
	switch t := v.(type) {
	case nil:
		return DefaultTTL, nil
	case TTL:
		n = int64(t)
	case time.Duration:
		if t < 0 {
			return 0, fmt.Errorf("%w: negative duration %s", ErrInvalidArgument, t)
		}
		return FromDuration(t), nil
	case int:
		n = int64(t)
	case int8:
		n = int64(t)
	case int16:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case uint:
		n = int64(t)
	case uint8:
		n = int64(t)
	case uint16:
		n = int64(t)
	case uint32:
		n = int64(t)
	case uint64:
		if t > 1<<62 {
			return 0, fmt.Errorf("%w: ttl %d out of range", ErrInvalidArgument, t)
		}
		n = int64(t)
	case string:
		return parseTTLString(t)
	default:
		return 0, fmt.Errorf("%w: unsupported ttl type %T", ErrInvalidArgument, v)
	}

	if !TTL(n).valid() {
		return 0, fmt.Errorf("%w: negative ttl %d", ErrInvalidArgument, n)
	}
	return TTL(n), nil
}

// MustParseTTL is like ParseTTL but panics on error.
func MustParseTTL(v any) TTL {
	ttl, err := ParseTTL(v)
	if err != nil {
		panic(err)
	}
	return ttl
}

var (
	relativePart = regexp.MustCompile(`([+]?\d+)\s*([a-z]+)`)
	relativeFill = regexp.MustCompile(`^(?:[\s,]|and)*$`)
)

// relativeUnits maps unit words to seconds.
var relativeUnits = map[string]int64{
	"s": 1, "sec": 1, "secs": 1, "second": 1, "seconds": 1,
	"min": 60, "mins": 60, "minute": 60, "minutes": 60,
	"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
	"d": 86400, "day": 86400, "days": 86400,
	"w": 604800, "week": 604800, "weeks": 604800,
	"fortnight": 1209600, "fortnights": 1209600,
	"month": 2592000, "months": 2592000,
	"y": 31536000, "year": 31536000, "years": 31536000,
}

func parseTTLString(s string) (TTL, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return 0, fmt.Errorf("%w: empty ttl", ErrInvalidArgument)
	case "never", "forever":
		return Never, nil
	case "immediate", "now":
		return Immediate, nil
	case "default":
		return DefaultTTL, nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ParseTTL(n)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return ParseTTL(d)
	}

	matches := relativePart.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: cannot parse ttl %q", ErrInvalidArgument, s)
	}

	var total int64
	last := 0
	for _, m := range matches {
		if !relativeFill.MatchString(s[last:m[0]]) {
			return 0, fmt.Errorf("%w: cannot parse ttl %q", ErrInvalidArgument, s)
		}
		last = m[1]

		n, err := strconv.ParseInt(strings.TrimPrefix(s[m[2]:m[3]], "+"), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: ttl %q: %w", ErrInvalidArgument, s, err)
		}
		unit, ok := relativeUnits[s[m[4]:m[5]]]
		if !ok {
			return 0, fmt.Errorf("%w: unknown ttl unit %q", ErrInvalidArgument, s[m[4]:m[5]])
		}
		if n > (math.MaxInt64-total)/unit {
			return 0, fmt.Errorf("%w: ttl %q out of range", ErrInvalidArgument, s)
		}
		total += n * unit
	}
	if !relativeFill.MatchString(s[last:]) {
		return 0, fmt.Errorf("%w: cannot parse ttl %q", ErrInvalidArgument, s)
	}
	return TTL(total), nil
}
