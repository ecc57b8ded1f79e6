package volume

import (
	"math"
	"time"
)

// IntervalFromMillis converts a millisecond count to a Duration. Counts too
// large to represent saturate instead of wrapping, so Validate rejects them.
func IntervalFromMillis(ms int64) time.Duration {
	const limit = math.MaxInt64 / int64(time.Millisecond)
	switch {
	case ms > limit:
		return math.MaxInt64
	case ms < -limit:
		return math.MinInt64
	}
	return time.Duration(ms) * time.Millisecond
}

// TryAcquire reports whether an update at now is allowed given the time of
// the previous accepted update. A zero lastUpdate means no update has been
// accepted yet. The caller records now as the new lastUpdate on success.
func TryAcquire(now, lastUpdate time.Time, minInterval time.Duration) bool {
	if lastUpdate.IsZero() {
		return true
	}
	return now.Sub(lastUpdate) >= minInterval
}
