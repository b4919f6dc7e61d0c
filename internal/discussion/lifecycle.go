package discussion

import "time"

// Policy thresholds.
const (
	// AgeThreshold is how long a discussion stays under "Current discussions".
	AgeThreshold = 8 * 24 * time.Hour
	// ArchiveDelay is how long a closed discussion stays listed.
	ArchiveDelay = 18 * time.Hour
)

// State is where a discussion is in its lifecycle.
type State int

const (
	StateOpen State = iota
	StateAging
	StateClosedPending
	StateToArchive
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAging:
		return "aging"
	case StateClosedPending:
		return "closed_pending"
	case StateToArchive:
		return "to_archive"
	}
	return "unknown"
}

// IsOld reports whether a discussion started at start has run its course.
func IsOld(start, now time.Time) bool {
	return now.Sub(start) >= AgeThreshold
}

// ShouldArchive reports whether a discussion closed at close can be archived.
func ShouldArchive(close, now time.Time) bool {
	return now.Sub(close) >= ArchiveDelay
}

// Classify decides the lifecycle state of d at now.
func Classify(d *Discussion, now time.Time) State {
	if !d.IsClosed() {
		if IsOld(d.Start, now) {
			return StateAging
		}
		return StateOpen
	}
	if ShouldArchive(d.Close, now) {
		return StateToArchive
	}
	return StateClosedPending
}
