package model

import "time"

// TimeInterval is a half-open [Start, End) range of absolute instants.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether Start is strictly before End.
func (i TimeInterval) Valid() bool {
	return i.Start.Before(i.End)
}

// Duration returns End - Start.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps checks if two intervals collide.
// Uses half-open interval [start, end) semantics: touching edges do not overlap.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	// [A, B) and [C, D) overlap if A < D && B > C
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// OverlapsAny reports whether the interval collides with any of the given ones.
func (i TimeInterval) OverlapsAny(others []TimeInterval) bool {
	for _, o := range others {
		if i.Overlaps(o) {
			return true
		}
	}
	return false
}
