package auctioneer

import (
	"math"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Phase is where a listing's window stands relative to a point in time.
type Phase int

const (
	PhasePending Phase = iota
	PhaseActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	default:
		return "ended"
	}
}

// PhaseAt evaluates the listing window at now. The window is [start, end).
func PhaseAt(l domain.ListingConfig, now int64) Phase {
	switch {
	case now < l.StartTime:
		return PhasePending
	case now < l.EndTime:
		return PhaseActive
	default:
		return PhaseEnded
	}
}

// extendedEnd returns the end time after a qualifying bid lands at now and
// whether the anti-snipe extension fired. It compares against the current,
// possibly already extended, end time and may fire once per bid. The result
// saturates at math.MaxInt64; it never wraps below the current end.
func extendedEnd(l domain.ListingConfig, now int64) (int64, bool) {
	if !l.HasExtension() || now >= l.EndTime {
		return l.EndTime, false
	}
	// now < EndTime, so the unsigned difference is exact.
	if uint64(l.EndTime)-uint64(now) > uint64(*l.TimeExtPeriod) {
		return l.EndTime, false
	}
	delta := int64(*l.TimeExtDelta)
	if l.EndTime > math.MaxInt64-delta {
		if l.EndTime == math.MaxInt64 {
			return l.EndTime, false
		}
		return math.MaxInt64, true
	}
	return l.EndTime + delta, true
}
