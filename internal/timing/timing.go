// Package timing computes the synchronization bound of a clip group and the
// trailing window kept from its composite.
package timing

import (
	"errors"
	"time"
)

// DefaultKeep is the length of the trailing window kept from each composite.
const DefaultKeep = 30 * time.Second

// ErrNoDurations is returned when a group has no probed clip left.
var ErrNoDurations = errors.New("no clip durations to synchronize")

// CommonDuration returns the shortest of durations. Every angle is trimmed to
// it so the overlays stay aligned at the end of the composite.
func CommonDuration(durations ...time.Duration) (time.Duration, error) {
	if len(durations) == 0 {
		return 0, ErrNoDurations
	}
	common := durations[0]
	for _, d := range durations[1:] {
		if d < common {
			common = d
		}
	}
	return common, nil
}

// Window is a [Start, Start+Length) slice of the composite.
type Window struct {
	Start  time.Duration
	Length time.Duration
}

// End returns Start+Length.
func (w Window) End() time.Duration {
	return w.Start + w.Length
}

// TrailingWindow keeps the last keep of a composite that is common long.
// Shorter composites are kept whole.
func TrailingWindow(common, keep time.Duration) Window {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if common < 0 {
		common = 0
	}
	return Window{
		Start:  max(0, common-keep),
		Length: min(keep, common),
	}
}
