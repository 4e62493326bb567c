// timeprop converts a continuous controller output into on/off switching by
// time-proportioning: within a fixed window the actuator is on for
// duty*Period and off for the rest. Suitable for relays and SSRs that must
// not switch faster than a minimum interval.
package timeprop

import (
	"time"

	"github.com/yvesf/pid-ctrl-tool/pkg/timemock"
)

type Window struct {
	// Period is the length of one full proportioning window.
	Period time.Duration
	// MinToggle is the shortest on- or off-phase worth switching for. Duties
	// that would produce a shorter phase are rounded to fully off/on.
	MinToggle time.Duration

	windowStart time.Time
}

// Update returns the desired actuator state at the current time for the given
// duty in [0,1]. Duty changes take effect within the running window.
func (w *Window) Update(duty float64) bool {
	now := timemock.Now()
	if w.windowStart.IsZero() || now.Sub(w.windowStart) >= w.Period {
		w.windowStart = now
	}

	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}

	onTime := time.Duration(duty * float64(w.Period))
	if onTime < w.MinToggle {
		return false
	}
	if w.Period-onTime < w.MinToggle {
		return true
	}
	return now.Sub(w.windowStart) < onTime
}
