// pid implements a discrete-time PID controller with time-gated stepping,
// proportional-on-error/proportional-on-measurement modes, an exponential
// input filter against derivative kick and dual-stage integrator clamping
// against windup.
//
// The controller is linked at construction to three caller-owned cells:
// Input and Setpoint are read, Output is read and written. The caller paces
// Step, which decides by itself whether enough time passed for a new
// computation. All state is single-owner, there is no internal locking.
package pid

import (
	"github.com/yvesf/pid-ctrl-tool/pkg/timemock"
)

// Mode switches the controller between manual (Step is a no-op) and
// automatic operation.
type Mode int

const (
	Manual Mode = iota
	Automatic
)

func (m Mode) String() string {
	if m == Automatic {
		return "automatic"
	}
	return "manual"
}

// Direction is the action of the controller: Direct means a positive error
// raises the output, Reverse the opposite (e.g. cooling).
type Direction int

const (
	Direct Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "direct"
}

// Proportional selects where the proportional term acts.
type Proportional int

const (
	// OnError computes the proportional term from the error signal.
	OnError Proportional = iota
	// OnMeasurement folds the proportional contribution into the
	// integrator as a function of the measured input's rate of change.
	OnMeasurement
)

func (p Proportional) String() string {
	if p == OnMeasurement {
		return "on-measurement"
	}
	return "on-error"
}

// Default configuration applied by New until overridden by the setters.
const (
	defaultSampleTimeMillis = 100
	defaultOutMin           = 0
	defaultOutMax           = 255
	defaultIntegratorMin    = -100
	defaultIntegratorMax    = 100
	defaultFilterAlpha      = 0.9
)

// saturationBand is the margin below/above the output limits within which the
// integrator is considered saturated and stops accumulating (proportional
// on-error mode only).
const saturationBand = 0.01

// Controller is a single PID loop. Not safe for concurrent use, the caller
// serializes Step and the setters.
type Controller struct {
	input    *float64
	output   *float64
	setpoint *float64

	// display-form gains as passed by the user, kept separate from the
	// per-sample internal gains which are re-derived on direction and
	// sample-time changes.
	dispKp, dispKi, dispKd float64
	kp, ki, kd             float64

	pOn       Proportional
	direction Direction
	auto      bool

	integrator               float64
	lastInput                float64
	lastFilteredInput        float64
	lastFilteredDifferential float64
	lastError                float64
	lastPPart                float64
	lastDPart                float64
	lastTime                 uint64

	filterAlpha float64

	sampleTime                   uint64 // milliseconds
	outMin, outMax               float64
	integratorMin, integratorMax float64

	clock func() uint64
}

// New links a controller to the given input, output and setpoint cells and
// applies the initial tunings. The controller starts in manual mode; switch
// to Automatic with SetMode. Limits, sample time and smoothing factor take
// defaults until overridden.
func New(input, output, setpoint *float64, kp, ki, kd float64, pOn Proportional, direction Direction) *Controller {
	c := &Controller{
		input:       input,
		output:      output,
		setpoint:    setpoint,
		sampleTime:  defaultSampleTimeMillis,
		filterAlpha: defaultFilterAlpha,
		clock:       timemock.Millis,
	}
	c.SetOutputLimits(defaultOutMin, defaultOutMax)
	c.SetIntegratorLimits(defaultIntegratorMin, defaultIntegratorMax)
	c.SetControllerDirection(direction)
	c.SetTuningsMode(kp, ki, kd, pOn)
	c.lastTime = c.clock() - c.sampleTime
	return c
}

// Step runs one controller evaluation if due. It returns true when a new
// output was computed and written to the output cell, false when the
// controller is in manual mode or the sample period has not elapsed yet.
// Missed intervals are not carried over; at most one computation happens per
// call regardless of how much time passed.
func (c *Controller) Step() bool {
	if !c.auto {
		return false
	}
	now := c.clock()
	if now-c.lastTime < c.sampleTime {
		return false
	}

	input := *c.input
	err := *c.setpoint - input

	// Freeze the integrator while the output sits at either limit, otherwise
	// it keeps growing from e.g. the P part alone while saturated.
	if c.pOn != OnError || (*c.output < c.outMax-saturationBand && *c.output > c.outMin+saturationBand) {
		c.integrator += c.ki * err
	}

	oldFiltered := c.lastFilteredInput
	c.lastFilteredInput = c.filterAlpha*c.lastFilteredInput + (1-c.filterAlpha)*input

	// Derive on input instead of error: equal for constant setpoint, but a
	// setpoint change no longer kicks the derivative term.
	var dInput float64
	if c.pOn == OnError {
		dInput = (c.lastFilteredInput - oldFiltered) / c.sampleSeconds()
	} else {
		// on-measurement needs the raw sensor noise to get moving, skip the filter
		dInput = input - c.lastInput
	}

	// In on-measurement mode kp acts on the integrator sum, not the output.
	if c.pOn == OnMeasurement {
		c.integrator -= c.kp * dInput
	}

	c.integrator = clamp(c.integrator, c.outMin, c.outMax)
	if c.pOn == OnError {
		c.integrator = clamp(c.integrator, c.integratorMin, c.integratorMax)
	}

	var out float64
	if c.pOn == OnError {
		out = c.kp * err
	}
	out += c.integrator - c.kd*dInput
	out = clamp(out, c.outMin, c.outMax)
	*c.output = out

	c.lastFilteredDifferential = dInput
	c.lastInput = input
	if c.pOn == OnError {
		c.lastPPart = c.kp * err
	} else {
		c.lastPPart = 0
	}
	c.lastDPart = -c.kd * dInput
	c.lastError = err
	c.lastTime = now
	return true
}

// SetTunings changes the gains while keeping the current proportional mode.
func (c *Controller) SetTunings(kp, ki, kd float64) {
	c.SetTuningsMode(kp, ki, kd, c.pOn)
}

// SetTuningsMode changes the gains and the proportional mode. Gains are given
// in per-second form and scaled internally by the sample time. A negative
// gain rejects the whole call, previous tunings stay in effect. Ki of zero
// additionally resets the integrator so no stale accumulation is left behind.
func (c *Controller) SetTuningsMode(kp, ki, kd float64, pOn Proportional) {
	if kp < 0 || ki < 0 || kd < 0 {
		return
	}

	c.pOn = pOn
	c.dispKp, c.dispKi, c.dispKd = kp, ki, kd

	s := c.sampleSeconds()
	c.kp = kp
	c.ki = ki * s
	c.kd = kd / s

	if c.direction == Reverse {
		c.kp = -c.kp
		c.ki = -c.ki
		c.kd = -c.kd
	}

	if ki == 0 {
		c.integrator = 0
	}
}

// SetSampleTime changes the evaluation period in milliseconds. The internal
// gains are rescaled in place so the effective continuous-time tuning is
// preserved. Non-positive periods are rejected.
func (c *Controller) SetSampleTime(periodMillis int) {
	if periodMillis <= 0 {
		return
	}
	ratio := float64(periodMillis) / float64(c.sampleTime)
	c.ki *= ratio
	c.kd /= ratio
	c.sampleTime = uint64(periodMillis)
}

// SetOutputLimits bounds the output cell and, as worst-case anti-windup, the
// integrator. Rejected unless min < max. When the controller is automatic the
// live output and integrator are re-clamped immediately.
func (c *Controller) SetOutputLimits(min, max float64) {
	if min >= max {
		return
	}
	c.outMin = min
	c.outMax = max

	if c.auto {
		*c.output = clamp(*c.output, c.outMin, c.outMax)
		c.integrator = clamp(c.integrator, c.outMin, c.outMax)
	}
}

// SetIntegratorLimits bounds the integrator tighter than the output limits.
// Only applied in proportional-on-error mode. Rejected unless min < max.
func (c *Controller) SetIntegratorLimits(min, max float64) {
	if min >= max {
		return
	}
	c.integratorMin = min
	c.integratorMax = max

	if c.auto {
		c.integrator = clamp(c.integrator, c.integratorMin, c.integratorMax)
	}
}

// SetMode switches between Manual and Automatic. The manual to automatic
// transition re-initializes the controller from the current cell values for a
// bumpless transfer.
func (c *Controller) SetMode(mode Mode) {
	newAuto := mode == Automatic
	if newAuto && !c.auto {
		c.initialize()
	}
	c.auto = newAuto
}

// initialize seeds the integrator from the output cell and the input memory
// from the input cell so the first automatic step continues from the manual
// output without a jump.
func (c *Controller) initialize() {
	c.integrator = clamp(*c.output, c.outMin, c.outMax)
	c.lastInput = *c.input
	c.lastFilteredInput = *c.input
}

// SetControllerDirection sets Direct or Reverse action. While automatic, a
// direction change negates the internal gains in place, without waiting for
// the next tuning call.
func (c *Controller) SetControllerDirection(direction Direction) {
	if c.auto && direction != c.direction {
		c.kp = -c.kp
		c.ki = -c.ki
		c.kd = -c.kd
	}
	c.direction = direction
}

// SetSmoothingFactor sets the input filter coefficient. The higher the value
// the stronger the filtering (and the slower the derivative reacts). Expected
// in (0,1), not validated.
func (c *Controller) SetSmoothingFactor(alpha float64) {
	c.filterAlpha = alpha
}

// SetClock replaces the monotonic millisecond counter Step gates on. Elapsed
// time is computed by unsigned modular subtraction, so counter wraparound is
// tolerated. Nil is rejected.
func (c *Controller) SetClock(clock func() uint64) {
	if clock == nil {
		return
	}
	c.clock = clock
}

// Kp returns the proportional gain as set by the user.
func (c *Controller) Kp() float64 { return c.dispKp }

// Ki returns the integral gain (per second) as set by the user.
func (c *Controller) Ki() float64 { return c.dispKi }

// Kd returns the derivative gain (per second) as set by the user.
func (c *Controller) Kd() float64 { return c.dispKd }

func (c *Controller) Mode() Mode {
	if c.auto {
		return Automatic
	}
	return Manual
}

func (c *Controller) Direction() Direction { return c.direction }

func (c *Controller) Proportional() Proportional { return c.pOn }

// SampleTime returns the evaluation period in milliseconds.
func (c *Controller) SampleTime() int { return int(c.sampleTime) }

// OutputLimits returns the currently configured output range.
func (c *Controller) OutputLimits() (min, max float64) { return c.outMin, c.outMax }

// IntegratorLimits returns the currently configured integrator range.
func (c *Controller) IntegratorLimits() (min, max float64) { return c.integratorMin, c.integratorMax }

// DeltaInput returns the input differential of the last evaluation, the
// signal the derivative term acted on.
func (c *Controller) DeltaInput() float64 { return c.lastFilteredDifferential }

// LastError returns the error (setpoint minus input) of the last evaluation.
func (c *Controller) LastError() float64 { return c.lastError }

// PTerm returns the proportional contribution of the last evaluation. Zero in
// on-measurement mode where kp acts on the integrator instead.
func (c *Controller) PTerm() float64 { return c.lastPPart }

// ITerm returns the current integrator sum.
func (c *Controller) ITerm() float64 { return c.integrator }

// DTerm returns the derivative contribution of the last evaluation.
func (c *Controller) DTerm() float64 { return c.lastDPart }

func (c *Controller) sampleSeconds() float64 {
	return float64(c.sampleTime) / 1000
}

func clamp(v, min, max float64) float64 {
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}
