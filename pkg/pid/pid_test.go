package pid_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yvesf/pid-ctrl-tool/pkg/pid"
	"github.com/yvesf/pid-ctrl-tool/pkg/sim"
)

type testClock struct {
	ms uint64
}

func (c *testClock) now() uint64 { return c.ms }

func (c *testClock) advance(millis int) { c.ms += uint64(millis) }

type loop struct {
	c        *pid.Controller
	clk      *testClock
	input    *float64
	output   *float64
	setpoint *float64
}

func newLoop(kp, ki, kd float64, pOn pid.Proportional) *loop {
	l := &loop{
		clk:      &testClock{ms: 1000},
		input:    new(float64),
		output:   new(float64),
		setpoint: new(float64),
	}
	l.c = pid.New(l.input, l.output, l.setpoint, kp, ki, kd, pOn, pid.Direct)
	l.c.SetClock(l.clk.now)
	return l
}

func TestStepGating(t *testing.T) {
	l := newLoop(1, 0, 0, pid.OnError)
	*l.setpoint = 50

	t.Run(`manual mode is a no-op`, func(t *testing.T) {
		require.False(t, l.c.Step())
		require.Equal(t, float64(0), *l.output)
	})

	l.c.SetMode(pid.Automatic)

	t.Run(`first step computes`, func(t *testing.T) {
		require.True(t, l.c.Step())
		require.Equal(t, float64(50), *l.output)
	})

	t.Run(`within sample period nothing happens`, func(t *testing.T) {
		l.clk.advance(50)
		require.False(t, l.c.Step())
		require.Equal(t, float64(50), *l.output)
	})

	t.Run(`sample period elapsed computes again`, func(t *testing.T) {
		l.clk.advance(50)
		require.True(t, l.c.Step())
	})

	t.Run(`missed intervals are not carried over`, func(t *testing.T) {
		l.clk.advance(350)
		require.True(t, l.c.Step())
		require.False(t, l.c.Step())
	})
}

func TestClockWraparound(t *testing.T) {
	l := newLoop(1, 0, 0, pid.OnError)
	*l.setpoint = 1
	l.c.SetMode(pid.Automatic)

	l.clk.ms = ^uint64(0) - 20
	require.True(t, l.c.Step())

	l.clk.advance(50) // wraps around zero
	require.False(t, l.c.Step())

	l.clk.advance(100)
	require.True(t, l.c.Step())
}

func TestSetTuningsRejectsNegativeGains(t *testing.T) {
	l := newLoop(1, 2, 3, pid.OnError)

	l.c.SetTunings(-1, 1, 1)
	require.Equal(t, float64(1), l.c.Kp())
	require.Equal(t, float64(2), l.c.Ki())
	require.Equal(t, float64(3), l.c.Kd())

	l.c.SetTuningsMode(1, -1, 1, pid.OnMeasurement)
	require.Equal(t, pid.OnError, l.c.Proportional())
	require.Equal(t, float64(2), l.c.Ki())
}

func TestOutputLimits(t *testing.T) {
	t.Run(`output is clamped`, func(t *testing.T) {
		l := newLoop(10, 0, 0, pid.OnError)
		l.c.SetOutputLimits(0, 10)
		l.c.SetMode(pid.Automatic)

		*l.setpoint = 100
		require.True(t, l.c.Step())
		require.Equal(t, float64(10), *l.output)

		*l.setpoint = -100
		l.clk.advance(100)
		require.True(t, l.c.Step())
		require.Equal(t, float64(0), *l.output)
	})

	t.Run(`inverted range is rejected`, func(t *testing.T) {
		l := newLoop(1, 0, 0, pid.OnError)
		l.c.SetOutputLimits(5, 5)
		l.c.SetOutputLimits(7, 3)
		min, max := l.c.OutputLimits()
		require.Equal(t, float64(0), min)
		require.Equal(t, float64(255), max)
	})

	t.Run(`new limits re-clamp live state`, func(t *testing.T) {
		l := newLoop(1, 0, 0, pid.OnError)
		*l.output = 200
		l.c.SetMode(pid.Automatic)
		require.Equal(t, float64(200), l.c.ITerm())

		l.c.SetOutputLimits(0, 100)
		require.Equal(t, float64(100), *l.output)
		require.Equal(t, float64(100), l.c.ITerm())
	})

	t.Run(`inverted integrator range is rejected`, func(t *testing.T) {
		l := newLoop(1, 0, 0, pid.OnError)
		l.c.SetIntegratorLimits(3, 3)
		min, max := l.c.IntegratorLimits()
		require.Equal(t, float64(-100), min)
		require.Equal(t, float64(100), max)
	})
}

func TestAntiWindup(t *testing.T) {
	l := newLoop(1, 1, 0, pid.OnError)
	l.c.SetOutputLimits(-10, 10)
	l.c.SetIntegratorLimits(-2, 2)
	l.c.SetMode(pid.Automatic)

	// drive hard into saturation for several samples
	*l.setpoint = 100
	for i := 0; i < 5; i++ {
		require.True(t, l.c.Step())
		require.Equal(t, float64(10), *l.output)
		require.LessOrEqual(t, l.c.ITerm(), float64(2))
		l.clk.advance(100)
	}

	// releasing the error leaves saturation on the very next step
	*l.setpoint = 0
	require.True(t, l.c.Step())
	require.InDelta(t, 2, *l.output, 1e-9)
}

func TestBumplessTransfer(t *testing.T) {
	l := newLoop(2, 1, 0.5, pid.OnError)
	l.c.SetOutputLimits(0, 10)

	// manual operation left the output at 5
	*l.input = 20
	*l.setpoint = 20
	*l.output = 5

	l.c.SetMode(pid.Automatic)
	require.True(t, l.c.Step())
	require.InDelta(t, 5, *l.output, 1e-9)
}

func TestDirectionFlipWhileAutomatic(t *testing.T) {
	l := newLoop(1, 0, 0, pid.OnError)
	l.c.SetOutputLimits(-10, 10)
	l.c.SetMode(pid.Automatic)

	*l.setpoint = 4
	require.True(t, l.c.Step())
	require.Equal(t, float64(4), *l.output)

	l.c.SetControllerDirection(pid.Reverse)
	require.Equal(t, pid.Reverse, l.c.Direction())

	l.clk.advance(100)
	require.True(t, l.c.Step())
	require.Equal(t, float64(-4), *l.output)

	// display gains keep their user-entered sign
	require.Equal(t, float64(1), l.c.Kp())
}

func TestKiZeroResetsIntegrator(t *testing.T) {
	l := newLoop(0, 1, 0, pid.OnError)
	l.c.SetOutputLimits(-10, 10)
	l.c.SetMode(pid.Automatic)

	*l.setpoint = 5
	require.True(t, l.c.Step())
	require.InDelta(t, 0.5, l.c.ITerm(), 1e-9)

	l.c.SetTunings(0, 0, 0)
	require.Equal(t, float64(0), l.c.ITerm())
}

func TestSampleTimeRescale(t *testing.T) {
	t.Run(`integral gain follows the period`, func(t *testing.T) {
		l := newLoop(0, 2, 0, pid.OnError)
		l.c.SetOutputLimits(-1000, 1000)
		l.c.SetIntegratorLimits(-1000, 1000)
		l.c.SetMode(pid.Automatic)

		*l.setpoint = 1
		require.True(t, l.c.Step())
		require.InDelta(t, 0.2, l.c.ITerm(), 1e-9) // 2 * 0.1s

		l.c.SetSampleTime(200)
		require.Equal(t, 200, l.c.SampleTime())
		require.Equal(t, float64(2), l.c.Ki())

		l.clk.advance(200)
		require.True(t, l.c.Step())
		require.InDelta(t, 0.6, l.c.ITerm(), 1e-9) // += 2 * 0.2s
	})

	t.Run(`derivative gain follows the period inversely`, func(t *testing.T) {
		l := newLoop(0, 0, 4, pid.OnMeasurement)
		l.c.SetOutputLimits(-1000, 1000)
		l.c.SetMode(pid.Automatic)

		l.c.SetSampleTime(200)
		require.Equal(t, float64(4), l.c.Kd())

		*l.input = 1
		l.clk.advance(200)
		require.True(t, l.c.Step())
		require.InDelta(t, -20, l.c.DTerm(), 1e-9) // -(4/0.2s) * 1
	})

	t.Run(`non-positive period is rejected`, func(t *testing.T) {
		l := newLoop(1, 1, 1, pid.OnError)
		l.c.SetSampleTime(0)
		l.c.SetSampleTime(-50)
		require.Equal(t, 100, l.c.SampleTime())
	})
}

func TestDerivativeOnFilteredInput(t *testing.T) {
	l := newLoop(0, 0, 1, pid.OnError)
	l.c.SetOutputLimits(-1000, 1000)
	l.c.SetSmoothingFactor(0.5)
	l.c.SetMode(pid.Automatic)

	// a setpoint jump alone must not kick the derivative term
	*l.setpoint = 100
	require.True(t, l.c.Step())
	require.Equal(t, float64(0), l.c.DTerm())

	// an input jump is smoothed by the filter before derivation
	*l.input = 8
	l.clk.advance(100)
	require.True(t, l.c.Step())
	require.InDelta(t, 40, l.c.DeltaInput(), 1e-9) // (0.5*8 - 0) / 0.1s
	require.InDelta(t, -400, l.c.DTerm(), 1e-9)
}

func TestProportionalOnMeasurement(t *testing.T) {
	l := newLoop(2, 0, 0, pid.OnMeasurement)
	l.c.SetOutputLimits(-100, 100)
	l.c.SetMode(pid.Automatic)

	require.True(t, l.c.Step())
	require.Equal(t, float64(0), *l.output)

	// kp acts on the integrator sum via the raw input delta, never on the
	// output directly; the reported P contribution stays zero.
	*l.input = 3
	l.clk.advance(100)
	require.True(t, l.c.Step())
	require.Equal(t, float64(0), l.c.PTerm())
	require.InDelta(t, -6, l.c.ITerm(), 1e-9)
	require.InDelta(t, -6, *l.output, 1e-9)
}

func TestClosedLoopConvergence(t *testing.T) {
	l := newLoop(0.5, 0.2, 0, pid.OnError)
	l.c.SetOutputLimits(0, 1)

	plant := sim.NewPlant(20, 30, 1)
	*l.input = plant.Read()
	*l.setpoint = 40
	l.c.SetMode(pid.Automatic)

	const dt = time.Millisecond * 100
	for i := 0; i < 3000; i++ {
		*l.input = plant.Temperature()
		require.True(t, l.c.Step())
		plant.Step(*l.output, dt)
		l.clk.advance(100)
	}

	require.InDelta(t, 40, plant.Temperature(), 0.5)
}
