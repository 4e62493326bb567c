package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yvesf/pid-ctrl-tool/pkg/sim"
	"github.com/yvesf/pid-ctrl-tool/pkg/timemock"
)

type MockSensor struct {
	ReadFn func() (float64, error)
}

func (m *MockSensor) Read() (float64, error) { return m.ReadFn() }

var _ Sensor = &MockSensor{}

type MockSwitch struct {
	SetFn func(on bool) error
}

func (m *MockSwitch) Set(on bool) error { return m.SetFn(on) }

var _ Switch = &MockSwitch{}

func TestRun__exitOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var offCalls int
	sw := &MockSwitch{SetFn: func(on bool) error {
		require.False(t, on)
		offCalls++
		return nil
	}}

	err := Run(ctx, Settings{Window: time.Second * 10, MinToggle: time.Second}, nil, sw)
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, offCalls)
}

func TestRun__failsSafeOnSensorLoss(t *testing.T) {
	defer timemock.TimeWarp(100)()

	sensorErr := errors.New("probe unplugged")
	reads := 0
	sensor := &MockSensor{ReadFn: func() (float64, error) {
		reads++
		return 0, sensorErr
	}}

	var states []bool
	sw := &MockSwitch{SetFn: func(on bool) error {
		states = append(states, on)
		return nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*200)
	defer cancel()

	err := Run(ctx, Settings{
		Window:       time.Second * 10,
		MinToggle:    time.Second,
		ReadInterval: time.Millisecond * 500,
	}, sensor, sw)
	require.Equal(t, context.DeadlineExceeded, err)

	require.GreaterOrEqual(t, reads, maxReadErrors)
	require.NotEmpty(t, states)
	for _, on := range states {
		require.False(t, on)
	}
}

// TestRun__regulatesTowardsSetpoint closes the loop over a simulated plant in
// warped time. Testing the timing-dependent loop is an experimental best
// effort approach, the assertions are deliberately loose.
func TestRun__regulatesTowardsSetpoint(t *testing.T) {
	defer timemock.TimeWarp(50)()

	plant := sim.NewPlant(20, 30, 1)
	lastStep := timemock.Now()

	var heaterOn, sawOn, sawOff bool
	sensor := &MockSensor{ReadFn: func() (float64, error) {
		now := timemock.Now()
		drive := 0.0
		if heaterOn {
			drive = 1
		}
		plant.Step(drive, now.Sub(lastStep))
		lastStep = now
		return plant.Read(), nil
	}}
	sw := &MockSwitch{SetFn: func(on bool) error {
		heaterOn = on
		if on {
			sawOn = true
		} else {
			sawOff = true
		}
		return nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	err := Run(ctx, Settings{
		Setpoint:     30,
		Kp:           0.5,
		Ki:           0.2,
		SampleTime:   time.Second,
		Window:       time.Second * 4,
		MinToggle:    time.Millisecond * 500,
		ReadInterval: time.Millisecond * 500,
	}, sensor, sw)
	require.Equal(t, context.DeadlineExceeded, err)

	require.True(t, sawOn)
	require.True(t, sawOff)
	require.Greater(t, plant.Temperature(), 25.0)
	require.Less(t, plant.Temperature(), 35.0)
}
