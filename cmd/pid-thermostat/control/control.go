package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/openmetrics"
	"github.com/yvesf/pid-ctrl-tool/pkg/pid"
	"github.com/yvesf/pid-ctrl-tool/pkg/ringbuf"
	"github.com/yvesf/pid-ctrl-tool/pkg/timemock"
	"github.com/yvesf/pid-ctrl-tool/pkg/timeprop"
)

var (
	metricTemperature = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "thermostat_temperature",
		Unit: "celsius",
		Help: "The smoothed temperature fed to the controller",
	})
	metricDuty = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "thermostat_duty",
		Help: "The duty computed by the controller, 0..1",
	})
	metricActuator = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "thermostat_actuator",
		Unit: "state",
		Help: "The actuator state written by the loop, 1=on",
	})
)

// Sensor delivers the process temperature.
type Sensor interface {
	Read() (float64, error)
}

// Switch is the binary actuator driven through the time-proportioning window.
type Switch interface {
	Set(on bool) error
}

type Settings struct {
	// Setpoint [celsius] is the temperature to hold.
	Setpoint float64
	// Kp, Ki, Kd are the controller gains in per-second form.
	Kp, Ki, Kd float64
	// SampleTime is the controller evaluation period.
	SampleTime time.Duration
	// Window is the time-proportioning period the 0..1 duty is spread over.
	Window time.Duration
	// MinToggle is the shortest actuator on/off phase worth switching for.
	MinToggle time.Duration
	// SmoothingFactor overrides the controller's input filter coefficient if >0.
	SmoothingFactor float64
	// OnMeasurement selects proportional-on-measurement instead of on-error.
	OnMeasurement bool
	// Cooling inverts the controller action for processes where the actuator
	// lowers the temperature.
	Cooling bool
	// ReadInterval is the sensor polling period, defaults to 500ms.
	ReadInterval time.Duration
}

// maxReadErrors is the number of consecutive sensor failures after which the
// loop fails safe and switches the actuator off.
const maxReadErrors = 3

// Run starts the control loop.
// The control loop is blocking and can be stopped by cancelling ctx.
func Run(ctx context.Context, settings Settings, sensor Sensor, actuator Switch) error {
	var input, output, setpoint float64
	setpoint = settings.Setpoint

	pOn := pid.OnError
	if settings.OnMeasurement {
		pOn = pid.OnMeasurement
	}
	direction := pid.Direct
	if settings.Cooling {
		direction = pid.Reverse
	}

	pidC := pid.NewWithMetrics(&input, &output, &setpoint, settings.Kp, settings.Ki, settings.Kd, pOn, direction)
	pidC.SetOutputLimits(0, 1)
	pidC.SetIntegratorLimits(0, 1)
	if settings.SampleTime > 0 {
		pidC.SetSampleTime(int(settings.SampleTime.Milliseconds()))
	}
	if settings.SmoothingFactor > 0 {
		pidC.SetSmoothingFactor(settings.SmoothingFactor)
	}

	window := &timeprop.Window{
		Period:    settings.Window,
		MinToggle: settings.MinToggle,
	}

	readInterval := settings.ReadInterval
	if readInterval <= 0 {
		readInterval = time.Millisecond * 500
	}

	buf := ringbuf.NewRingbuf(5)
	var (
		readErrors  int
		actuatorOn  bool
		actuatorSet bool
	)

controlLoop:
	for {
		select {
		case <-ctx.Done():
			break controlLoop
		case <-timemock.After(readInterval):
		}

		value, err := sensor.Read()
		if err != nil {
			readErrors++
			slog.Warn("sensor read failed", slog.Any("err", err), slog.Int("errors", readErrors))
			if readErrors >= maxReadErrors {
				// fail safe until the sensor recovers
				metricTemperature.With().Reset(openmetrics.GaugeOptions{})
				pidC.SetMode(pid.Manual)
				output = 0
				if !actuatorSet || actuatorOn {
					if err := actuator.Set(false); err != nil {
						return fmt.Errorf("failed to switch actuator off: %w", err)
					}
					actuatorOn, actuatorSet = false, true
					metricActuator.With().Set(0)
				}
			}
			continue
		}
		readErrors = 0

		buf.Add(value)
		input = buf.Mean()
		metricTemperature.With().Set(input)

		// first reading after start or sensor loss: enter automatic mode from
		// the current cell state, the transfer is bumpless
		if pidC.Mode() == pid.Manual {
			pidC.SetMode(pid.Automatic)
		}

		pidC.Step()
		metricDuty.With().Set(output)

		on := window.Update(output)
		if !actuatorSet || on != actuatorOn {
			if err := actuator.Set(on); err != nil {
				return fmt.Errorf("failed to switch actuator: %w", err)
			}
			actuatorOn, actuatorSet = on, true
			if on {
				metricActuator.With().Set(1)
			} else {
				metricActuator.With().Set(0)
			}
			slog.Debug("actuator switched",
				slog.Bool("on", on),
				slog.Float64("duty", output),
				slog.Float64("temperature", input))
		}
	}

	slog.Info("shutdown: switch actuator off")
	if err := actuator.Set(false); err != nil {
		return fmt.Errorf("failed to switch actuator off: %w", err)
	}
	return ctx.Err()
}
