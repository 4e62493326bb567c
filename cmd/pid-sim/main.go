// pid-sim runs the controller closed-loop against the simulated thermal
// plant and prints per-step telemetry as CSV. Useful to try tunings without
// hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/yvesf/pid-ctrl-tool/cmd"
	"github.com/yvesf/pid-ctrl-tool/pkg/pid"
	"github.com/yvesf/pid-ctrl-tool/pkg/sim"
)

var (
	flagSetpoint = flag.Float64("setpoint", 40, "Temperature setpoint [celsius]")
	flagKp       = flag.Float64("kp", 0.5, "Proportional gain")
	flagKi       = flag.Float64("ki", 0.2, "Integral gain [1/s]")
	flagKd       = flag.Float64("kd", 0.0, "Derivative gain [s]")
	flagSample   = flag.Duration("sample", time.Millisecond*100, "Controller sample time")
	flagRuntime  = flag.Duration("runtime", time.Minute*5, "Simulated time to run")
	flagAmbient  = flag.Float64("ambient", 20, "Plant ambient temperature [celsius]")
	flagTau      = flag.Float64("tau", 30, "Plant time constant [s]")
	flagGain     = flag.Float64("gain", 1, "Plant heating rate at full drive [celsius/s]")
	flagNoise    = flag.Float64("noise", 0, "Sensor noise standard deviation [celsius]")
	flagAlpha    = flag.Float64("alpha", 0, "Input filter smoothing factor (0,1), 0 keeps the default")
	flagOnM      = flag.Bool("pOnM", false, "Proportional on measurement instead of on error")
)

func main() {
	cmd.CommonInit(context.Background())

	plant := sim.NewPlant(*flagAmbient, *flagTau, *flagGain)
	plant.Noise = *flagNoise

	var input, output, setpoint float64
	setpoint = *flagSetpoint
	input = plant.Read()

	pOn := pid.OnError
	if *flagOnM {
		pOn = pid.OnMeasurement
	}

	// the simulation drives its own clock, one tick per sample
	var now uint64
	pidC := pid.New(&input, &output, &setpoint, *flagKp, *flagKi, *flagKd, pOn, pid.Direct)
	pidC.SetClock(func() uint64 { return now })
	pidC.SetOutputLimits(0, 1)
	pidC.SetIntegratorLimits(0, 1)
	pidC.SetSampleTime(int(flagSample.Milliseconds()))
	if *flagAlpha > 0 {
		pidC.SetSmoothingFactor(*flagAlpha)
	}
	pidC.SetMode(pid.Automatic)

	steps := int(*flagRuntime / *flagSample)
	slog.Info("starting simulation",
		slog.Int("steps", steps),
		slog.Float64("setpoint", setpoint),
		slog.Float64("kp", pidC.Kp()), slog.Float64("ki", pidC.Ki()), slog.Float64("kd", pidC.Kd()))

	fmt.Println("time_s,temperature,duty,p,i,d")
	for i := 0; i < steps; i++ {
		input = plant.Read()
		pidC.Step()
		plant.Step(output, *flagSample)
		now += uint64(flagSample.Milliseconds())

		fmt.Printf("%.2f,%.4f,%.4f,%.4f,%.4f,%.4f\n",
			(time.Duration(i) * *flagSample).Seconds(), plant.Temperature(), output,
			pidC.PTerm(), pidC.ITerm(), pidC.DTerm())
	}

	slog.Info("simulation finished",
		slog.Float64("temperature", plant.Temperature()),
		slog.Float64("error", setpoint-plant.Temperature()))
}
