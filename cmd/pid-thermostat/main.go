// pid-thermostat holds a temperature setpoint by driving a binary actuator
// (Shelly relay or GPIO-connected SSR) from a temperature sensor (Shelly H&T
// or a serial probe) through a PID controller and a time-proportioning
// window.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yvesf/pid-ctrl-tool/cmd"
	"github.com/yvesf/pid-ctrl-tool/cmd/pid-thermostat/control"
	"github.com/yvesf/pid-ctrl-tool/pkg/gpioheat"
	"github.com/yvesf/pid-ctrl-tool/pkg/serialtemp"
	"github.com/yvesf/pid-ctrl-tool/pkg/shelly"
)

var (
	flagShellyHT     = flag.String("shellyHT", "", "Address (host[:port]) of a Shelly H&T used as temperature sensor")
	flagSerialDevice = flag.String("serialDevice", "", "Serial device of a line-oriented temperature probe")
	flagBaudRate     = flag.Int("baudRate", 9600, "Baud rate of the serial probe")
	flagRelay        = flag.String("relay", "", "Address (host[:port]) of a Shelly relay used as actuator")
	flagRelayNumber  = flag.Int("relayNumber", 0, "Relay number on the Shelly device")
	flagGpioChip     = flag.String("gpioChip", "gpiochip0", "GPIO chip of the SSR actuator")
	flagGpioLine     = flag.Int("gpioLine", -1, "GPIO line of the SSR actuator, -1 to disable")
	flagSetpoint     = flag.Float64("setpoint", 21.0, "Temperature setpoint [celsius]")
	flagKp           = flag.Float64("kp", 0.5, "Proportional gain")
	flagKi           = flag.Float64("ki", 0.05, "Integral gain [1/s]")
	flagKd           = flag.Float64("kd", 0.0, "Derivative gain [s]")
	flagSample       = flag.Duration("sample", time.Second, "Controller sample time")
	flagWindow       = flag.Duration("window", time.Second*30, "Time-proportioning window")
	flagMinToggle    = flag.Duration("minToggle", time.Second*2, "Minimum actuator on/off phase")
	flagAlpha        = flag.Float64("alpha", 0, "Input filter smoothing factor (0,1), 0 keeps the default")
	flagOnM          = flag.Bool("pOnM", false, "Proportional on measurement instead of on error")
	flagCooling      = flag.Bool("cooling", false, "Reverse action for cooling processes")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	cmd.CommonInit(ctx)

	var sensor control.Sensor
	switch {
	case *flagShellyHT != "" && *flagSerialDevice != "":
		slog.Error("only one of -shellyHT and -serialDevice can be given")
		os.Exit(1)
	case *flagShellyHT != "":
		sensor = shelly.HT{Client: http.DefaultClient, Addr: *flagShellyHT}
	case *flagSerialDevice != "":
		probe, err := serialtemp.Open(*flagSerialDevice, *flagBaudRate)
		if err != nil {
			slog.Error("failed to open serial probe", slog.Any("err", err))
			os.Exit(1)
		}
		defer probe.Close()
		sensor = probe
	default:
		slog.Error("no sensor configured, need -shellyHT or -serialDevice")
		os.Exit(1)
	}

	var actuator control.Switch
	switch {
	case *flagRelay != "" && *flagGpioLine >= 0:
		slog.Error("only one of -relay and -gpioLine can be given")
		os.Exit(1)
	case *flagRelay != "":
		actuator = shelly.Relay{Client: http.DefaultClient, Addr: *flagRelay, Number: *flagRelayNumber}
	case *flagGpioLine >= 0:
		sw, err := gpioheat.Open(*flagGpioChip, *flagGpioLine)
		if err != nil {
			slog.Error("failed to open gpio actuator", slog.Any("err", err))
			os.Exit(1)
		}
		defer sw.Close()
		actuator = sw
	default:
		slog.Error("no actuator configured, need -relay or -gpioLine")
		os.Exit(1)
	}

	err := control.Run(ctx, control.Settings{
		Setpoint:        *flagSetpoint,
		Kp:              *flagKp,
		Ki:              *flagKi,
		Kd:              *flagKd,
		SampleTime:      *flagSample,
		Window:          *flagWindow,
		MinToggle:       *flagMinToggle,
		SmoothingFactor: *flagAlpha,
		OnMeasurement:   *flagOnM,
		Cooling:         *flagCooling,
	}, sensor, actuator)
	if err != nil && err != context.Canceled {
		slog.Error("control loop failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("pid-thermostat finished")
}
