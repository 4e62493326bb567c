package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/yvesf/pid-ctrl-tool/pkg/pid"
)

type c struct {
	command string
	args    int // -1 for variable
	fun     func(s *session, args ...string) error
	help    string
}

var commands []c

func init() {
	commands = []c{{
		command: "help",
		args:    0,
		help:    "help display this help",
		fun:     func(*session, ...string) error { help(); return nil },
	},
		{
			command: "show",
			args:    0,
			help:    "show print controller and plant state",
			fun: func(s *session, args ...string) error {
				outMin, outMax := s.pid.OutputLimits()
				intMin, intMax := s.pid.IntegratorLimits()
				fmt.Printf("tunings       kp=%v ki=%v kd=%v (%v)\n", s.pid.Kp(), s.pid.Ki(), s.pid.Kd(), s.pid.Proportional())
				fmt.Printf("mode          %v, %v\n", s.pid.Mode(), s.pid.Direction())
				fmt.Printf("sample time   %vms\n", s.pid.SampleTime())
				fmt.Printf("limits        output [%v,%v] integrator [%v,%v]\n", outMin, outMax, intMin, intMax)
				fmt.Printf("setpoint      %.3f\n", s.setpoint)
				fmt.Printf("temperature   %.3f (input %.3f)\n", s.plant.Temperature(), s.input)
				fmt.Printf("duty          %.4f\n", s.output)
				fmt.Printf("terms         p=%.4f i=%.4f d=%.4f error=%.4f\n",
					s.pid.PTerm(), s.pid.ITerm(), s.pid.DTerm(), s.pid.LastError())
				return nil
			},
		},
		{
			command: "tune",
			args:    3,
			help:    "tune <kp> <ki> <kd> set controller gains",
			fun: func(s *session, args ...string) error {
				kp, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("failed to parse kp: %w", err)
				}
				ki, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("failed to parse ki: %w", err)
				}
				kd, err := strconv.ParseFloat(args[2], 64)
				if err != nil {
					return fmt.Errorf("failed to parse kd: %w", err)
				}
				s.pid.SetTunings(kp, ki, kd)
				if s.pid.Kp() != kp || s.pid.Ki() != ki || s.pid.Kd() != kd {
					return fmt.Errorf("tunings rejected, gains must be non-negative")
				}
				return nil
			},
		},
		{
			command: "pOn",
			args:    1,
			help:    "pOn error|measurement select proportional term placement",
			fun: func(s *session, args ...string) error {
				switch args[0] {
				case "error":
					s.pid.SetTuningsMode(s.pid.Kp(), s.pid.Ki(), s.pid.Kd(), pid.OnError)
				case "measurement":
					s.pid.SetTuningsMode(s.pid.Kp(), s.pid.Ki(), s.pid.Kd(), pid.OnMeasurement)
				default:
					return fmt.Errorf("expected error or measurement")
				}
				return nil
			},
		},
		{
			command: "set",
			args:    1,
			help:    "set <temperature> change the setpoint",
			fun: func(s *session, args ...string) error {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("failed to parse setpoint: %w", err)
				}
				s.setpoint = v
				return nil
			},
		},
		{
			command: "mode",
			args:    1,
			help:    "mode auto|manual switch controller mode",
			fun: func(s *session, args ...string) error {
				switch args[0] {
				case "auto":
					s.pid.SetMode(pid.Automatic)
				case "manual":
					s.pid.SetMode(pid.Manual)
				default:
					return fmt.Errorf("expected auto or manual")
				}
				return nil
			},
		},
		{
			command: "dir",
			args:    1,
			help:    "dir direct|reverse switch controller action",
			fun: func(s *session, args ...string) error {
				switch args[0] {
				case "direct":
					s.pid.SetControllerDirection(pid.Direct)
				case "reverse":
					s.pid.SetControllerDirection(pid.Reverse)
				default:
					return fmt.Errorf("expected direct or reverse")
				}
				return nil
			},
		},
		{
			command: "limits",
			args:    2,
			help:    "limits <min> <max> set output limits",
			fun: func(s *session, args ...string) error {
				min, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("failed to parse min: %w", err)
				}
				max, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("failed to parse max: %w", err)
				}
				s.pid.SetOutputLimits(min, max)
				return nil
			},
		},
		{
			command: "ilimits",
			args:    2,
			help:    "ilimits <min> <max> set integrator limits",
			fun: func(s *session, args ...string) error {
				min, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("failed to parse min: %w", err)
				}
				max, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("failed to parse max: %w", err)
				}
				s.pid.SetIntegratorLimits(min, max)
				return nil
			},
		},
		{
			command: "alpha",
			args:    1,
			help:    "alpha <value> set input filter smoothing factor (0,1)",
			fun: func(s *session, args ...string) error {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("failed to parse alpha: %w", err)
				}
				s.pid.SetSmoothingFactor(v)
				return nil
			},
		},
		{
			command: "sample",
			args:    1,
			help:    "sample <milliseconds> set controller sample time",
			fun: func(s *session, args ...string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("failed to parse sample time: %w", err)
				}
				s.pid.SetSampleTime(v)
				return nil
			},
		},
		{
			command: "run",
			args:    1,
			help:    "run <seconds> advance the simulation, printing once per second",
			fun: func(s *session, args ...string) error {
				seconds, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("failed to parse seconds: %w", err)
				}
				sampleMillis := s.pid.SampleTime()
				perSecond := 1000 / sampleMillis
				if perSecond < 1 {
					perSecond = 1
				}
				for i := 0; i < seconds; i++ {
					for j := 0; j < perSecond; j++ {
						s.input = s.plant.Read()
						s.pid.Step()
						s.plant.Step(s.output, time.Duration(sampleMillis)*time.Millisecond)
						s.now += uint64(sampleMillis)
					}
					fmt.Printf("t=%4ds temperature=%8.3f duty=%.4f error=%8.3f\n",
						i+1, s.plant.Temperature(), s.output, s.pid.LastError())
				}
				return nil
			},
		},
		{
			command: "disturb",
			args:    1,
			help:    "disturb <delta> apply a temperature disturbance to the plant",
			fun: func(s *session, args ...string) error {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("failed to parse delta: %w", err)
				}
				s.plant.SetTemperature(s.plant.Temperature() + v)
				return nil
			},
		},
	}
}

func help() {
	for _, c := range commands {
		fmt.Printf("  %v\n", c.help)
	}
}
