// pid-shell is an interactive shell to experiment with controller tunings
// against the simulated thermal plant.
package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/pid-ctrl-tool/pkg/pid"
	"github.com/yvesf/pid-ctrl-tool/pkg/sim"
)

var (
	flagAmbient = flag.Float64("ambient", 20, "Plant ambient temperature [celsius]")
	flagTau     = flag.Float64("tau", 30, "Plant time constant [s]")
	flagGain    = flag.Float64("gain", 1, "Plant heating rate at full drive [celsius/s]")
	flagNoise   = flag.Float64("noise", 0, "Sensor noise standard deviation [celsius]")
	flagSample  = flag.Duration("sample", time.Millisecond*100, "Controller sample time")
	flagDebug   = flag.Bool("debug", false, "Set log level to debug")
)

// session is the state shared by all shell commands: the plant, the
// controller and the linked cells, plus the simulated clock Step gates on.
type session struct {
	plant    *sim.Plant
	pid      *pid.Controller
	input    float64
	output   float64
	setpoint float64
	now      uint64
}

func newSession() *session {
	s := &session{
		plant:    sim.NewPlant(*flagAmbient, *flagTau, *flagGain),
		setpoint: *flagAmbient,
	}
	s.plant.Noise = *flagNoise
	s.input = s.plant.Read()

	s.pid = pid.New(&s.input, &s.output, &s.setpoint, 0.5, 0.05, 0, pid.OnError, pid.Direct)
	s.pid.SetClock(func() uint64 { return s.now })
	s.pid.SetOutputLimits(0, 1)
	s.pid.SetIntegratorLimits(0, 1)
	s.pid.SetSampleTime(int(flagSample.Milliseconds()))
	s.pid.SetMode(pid.Automatic)
	return s
}

func main() {
	flag.Parse()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if f := flag.Args(); len(f) == 1 && f[0] == "help" {
		help()
		return
	}

	s := newSession()

	line := liner.NewLiner()
	defer line.Close()

	// if arguments passed then execute as a single command
	if args := flag.Args(); len(args) > 0 {
		execute(s, args)
		return
	}

	// otherwise: start repl
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) (c []string) {
		for _, comm := range commands {
			if strings.HasPrefix(comm.command, line) {
				c = append(c, comm.command)
			}
		}
		return c
	})

	for {
		if response, err := line.Prompt("pid> "); err == nil {
			inputTokens, err := shlex.Split(response)
			if err != nil {
				log.Error().Err(err).Msg("failed to parse input")
				continue
			}
			if len(inputTokens) == 0 {
				continue
			}
			line.AppendHistory(response)
			execute(s, inputTokens)
		} else if err == liner.ErrPromptAborted {
			continue
		} else if err == io.EOF {
			fmt.Printf("\n")
			break
		} else {
			log.Error().Err(err).Msg("error reading line")
		}
	}
	log.Info().Msg("shutdown")
}

func execute(s *session, tokens []string) {
	for _, comm := range commands {
		if comm.command != tokens[0] {
			continue
		}
		if comm.args >= 0 && comm.args != len(tokens)-1 {
			log.Error().Msgf("invalid number of arguments for command %v, expected %v got %v",
				comm.command, comm.args, len(tokens)-1)
			return
		}
		err := comm.fun(s, tokens[1:]...)
		if err != nil {
			log.Error().Err(err).Msgf("Command failed %v", tokens)
		}
		return
	}
	log.Error().Msgf("unknown command %v", tokens[0])
}
