// gpioheat switches a heater SSR connected to a GPIO line.
package gpioheat

import (
	"fmt"
	"strconv"

	"github.com/bsm/openmetrics"
	"github.com/rs/zerolog/log"
	"github.com/warthog618/gpiod"
)

var metricGpioState = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
	Name:   "heater_gpio_state",
	Unit:   "state",
	Help:   "state of the gpio-connected heater, 1=on",
	Labels: []string{"gpio"},
})

type Switch struct {
	line *gpiod.Line
}

// Open requests the GPIO line as output, initialized to off.
func Open(chip string, offset int) (*Switch, error) {
	line, err := gpiod.RequestLine(chip, offset, gpiod.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gpio %v: %w", offset, err)
	}
	return &Switch{line: line}, nil
}

func (s *Switch) Set(on bool) error {
	value := 0
	if on {
		value = 1
	}
	log.Debug().Int("gpio", s.line.Offset()).Bool("on", on).Msg("write GPIO")

	err := s.line.SetValue(value)
	if err != nil {
		return fmt.Errorf("failed to write gpio %v: %w", s.line.Offset(), err)
	}
	metricGpioState.With(strconv.Itoa(s.line.Offset())).Set(float64(value))
	return nil
}

// Close lowers the line and releases it.
func (s *Switch) Close() error {
	_ = s.line.SetValue(0)
	return s.line.Close()
}
