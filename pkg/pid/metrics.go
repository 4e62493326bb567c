package pid

import (
	"github.com/bsm/openmetrics"
)

var (
	metricOutput = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "pid_output",
		Help: "The output written by the PID controller",
	})
	metricError = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "pid_error",
		Help: "The error (setpoint minus input) of the last evaluation",
	})
	metricTerm = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name:   "pid_term",
		Help:   "The contribution of the individual controller terms",
		Labels: []string{"term"},
	})
	metricOutputMin = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "pid_output_min",
		Help: "Lower output limit",
	})
	metricOutputMax = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "pid_output_max",
		Help: "Upper output limit",
	})
)

// WithMetrics wraps a Controller and exports the computed output and the
// P/I/D contributions as openmetrics gauges on every accepted step.
type WithMetrics struct {
	*Controller
}

func NewWithMetrics(input, output, setpoint *float64, kp, ki, kd float64, pOn Proportional, direction Direction) WithMetrics {
	return WithMetrics{
		Controller: New(input, output, setpoint, kp, ki, kd, pOn, direction),
	}
}

func (p WithMetrics) SetOutputLimits(min, max float64) {
	p.Controller.SetOutputLimits(min, max)
	min, max = p.Controller.OutputLimits()
	metricOutputMin.With().Set(min)
	metricOutputMax.With().Set(max)
}

func (p WithMetrics) Step() bool {
	computed := p.Controller.Step()
	if computed {
		metricOutput.With().Set(*p.Controller.output)
		metricError.With().Set(p.LastError())
		metricTerm.With("p").Set(p.PTerm())
		metricTerm.With("i").Set(p.ITerm())
		metricTerm.With("d").Set(p.DTerm())
	}
	return computed
}
