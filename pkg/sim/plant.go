// sim provides a small first-order thermal plant model for tuning
// experiments and closed-loop tests without hardware.
package sim

import (
	"math/rand"
	"time"
)

// Plant models a heated volume with first-order lag towards ambient:
//
//	dT/dt = (Ambient - T)/Tau + Gain*drive
//
// drive is the heater command in [0,1].
type Plant struct {
	// Ambient [degC] is the temperature the plant decays towards with no drive.
	Ambient float64
	// Tau [seconds] is the time constant of the decay.
	Tau float64
	// Gain [degC/second] is the heating rate at full drive.
	Gain float64
	// Noise is the standard deviation of the gaussian sensor noise added by Read.
	Noise float64

	temp float64
	rng  *rand.Rand
}

func NewPlant(ambient, tau, gain float64) *Plant {
	return &Plant{
		Ambient: ambient,
		Tau:     tau,
		Gain:    gain,
		temp:    ambient,
		rng:     rand.New(rand.NewSource(1)),
	}
}

// Step advances the model by dt under the given heater drive and returns the
// new true temperature.
func (p *Plant) Step(drive float64, dt time.Duration) float64 {
	d := dt.Seconds()
	p.temp += d * ((p.Ambient-p.temp)/p.Tau + p.Gain*drive)
	return p.temp
}

// Read returns the temperature as a sensor would see it, with noise applied.
func (p *Plant) Read() float64 {
	if p.Noise == 0 {
		return p.temp
	}
	return p.temp + p.rng.NormFloat64()*p.Noise
}

// Temperature returns the true model temperature without sensor noise.
func (p *Plant) Temperature() float64 { return p.temp }

// SetTemperature forces the model state, e.g. to simulate a disturbance.
func (p *Plant) SetTemperature(t float64) { p.temp = t }
