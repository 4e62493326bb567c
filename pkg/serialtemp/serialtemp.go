// serialtemp reads temperature values from probes that print
// newline-delimited readings over a serial port, either bare numbers
// ("23.50") or key-value form ("t=23.50").
package serialtemp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/serial"
)

type Probe struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// Open opens the serial device and returns a probe reading from it.
func Open(device string, baudRate int) (*Probe, error) {
	config := serial.Config{}
	config.Address = device
	config.BaudRate = baudRate
	config.DataBits = 8
	config.Parity = "N"
	config.StopBits = 1
	config.Timeout = 5 * time.Second

	port, err := serial.Open(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %v: %w", device, err)
	}

	p := NewProbe(port)
	p.closer = port
	return p, nil
}

// NewProbe wraps an already-open reading stream, mainly for tests.
func NewProbe(r io.Reader) *Probe {
	return &Probe{scanner: bufio.NewScanner(r)}
}

// Read blocks until the next complete reading and returns it in degrees
// celsius. Empty and malformed lines are skipped.
func (p *Probe) Read() (float64, error) {
	for p.scanner.Scan() {
		v, ok := parseLine(p.scanner.Text())
		if !ok {
			continue
		}
		return v, nil
	}
	if err := p.scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read from probe: %w", err)
	}
	return 0, io.EOF
}

func (p *Probe) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func parseLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if v, ok := strings.CutPrefix(line, "t="); ok {
		line = v
	}
	if line == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
