// shelly talks to Shelly devices over their local HTTP API:
// the H&T temperature sensor as controller input and the relay switch as
// controller output.
package shelly

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type HT struct {
	Client *http.Client
	Addr   string
}

type htStatus struct {
	Tmp struct {
		TC      float64 `json:"tC"`
		IsValid bool    `json:"is_valid"`
	} `json:"tmp"`
}

// Read returns the current temperature in degrees celsius from the H&T
// /status endpoint.
func (s HT) Read() (float64, error) {
	url := url.URL{
		Scheme: "http",
		Host:   s.Addr,
		Path:   "/status",
	}

	req, err := http.NewRequest(http.MethodGet, url.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to construct request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to read from shelly device: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code from shelly device: %v", resp.StatusCode)
	}

	// we expect no valid response larger than 1mb
	bodyReader := io.LimitReader(resp.Body, 1024*1024)

	var data htStatus
	err = json.NewDecoder(bodyReader).Decode(&data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse response from shelly device: %w", err)
	}
	if !data.Tmp.IsValid {
		return 0, fmt.Errorf("shelly device reports invalid temperature reading")
	}

	return data.Tmp.TC, nil
}
