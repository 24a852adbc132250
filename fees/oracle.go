package fees

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// PolygonGasStationURL is the public gas station endpoint for Polygon
// mainnet. The Mumbai testnet equivalent lives at
// https://gasstation-testnet.polygon.technology/v2.
const PolygonGasStationURL = "https://gasstation.polygon.technology/v2"

// GasStationOracle fetches a default priority fee from a Polygon-style
// gas station endpoint. Polygon's node-reported tip is routinely too
// low for timely inclusion, so the original pipeline prefers the gas
// station's "standard" recommendation there.
type GasStationOracle struct {
	url        string
	httpClient *http.Client
}

// GasStationConfig configures a GasStationOracle.
type GasStationConfig struct {
	// URL of the gas station endpoint. Defaults to PolygonGasStationURL.
	URL string

	// HTTPClient to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 10s).
	Timeout time.Duration
}

// NewGasStationOracle creates an oracle for a gas station endpoint.
func NewGasStationOracle(config *GasStationConfig) *GasStationOracle {
	if config == nil {
		config = &GasStationConfig{}
	}

	url := config.URL
	if url == "" {
		url = PolygonGasStationURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &GasStationOracle{url: url, httpClient: httpClient}
}

// SuggestPriorityFee returns the gas station's standard priority fee
// recommendation in wei.
func (o *GasStationOracle) SuggestPriorityFee(ctx context.Context) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gas station request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gas station request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas station response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gas station returned %d: %s", resp.StatusCode, string(body))
	}

	var stationResponse struct {
		Standard struct {
			MaxPriorityFee float64 `json:"maxPriorityFee"`
		} `json:"standard"`
	}
	if err := json.Unmarshal(body, &stationResponse); err != nil {
		return nil, fmt.Errorf("failed to decode gas station response: %w", err)
	}
	if stationResponse.Standard.MaxPriorityFee <= 0 {
		return nil, fmt.Errorf("gas station returned no standard priority fee")
	}

	return gweiToWei(stationResponse.Standard.MaxPriorityFee), nil
}

// gweiToWei converts a fractional gwei amount to wei.
func gweiToWei(gwei float64) *big.Int {
	wei := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9))
	result, _ := wei.Int(nil)
	return result
}
