// Package geocode resolves street addresses to coordinates through an
// external geocoding HTTP service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/pkg/errs"
)

const requestTimeout = 5 * time.Second

// Client implements ports.Geocoder against a JSON geocoding endpoint.
// The endpoint is expected to answer GET <baseURL>?address=<q> with
// {"lat": <float>, "lng": <float>}.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a geocoding client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errs.NewValueIsRequiredError("baseURL")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("baseURL", err)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

type geocodeResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocode resolves an address to a geographic point.
func (c *Client) Geocode(ctx context.Context, address string) (kernel.GeoPoint, error) {
	if address == "" {
		return kernel.GeoPoint{}, errs.NewValueIsRequiredError("address")
	}

	endpoint := fmt.Sprintf("%s?address=%s", c.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return kernel.GeoPoint{}, fmt.Errorf("create geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return kernel.GeoPoint{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return kernel.GeoPoint{}, fmt.Errorf("geocode service returned %d: %s", resp.StatusCode, body)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return kernel.GeoPoint{}, fmt.Errorf("decode geocode response: %w", err)
	}

	return kernel.NewGeoPoint(payload.Lat, payload.Lng)
}
