// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sapcc/ev-readiness/internal/station"
)

// StationsAPIBaseURL is the upstream station registry endpoint. It is a
// var, not a const, so tests can point it at a test double.
var StationsAPIBaseURL = "https://developer.nrel.gov/api/alt-fuel-stations/v1.json"

type registryResponse struct {
	FuelStations []station.Raw `json:"fuel_stations"`
}

// fetchAll issues the single paged GET of spec.md §4.C
// (`limit=all&status=E&country=US&fuel_type=ELEC`) and decodes the
// `fuel_stations` array. A non-2xx response, a transport error, or a
// malformed payload is spec.md §7's upstream-error.
func (d *Driver) fetchAll(ctx context.Context) ([]station.Raw, error) {
	q := url.Values{}
	q.Set("limit", "all")
	q.Set("status", "E")
	q.Set("country", "US")
	q.Set("fuel_type", "ELEC")
	q.Set("api_key", d.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, StationsAPIBaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("station registry returned status %d", resp.StatusCode)
	}

	var decoded registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("malformed station registry payload: %w", err)
	}
	return decoded.FuelStations, nil
}
