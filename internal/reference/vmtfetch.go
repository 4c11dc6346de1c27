// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sapcc/go-bits/logg"
)

// VMTAPIBaseURL is the upstream VMT dataset endpoint of spec.md §6: "a paged
// feature collection keyed by a 5-character FIPS code and carrying an annual
// VMT number". It is a var, not a const, so tests can point it at a test
// double.
var VMTAPIBaseURL = "https://www.fhwa.dot.gov/policyinformation/hpms/ev-readiness-vmt.json"

type vmtFeatureCollection struct {
	Features    []vmtFeature `json:"features"`
	NextPageURL string       `json:"next_page_url"`
}

type vmtFeature struct {
	Properties struct {
		CountyFIPS string  `json:"county_fips"`
		AnnualVMT  float64 `json:"annual_vmt"`
	} `json:"properties"`
}

// RefreshVMT pages through the upstream VMT dataset and replaces vmt_cache
// wholesale for every county FIPS code it sees, per spec.md §4.A ("replaced
// wholesale on ingestion, never expired by TTL"). It is wired as
// internal/ingest.Driver.FetchVMT, so a refresh cycle's ingest step
// refreshes both the station registry and the VMT dataset together. Page
// fetches use the same withRetry schedule as fetchLivePopulation; a failure
// on any page aborts the refresh and returns the counties upserted so far
// alongside the error, leaving whatever was already cached from earlier
// pages (or an earlier cycle) in place.
func (c *Cache) RefreshVMT(ctx context.Context) (int, error) {
	count := 0
	pageURL := VMTAPIBaseURL

	for pageURL != "" {
		var page vmtFeatureCollection
		fetchURL := pageURL
		err := withRetry(ctx, func(attemptCtx context.Context) error {
			req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, withAPIKey(fetchURL, c.APIKey), nil)
			if err != nil {
				return err
			}
			resp, err := c.HTTPClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("VMT service returned status %d", resp.StatusCode)
			}
			page = vmtFeatureCollection{}
			return json.NewDecoder(resp.Body).Decode(&page)
		})
		if err != nil {
			return count, err
		}

		for _, feature := range page.Features {
			if feature.Properties.CountyFIPS == "" {
				continue
			}
			if err := c.UpsertVMT(feature.Properties.CountyFIPS, feature.Properties.AnnualVMT); err != nil {
				return count, err
			}
			count++
		}

		pageURL = page.NextPageURL
	}

	logg.Debug("VMT refresh upserted %d counties", count)
	return count, nil
}

func withAPIKey(rawURL, apiKey string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("api_key", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}
