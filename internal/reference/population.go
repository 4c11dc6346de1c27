// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ev-readiness/internal/db"
)

// PopulationAPIBaseURL is the upstream population-lookup endpoint. It is a
// var, not a const, so tests can point it at a test double.
var PopulationAPIBaseURL = "https://api.census.gov/data/2020/dec/pl/ev-readiness-population"

// Population implements spec.md §4.A's contract: a cache hit less than 30
// days old returns `cached`; a miss (or a stale hit) attempts a live fetch
// through the shared retry/backoff policy and upserts the cache on success;
// on terminal failure it returns the fixed fallback estimate and leaves the
// cache untouched.
func (c *Cache) Population(ctx context.Context, regionType db.RegionKind, code, displayName string) (int64, Source, error) {
	entry, err := c.lookupPopulation(regionType, code)
	if err != nil {
		return 0, "", err
	}
	if entry != nil && !entry.IsEstimate && c.Now().Sub(entry.FetchedAt) < cacheTTL {
		return entry.Value, SourceCached, nil
	}

	value, err := c.fetchLivePopulation(ctx, regionType, code)
	if err != nil {
		logg.Info("population lookup for %s %s fell back to estimate: %s", regionType, code, err.Error())
		return estimateFor(code), SourceEstimate, nil
	}

	if err := c.upsertPopulation(regionType, code, displayName, value); err != nil {
		return 0, "", err
	}
	return value, SourceLive, nil
}

// PopulationBatch implements the ZIP batch form of spec.md §4.A: up to 50
// codes per outbound request. Codes absent from the upstream response, and
// codes for which the live fetch fails entirely, receive the constant
// estimate rather than erroring out the whole batch.
func (c *Cache) PopulationBatch(ctx context.Context, codes []string) (map[string]int64, map[string]Source, error) {
	const maxCodesPerRequest = 50

	values := make(map[string]int64, len(codes))
	sources := make(map[string]Source, len(codes))

	for start := 0; start < len(codes); start += maxCodesPerRequest {
		end := start + maxCodesPerRequest
		if end > len(codes) {
			end = len(codes)
		}
		chunk := codes[start:end]

		remaining := make([]string, 0, len(chunk))
		for _, code := range chunk {
			entry, err := c.lookupPopulation(db.RegionZip, code)
			if err != nil {
				return nil, nil, err
			}
			if entry != nil && !entry.IsEstimate && c.Now().Sub(entry.FetchedAt) < cacheTTL {
				values[code] = entry.Value
				sources[code] = SourceCached
				continue
			}
			remaining = append(remaining, code)
		}
		if len(remaining) == 0 {
			continue
		}

		fetched, err := c.fetchLivePopulationBatch(ctx, remaining)
		if err != nil {
			logg.Info("batch population lookup for %d ZIPs fell back to estimates: %s", len(remaining), err.Error())
			for _, code := range remaining {
				values[code] = countyZipEstimate
				sources[code] = SourceEstimate
			}
			continue
		}
		for _, code := range remaining {
			value, ok := fetched[code]
			if !ok {
				values[code] = countyZipEstimate
				sources[code] = SourceEstimate
				continue
			}
			if err := c.upsertPopulation(db.RegionZip, code, code, value); err != nil {
				return nil, nil, err
			}
			values[code] = value
			sources[code] = SourceLive
		}
	}

	return values, sources, nil
}

// populationRows is spec.md §6's documented population-service response
// shape: "a JSON array whose first row is headers and subsequent rows are
// values; the population column is an integer-as-string" -- the same
// array-of-arrays convention the census.gov data API itself uses (e.g.
// `[["NAME","POPULATION"],["California","39538223"]]`).
type populationRows [][]string

func (rows populationRows) column(name string) int {
	if len(rows) == 0 {
		return -1
	}
	for i, h := range rows[0] {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func (c *Cache) fetchLivePopulation(ctx context.Context, regionType db.RegionKind, code string) (int64, error) {
	var rows populationRows
	err := withRetry(ctx, func(attemptCtx context.Context) error {
		q := url.Values{}
		q.Set("region_type", string(regionType))
		q.Set("code", code)
		q.Set("api_key", c.APIKey)

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, PopulationAPIBaseURL+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("population API returned status %d for %s %s", resp.StatusCode, regionType, code)
		}
		rows = nil
		return json.NewDecoder(resp.Body).Decode(&rows)
	})
	if err != nil {
		return 0, err
	}
	value, _, err := rows.valuesAt(1)
	return value, err
}

// valuesAt parses the population value (and, where present, a "name"
// column) out of row index i, i >= 1 (row 0 is the header row).
func (rows populationRows) valuesAt(i int) (value int64, name string, err error) {
	popCol, nameCol := rows.column("population"), rows.column("name")
	if popCol < 0 {
		return 0, "", fmt.Errorf("population API response has no population column")
	}
	if i >= len(rows) || popCol >= len(rows[i]) {
		return 0, "", fmt.Errorf("population API response missing data row %d", i)
	}
	value, err = strconv.ParseInt(rows[i][popCol], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("population column is not integer-as-string: %w", err)
	}
	if nameCol >= 0 && nameCol < len(rows[i]) {
		name = rows[i][nameCol]
	}
	return value, name, nil
}

func (c *Cache) fetchLivePopulationBatch(ctx context.Context, codes []string) (map[string]int64, error) {
	var rows populationRows
	err := withRetry(ctx, func(attemptCtx context.Context) error {
		body, err := json.Marshal(struct {
			Codes []string `json:"codes"`
		}{Codes: codes})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, PopulationAPIBaseURL+"/batch?api_key="+url.QueryEscape(c.APIKey), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("batch population API returned status %d for %d codes", resp.StatusCode, len(codes))
		}
		rows = nil
		return json.NewDecoder(resp.Body).Decode(&rows)
	})
	if err != nil {
		return nil, err
	}

	zipCol := rows.column("zip")
	popCol := rows.column("population")
	if zipCol < 0 || popCol < 0 {
		return nil, fmt.Errorf("batch population API response missing zip or population column")
	}
	values := make(map[string]int64, len(rows)-1)
	for _, row := range rows[1:] {
		if zipCol >= len(row) || popCol >= len(row) {
			continue
		}
		value, err := strconv.ParseInt(row[popCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("population column is not integer-as-string: %w", err)
		}
		values[row[zipCol]] = value
	}
	return values, nil
}
