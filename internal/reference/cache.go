// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"net/http"
	"time"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/util"
)

// cacheTTL is spec.md §4.A's population cache expiry.
const cacheTTL = 30 * 24 * time.Hour

// Cache implements the reference-data lookups of spec.md §4.A against a
// db.Interface-backed store and an upstream population API.
type Cache struct {
	Store      db.Interface
	HTTPClient *http.Client
	APIKey     string

	// Now is usually time.Now, but can be replaced in tests.
	Now func() time.Time
}

// NewCache builds a Cache with a logging-instrumented HTTP client, following
// the same AddLoggingRoundTripper wiring used for every other outbound API
// client in this codebase.
func NewCache(store db.Interface, apiKey string) *Cache {
	return &Cache{
		Store: store,
		HTTPClient: &http.Client{
			Transport: util.AddLoggingRoundTripper(http.DefaultTransport),
			Timeout:   perCallTimeout,
		},
		APIKey: apiKey,
		Now:    time.Now,
	}
}

func (c *Cache) lookupPopulation(regionType db.RegionKind, code string) (*db.PopulationCacheEntry, error) {
	var rows []db.PopulationCacheEntry
	_, err := c.Store.Select(&rows,
		db.SimplifyWhitespace(`
			SELECT * FROM population_cache WHERE region_type = $1 AND region_code = $2
		`), string(regionType), code)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Cache) upsertPopulation(regionType db.RegionKind, code, displayName string, value int64) error {
	existing, err := c.lookupPopulation(regionType, code)
	if err != nil {
		return err
	}
	entry := db.PopulationCacheEntry{
		RegionType:  string(regionType),
		RegionCode:  code,
		DisplayName: displayName,
		Value:       value,
		IsEstimate:  false,
		FetchedAt:   c.Now(),
	}
	if existing == nil {
		return c.Store.Insert(&entry)
	}
	_, err = c.Store.Update(&entry)
	return err
}

func (c *Cache) lookupVMT(countyFIPS string) (*db.VMTCacheEntry, error) {
	var rows []db.VMTCacheEntry
	_, err := c.Store.Select(&rows,
		db.SimplifyWhitespace(`SELECT * FROM vmt_cache WHERE county_fips = $1`), countyFIPS)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpsertVMT replaces the cached VMT figure for a county wholesale, per
// spec.md §4.A ("replaced wholesale on ingestion, never expired by TTL").
// Called by internal/ingest when the upstream VMT dataset is refreshed.
func (c *Cache) UpsertVMT(countyFIPS string, annualVMT float64) error {
	existing, err := c.lookupVMT(countyFIPS)
	if err != nil {
		return err
	}
	entry := db.VMTCacheEntry{
		CountyFIPS: countyFIPS,
		AnnualVMT:  annualVMT,
		FetchedAt:  c.Now(),
	}
	if existing == nil {
		return c.Store.Insert(&entry)
	}
	_, err = c.Store.Update(&entry)
	return err
}
