// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package reference_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/mock"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/reference"
)

// fakeStore is a minimal in-memory db.Interface sufficient for
// internal/reference's population_cache and vmt_cache queries; only the
// methods the Cache actually calls do real work.
type fakeStore struct {
	population []db.PopulationCacheEntry
	vmt        []db.VMTCacheEntry
}

func (s *fakeStore) Select(i any, query string, args ...any) ([]any, error) {
	switch dest := i.(type) {
	case *[]db.PopulationCacheEntry:
		regionType, code := args[0].(string), args[1].(string)
		for _, e := range s.population {
			if e.RegionType == regionType && e.RegionCode == code {
				*dest = append(*dest, e)
			}
		}
	case *[]db.VMTCacheEntry:
		fips := args[0].(string)
		for _, e := range s.vmt {
			if e.CountyFIPS == fips {
				*dest = append(*dest, e)
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) Insert(args ...any) error {
	switch v := args[0].(type) {
	case *db.PopulationCacheEntry:
		s.population = append(s.population, *v)
	case *db.VMTCacheEntry:
		s.vmt = append(s.vmt, *v)
	}
	return nil
}

func (s *fakeStore) Update(args ...any) (int64, error) {
	switch v := args[0].(type) {
	case *db.PopulationCacheEntry:
		for i, e := range s.population {
			if e.RegionType == v.RegionType && e.RegionCode == v.RegionCode {
				s.population[i] = *v
			}
		}
	case *db.VMTCacheEntry:
		for i, e := range s.vmt {
			if e.CountyFIPS == v.CountyFIPS {
				s.vmt[i] = *v
			}
		}
	}
	return 1, nil
}

func (s *fakeStore) Delete(args ...any) (int64, error) { return 0, nil }
func (s *fakeStore) Exec(query string, args ...any) (sql.Result, error) {
	return nil, nil
}

var _ db.Interface = (*fakeStore)(nil)

func newTestCache(t *testing.T, handler http.Handler) (*reference.Cache, *fakeStore, *mock.Clock) {
	t.Helper()
	store := &fakeStore{}
	clock := mock.NewClock()
	c := reference.NewCache(store, "test-api-key")
	c.Now = clock.Now
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		original := reference.PopulationAPIBaseURL
		reference.PopulationAPIBaseURL = srv.URL
		t.Cleanup(func() { reference.PopulationAPIBaseURL = original })
	}
	return c, store, clock
}

func TestPopulationLiveFetchPopulatesCache(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]string{{"NAME", "population"}, {"California", "39538223"}})
	})
	c, store, _ := newTestCache(t, handler)

	value, source, err := c.Population(context.Background(), db.RegionState, "CA", "California")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "source", source, reference.SourceLive)
	assert.DeepEqual(t, "value", value, int64(39538223))
	if len(store.population) != 1 {
		t.Fatalf("expected cache to be populated, got %d rows", len(store.population))
	}
}

func TestPopulationCacheHitWithinTTL(t *testing.T) {
	c, store, clock := newTestCache(t, nil)
	store.population = append(store.population, db.PopulationCacheEntry{
		RegionType: string(db.RegionState), RegionCode: "CA", Value: 1000, FetchedAt: clock.Now(),
	})

	value, source, err := c.Population(context.Background(), db.RegionState, "CA", "California")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "source", source, reference.SourceCached)
	assert.DeepEqual(t, "value", value, int64(1000))
}

func TestPopulationFallsBackToEstimateOnUpstreamFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c, store, _ := newTestCache(t, handler)

	value, source, err := c.Population(context.Background(), db.RegionState, "CA", "California")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "source", source, reference.SourceEstimate)
	assert.DeepEqual(t, "value", value, int64(39538223))
	if len(store.population) != 0 {
		t.Fatal("estimate fallback must not poison the cache")
	}
}

func TestPopulationStaleCacheEntryTriggersRefetch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]string{{"NAME", "population"}, {"California", "2000"}})
	})
	c, store, clock := newTestCache(t, handler)
	store.population = append(store.population, db.PopulationCacheEntry{
		RegionType: string(db.RegionState), RegionCode: "CA", Value: 1000, FetchedAt: clock.Now(),
	})
	clock.StepBy(31 * 24 * time.Hour)

	value, source, err := c.Population(context.Background(), db.RegionState, "CA", "California")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "source", source, reference.SourceLive)
	assert.DeepEqual(t, "value", value, int64(2000))
}

func TestVMTPerCapitaAbsentWithoutCacheEntry(t *testing.T) {
	c, _, _ := newTestCache(t, nil)
	got, err := c.VMTPerCapita("06075", 1000)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Unpack(); ok {
		t.Fatal("expected no VMT value without a cache entry")
	}
}

func TestVMTPerCapitaDividesByDaysAndPopulation(t *testing.T) {
	c, store, _ := newTestCache(t, nil)
	store.vmt = append(store.vmt, db.VMTCacheEntry{CountyFIPS: "06075", AnnualVMT: 365000})

	got, err := c.VMTPerCapita("06075", 1000)
	if err != nil {
		t.Fatal(err)
	}
	value, ok := got.Unpack()
	if !ok {
		t.Fatal("expected a VMT value")
	}
	assert.DeepEqual(t, "vmt per capita", value, 1.0)
}

func TestRefreshVMTUpsertsEachCounty(t *testing.T) {
	c, store, _ := newTestCache(t, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{
				{"properties": map[string]any{"county_fips": "06075", "annual_vmt": 365000.0}},
				{"properties": map[string]any{"county_fips": "48201", "annual_vmt": 730000.0}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	original := reference.VMTAPIBaseURL
	reference.VMTAPIBaseURL = srv.URL
	t.Cleanup(func() { reference.VMTAPIBaseURL = original })

	n, err := c.RefreshVMT(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "counties upserted", n, 2)
	if len(store.vmt) != 2 {
		t.Fatalf("expected 2 cache rows, got %d", len(store.vmt))
	}
}

func TestRefreshVMTFollowsPagination(t *testing.T) {
	c, store, _ := newTestCache(t, nil)
	mux := http.NewServeMux()
	var secondPageURL string
	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features":      []map[string]any{{"properties": map[string]any{"county_fips": "06075", "annual_vmt": 365000.0}}},
			"next_page_url": secondPageURL,
		})
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{"properties": map[string]any{"county_fips": "48201", "annual_vmt": 730000.0}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	secondPageURL = srv.URL + "/page2"

	original := reference.VMTAPIBaseURL
	reference.VMTAPIBaseURL = srv.URL + "/page1"
	t.Cleanup(func() { reference.VMTAPIBaseURL = original })

	n, err := c.RefreshVMT(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "counties upserted", n, 2)
	if len(store.vmt) != 2 {
		t.Fatalf("expected both pages' counties cached, got %d", len(store.vmt))
	}
}
