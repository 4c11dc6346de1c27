// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package promotion_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/mock"

	"github.com/sapcc/ev-readiness/internal/aggregate"
	"github.com/sapcc/ev-readiness/internal/auditlog"
	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/ingest"
	"github.com/sapcc/ev-readiness/internal/promotion"
	"github.com/sapcc/ev-readiness/internal/reference"
	"github.com/sapcc/ev-readiness/internal/zippipeline"
)

// fakeStore is a single in-memory db.Interface double covering every table
// RunCycle's component drivers touch, short of anything that needs a real
// *gorp.DbMap (db.Promote itself). Only the "promoted" terminal path
// reaches db.Promote; every other path below is exercised here, and
// DESIGN.md records why that last path is left untested at this level.
type fakeStore struct {
	lock                 db.CycleLock
	denyNextAcquire      bool
	stagingStations      []db.Station
	servingStations      []db.Station
	stateAggStagingRows  int
	countyAggStagingRows int
	pipelineState        *db.ZipPipelineState
	changeLog            []db.ChangeLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{lock: db.CycleLock{Name: "refresh-cycle"}}
}

func (s *fakeStore) Select(i any, query string, args ...any) ([]any, error) {
	switch dest := i.(type) {
	case *[]db.CycleLock:
		*dest = []db.CycleLock{s.lock}
	case *[]db.Station:
		if containsSubstring(query, "stations_staging") {
			*dest = s.stagingStations
		} else {
			*dest = s.servingStations
		}
	case *[]db.ZipPipelineState:
		if s.pipelineState != nil {
			*dest = []db.ZipPipelineState{*s.pipelineState}
		}
	case *[]db.StateAggregateStaging, *[]db.CountyAggregateStaging, *[]db.ZipAggregateStaging,
		*[]db.PopulationCacheEntry, *[]db.VMTCacheEntry:
		// none of the scoped scenarios below reach a row in these tables
	case *[]int:
		// db.Count's "SELECT COUNT(*) FROM <table>" shape
		switch {
		case containsSubstring(query, "stations_staging"):
			*dest = []int{len(s.stagingStations)}
		case containsSubstring(query, "FROM stations"):
			*dest = []int{len(s.servingStations)}
		case containsSubstring(query, "state_aggregates_staging"):
			*dest = []int{s.stateAggStagingRows}
		case containsSubstring(query, "county_aggregates_staging"):
			*dest = []int{s.countyAggStagingRows}
		default:
			return nil, fmt.Errorf("fakeStore.Select: unhandled count query %q", query)
		}
	default:
		return nil, fmt.Errorf("fakeStore.Select: unhandled destination %T", dest)
	}
	return nil, nil
}

func (s *fakeStore) Insert(args ...any) error {
	switch row := args[0].(type) {
	case *db.ZipPipelineState:
		s.pipelineState = row
	case *db.ChangeLogEntry:
		s.changeLog = append(s.changeLog, *row)
	case *db.StationStaging:
		s.stagingStations = append(s.stagingStations, db.Station(*row))
	}
	return nil
}

func (s *fakeStore) Update(args ...any) (int64, error) {
	switch row := args[0].(type) {
	case *db.ZipPipelineState:
		s.pipelineState = row
	}
	return 1, nil
}

func (s *fakeStore) Delete(args ...any) (int64, error) { return 0, nil }

func (s *fakeStore) Exec(query string, args ...any) (sql.Result, error) {
	if containsSubstring(query, "TRUNCATE TABLE stations_staging") {
		s.stagingStations = nil
		return fakeResult{rows: 0}, nil
	}
	if containsSubstring(query, "UPDATE cycle_locks") {
		if containsSubstring(query, "SET locked_by = $1") {
			// acquire: SET locked_by = $1, locked_at = $2 WHERE name = $3 AND locked_by = ''
			if s.denyNextAcquire || s.lock.LockedBy != "" {
				return fakeResult{rows: 0}, nil
			}
			s.lock.LockedBy = args[0].(string)
			return fakeResult{rows: 1}, nil
		}
		// release: SET locked_by = '' WHERE name = ... AND locked_by = <cycleID>
		s.lock.LockedBy = ""
		return fakeResult{rows: 1}, nil
	}
	return fakeResult{rows: 0}, nil
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

var _ db.Interface = (*fakeStore)(nil)

func stationsHandler(t *testing.T, raw string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
	})
}

func newTestCoordinator(t *testing.T, store *fakeStore, clock *mock.Clock) *promotion.Coordinator {
	t.Helper()
	ingestDriver := ingest.NewDriver(store, "test-api-key")
	ingestDriver.Sleep = func(time.Duration) {}
	ingestDriver.Now = clock.Now

	ref := reference.NewCache(store, "test-api-key")
	stateAgg := aggregate.NewStateAggregator(store, ref)
	countyAgg := aggregate.NewCountyAggregator(store, ref)
	zipAgg := aggregate.NewZipAggregator(store, ref)
	zipPipeline := zippipeline.NewPipeline(store, zipAgg)
	zipPipeline.Sleep = func(time.Duration) {}
	zipPipeline.Now = clock.Now

	auditRecorder := auditlog.NewRecorder(store)
	auditRecorder.Now = clock.Now

	c := promotion.NewCoordinator(nil, store, ingestDriver, stateAgg, countyAgg, zipPipeline, auditRecorder)
	c.Now = clock.Now
	c.NewCycleID = func() string { return "test-cycle" }
	return c
}

func TestRunCycleReportsCycleInProgressWhenAcquireRaces(t *testing.T) {
	store := newFakeStore()
	store.denyNextAcquire = true
	c := newTestCoordinator(t, store, mock.NewClock())

	result := c.RunCycle(context.Background())

	if result.Failure == nil || *result.Failure != "cycle-in-progress" {
		t.Fatalf("expected cycle-in-progress failure, got %+v", result.Failure)
	}
	if result.HTTPStatus() != 503 {
		t.Fatalf("expected HTTP 503, got %d", result.HTTPStatus())
	}
}

func TestRunCycleAbortsOnIngestUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	origURL := ingest.StationsAPIBaseURL
	ingest.StationsAPIBaseURL = server.URL
	defer func() { ingest.StationsAPIBaseURL = origURL }()

	store := newFakeStore()
	c := newTestCoordinator(t, store, mock.NewClock())

	result := c.RunCycle(context.Background())

	assert.DeepEqual(t, "success", result.Success, false)
	if result.Failure == nil || *result.Failure != "upstream-error" {
		t.Fatalf("expected upstream-error failure, got %+v", result.Failure)
	}
	if store.lock.LockedBy != "" {
		t.Fatalf("expected lock released after abort, still held by %q", store.lock.LockedBy)
	}
	if len(store.changeLog) != 1 || store.changeLog[0].Outcome != "aborted:upstream-error" {
		t.Fatalf("expected one aborted change log row, got %+v", store.changeLog)
	}
}

// matchingStationRaw is one upstream record that, once normalized and
// assigned ingest's first staging id (1), is byte-for-byte identical (per
// changedetect's comparison fields) to testServingStation below.
const matchingStationRaw = `{"fuel_stations": [{
	"id": 1,
	"station_name": "Test Station",
	"latitude": 34.05,
	"longitude": -118.25,
	"street_address": "123 Main St",
	"city": "Los Angeles",
	"state": "CA",
	"zip": "90001",
	"ev_connector_types": ["TESLA"],
	"ev_dc_fast_num": 1,
	"ev_level2_evse_num": 0,
	"ev_level1_evse_num": 0,
	"ev_network": "Tesla"
}]}`

var testServingStation = db.Station{
	ID:            1,
	ExternalID:    "1",
	Name:          "Test Station",
	Latitude:      34.05,
	Longitude:     -118.25,
	StreetAddress: "123 Main St",
	State:         "CA",
	Zip:           "90001",
	Level:         db.LevelDCFast,
	NumPorts:      1,
	ConnectorsCSV: "TESLA",
	Network:       "Tesla",
}

func TestRunCycleFinishesNoChangesWhenStagingMatchesServing(t *testing.T) {
	server := httptest.NewServer(stationsHandler(t, matchingStationRaw))
	defer server.Close()
	origURL := ingest.StationsAPIBaseURL
	ingest.StationsAPIBaseURL = server.URL
	defer func() { ingest.StationsAPIBaseURL = origURL }()

	store := newFakeStore()
	store.servingStations = []db.Station{testServingStation}
	c := newTestCoordinator(t, store, mock.NewClock())

	result := c.RunCycle(context.Background())

	assert.DeepEqual(t, "success", result.Success, true)
	assert.DeepEqual(t, "message", result.Message, "no-changes")
	if store.lock.LockedBy != "" {
		t.Fatalf("expected lock released after no-changes finish, still held by %q", store.lock.LockedBy)
	}
	if len(store.changeLog) != 1 || store.changeLog[0].Outcome != "no-changes" {
		t.Fatalf("expected one no-changes change log row, got %+v", store.changeLog)
	}
	if result.HTTPStatus() != 200 {
		t.Fatalf("expected HTTP 200, got %d", result.HTTPStatus())
	}
}

// TestRunCycleAbortsWhenStagingDropsBelowHalfOfServing is spec.md §8
// scenario 4 ("Removal"): upstream returns one record while two were
// previously serving, so staging/serving = 0.5, which fails the Ingesting
// -> Detecting guard's strict ">" and aborts the cycle before changedetect
// ever runs.
func TestRunCycleAbortsWhenStagingDropsBelowHalfOfServing(t *testing.T) {
	server := httptest.NewServer(stationsHandler(t, matchingStationRaw))
	defer server.Close()
	origURL := ingest.StationsAPIBaseURL
	ingest.StationsAPIBaseURL = server.URL
	defer func() { ingest.StationsAPIBaseURL = origURL }()

	store := newFakeStore()
	store.servingStations = []db.Station{testServingStation, {ID: 2, ExternalID: "2", Name: "Second Station"}}
	c := newTestCoordinator(t, store, mock.NewClock())

	result := c.RunCycle(context.Background())

	assert.DeepEqual(t, "success", result.Success, false)
	if result.Failure == nil || *result.Failure != "invariant-violation" {
		t.Fatalf("expected invariant-violation failure, got %+v", result.Failure)
	}
	if store.lock.LockedBy != "" {
		t.Fatalf("expected lock released after abort, still held by %q", store.lock.LockedBy)
	}
	if result.HTTPStatus() != 500 {
		t.Fatalf("expected HTTP 500, got %d", result.HTTPStatus())
	}
}

func TestRunCycleResumesHeldLockAndStaysPartialPastDeadline(t *testing.T) {
	store := newFakeStore()
	store.lock.LockedBy = "prior-cycle"
	store.pipelineState = &db.ZipPipelineState{
		CycleID:         "prior-cycle",
		ResidualZipsCSV: "94102:CA,10001:NY",
		TotalZips:       2,
		StartedAt:       time.Unix(0, 0),
		UpdatedAt:       time.Unix(0, 0),
	}

	clock := mock.NewClock()
	c := newTestCoordinator(t, store, clock)
	// The pipeline's own Now() is pinned an hour past RunCycle's start time,
	// so its first deadline check fails immediately and Run yields partial
	// without touching any chunk.
	c.Now = func() time.Time { return time.Unix(0, 0) }
	pipelineCallCount := 0
	c.ZipPipeline.Now = func() time.Time {
		pipelineCallCount++
		return time.Unix(0, 0).Add(time.Hour)
	}

	result := c.RunCycle(context.Background())

	assert.DeepEqual(t, "success", result.Success, false)
	if !result.Partial {
		t.Fatalf("expected a partial result, got %+v", result)
	}
	if result.CycleID != "prior-cycle" {
		t.Fatalf("expected resumed cycle id %q, got %q", "prior-cycle", result.CycleID)
	}
	if store.lock.LockedBy != "prior-cycle" {
		t.Fatalf("expected lock to remain held by the resumed cycle, got %q", store.lock.LockedBy)
	}
	if pipelineCallCount == 0 {
		t.Fatal("expected the zip pipeline's Now to be consulted at least once")
	}
}
