// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package zippipeline_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/mock"

	"github.com/sapcc/ev-readiness/internal/aggregate"
	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/reference"
	"github.com/sapcc/ev-readiness/internal/zippipeline"
)

// fakeStore is a single in-memory db.Interface double backing both the ZIP
// aggregator's reads/writes and the pipeline's own residual-state table, the
// same way a real *gorp.DbMap would serve every table through one handle.
type fakeStore struct {
	stations   []db.Station
	population []db.PopulationCacheEntry

	existingZip []db.ZipAggregateStaging
	insertedZip []db.ZipAggregateStaging
	updatedZip  []db.ZipAggregateStaging

	pipelineState []db.ZipPipelineState
}

func (s *fakeStore) Select(i any, query string, args ...any) ([]any, error) {
	switch dest := i.(type) {
	case *[]db.Station:
		*dest = append(*dest, s.stations...)
	case *[]db.ZipAggregateStaging:
		*dest = append(*dest, s.existingZip...)
	case *[]db.PopulationCacheEntry:
		regionType, code := args[0].(string), args[1].(string)
		for _, e := range s.population {
			if e.RegionType == regionType && e.RegionCode == code {
				*dest = append(*dest, e)
			}
		}
	case *[]db.ZipPipelineState:
		cycleID := args[0].(string)
		for _, st := range s.pipelineState {
			if st.CycleID == cycleID {
				*dest = append(*dest, st)
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) Insert(args ...any) error {
	switch r := args[0].(type) {
	case *db.ZipAggregateStaging:
		s.insertedZip = append(s.insertedZip, *r)
	case *db.ZipPipelineState:
		s.pipelineState = append(s.pipelineState, *r)
	}
	return nil
}

func (s *fakeStore) Update(args ...any) (int64, error) {
	switch r := args[0].(type) {
	case *db.ZipAggregateStaging:
		s.updatedZip = append(s.updatedZip, *r)
	case *db.ZipPipelineState:
		for i := range s.pipelineState {
			if s.pipelineState[i].CycleID == r.CycleID {
				s.pipelineState[i] = *r
				return 1, nil
			}
		}
		s.pipelineState = append(s.pipelineState, *r)
	}
	return 1, nil
}

func (s *fakeStore) Delete(args ...any) (int64, error)                  { return 1, nil }
func (s *fakeStore) Exec(query string, args ...any) (sql.Result, error) { return nil, nil }

var _ db.Interface = (*fakeStore)(nil)

func seedPopulation(store *fakeStore, clock *mock.Clock, zips []string) {
	for _, zip := range zips {
		store.population = append(store.population, db.PopulationCacheEntry{
			RegionType: string(db.RegionZip),
			RegionCode: zip,
			Value:      15000,
			FetchedAt:  clock.Now(),
		})
	}
}

func zipCodes(n int) []string {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = fmt.Sprintf("%05d", i)
	}
	return codes
}

func keysFor(zips []string, state string) []aggregate.ZipKey {
	keys := make([]aggregate.ZipKey, len(zips))
	for i, z := range zips {
		keys[i] = aggregate.ZipKey{Zip: z, State: state}
	}
	return keys
}

func TestPipelineCompletesInOneRunWhenUnderChunkSize(t *testing.T) {
	clock := mock.NewClock()
	zips := zipCodes(3)
	store := &fakeStore{}
	seedPopulation(store, clock, zips)

	ref := reference.NewCache(store, "test-api-key")
	ref.Now = clock.Now
	zipAgg := aggregate.NewZipAggregator(store, ref)
	zipAgg.Now = clock.Now

	p := zippipeline.NewPipeline(store, zipAgg)
	p.Now = clock.Now
	p.Sleep = func(time.Duration) {}

	if err := p.Start("cycle-1", keysFor(zips, "CA")); err != nil {
		t.Fatal(err)
	}

	status, err := p.Run(context.Background(), "cycle-1", clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !status.Complete {
		t.Fatalf("expected complete status, got %+v", status)
	}
	assert.DeepEqual(t, "completion", status.Completion, 1.0)
	if len(store.insertedZip) != 3 {
		t.Fatalf("expected 3 zip rows inserted, got %d", len(store.insertedZip))
	}
}

func TestPipelineRunOnEmptyCycleIsComplete(t *testing.T) {
	store := &fakeStore{}
	ref := reference.NewCache(store, "test-api-key")
	zipAgg := aggregate.NewZipAggregator(store, ref)
	p := zippipeline.NewPipeline(store, zipAgg)

	status, err := p.Run(context.Background(), "unknown-cycle", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !status.Complete {
		t.Fatalf("expected a cycle with no persisted state to report complete, got %+v", status)
	}
}

// TestPipelineResumesAcrossRunsWhenDeadlinePassesMidway reproduces spec.md
// §8 scenario 5: 250 affected ZIPs, a chunk size of 100, and a deadline that
// only allows two chunks on the first tick. The first Run call must yield
// partial(200/250) and leave the 50 remaining ZIPs for the next tick to pick
// up from the persisted residual set.
func TestPipelineResumesAcrossRunsWhenDeadlinePassesMidway(t *testing.T) {
	clock := mock.NewClock()
	zips := zipCodes(250)
	store := &fakeStore{}
	seedPopulation(store, clock, zips)

	ref := reference.NewCache(store, "test-api-key")
	ref.Now = clock.Now
	zipAgg := aggregate.NewZipAggregator(store, ref)
	zipAgg.Now = clock.Now

	p := zippipeline.NewPipeline(store, zipAgg)
	p.Sleep = func(time.Duration) {}

	if err := p.Start("cycle-2", keysFor(zips, "CA")); err != nil {
		t.Fatal(err)
	}

	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	p.Now = func() time.Time {
		tick++
		return epoch.Add(time.Duration(tick) * time.Minute)
	}
	deadline := epoch.Add(4*time.Minute + 30*time.Second)

	status, err := p.Run(context.Background(), "cycle-2", deadline)
	if err != nil {
		t.Fatal(err)
	}
	if status.Complete {
		t.Fatalf("expected a partial status when the deadline cuts the run short, got %+v", status)
	}
	assert.DeepEqual(t, "first-run completion", status.Completion, 0.8)
	if len(store.insertedZip) != 200 {
		t.Fatalf("expected 200 zip rows inserted after the first run, got %d", len(store.insertedZip))
	}

	// Second tick: fresh clock, no deadline pressure, same cycle ID. It must
	// resume from the persisted residual rather than starting over.
	p.Now = func() time.Time { return epoch.Add(time.Hour) }
	status, err = p.Run(context.Background(), "cycle-2", epoch.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !status.Complete {
		t.Fatalf("expected the second run to finish draining the residual set, got %+v", status)
	}
	if len(store.insertedZip) != 250 {
		t.Fatalf("expected all 250 zip rows inserted after the second run, got %d", len(store.insertedZip))
	}
}
