// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the ingestion driver of spec.md §4.C: pages the
// upstream station registry, normalizes each record through
// internal/station, and bulk-loads the canonical records into the staging
// station table.
package ingest

import (
	"context"
	"net/http"
	"time"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ev-readiness/internal/cyclestate"
	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/station"
	"github.com/sapcc/ev-readiness/internal/util"
)

// chunkSize and interChunkPause implement spec.md §4.C's backpressure
// policy, grounded on the interval-sleep idiom of
// internal/collector/scrape.go.
const (
	chunkSize       = 1000
	interChunkPause = 100 * time.Millisecond
)

// Driver implements Ingest() -> (insertedCount, rejectedCount) of spec.md
// §4.C.
type Driver struct {
	Store      db.Interface
	HTTPClient *http.Client
	APIKey     string

	// Now is usually time.Now, but can be replaced in tests.
	Now func() time.Time
	// Sleep is usually time.Sleep, but can be replaced in tests to avoid
	// slowing down the suite.
	Sleep func(time.Duration)

	// FetchVMT, when set, is called once per Ingest to refresh vmt_cache
	// wholesale from the upstream VMT dataset (internal/reference.Cache's
	// RefreshVMT, wired in both cmd/ binaries' main.go). It is nil by
	// default so tests that construct a Driver directly never make an
	// outbound VMT call.
	FetchVMT func(ctx context.Context) (int, error)
}

// NewDriver builds a Driver with a logging-instrumented HTTP client.
func NewDriver(store db.Interface, apiKey string) *Driver {
	return &Driver{
		Store: store,
		HTTPClient: &http.Client{
			Transport: util.AddLoggingRoundTripper(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		APIKey: apiKey,
		Now:    time.Now,
		Sleep:  time.Sleep,
	}
}

// Ingest implements spec.md §4.C. The staging station table is truncated
// before the first chunk, making a restart after a partial failure
// idempotent. A chunk error aborts the cycle with `fails-with:
// upstream-error`; a chunk with zero surviving rows after normalization is
// not an error.
func (d *Driver) Ingest(ctx context.Context, cycleID string) (inserted, rejected int, taggedErr *cyclestate.TaggedError) {
	raws, err := d.fetchAll(ctx)
	if err != nil {
		return 0, 0, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, err.Error())
	}

	if d.FetchVMT != nil {
		if n, err := d.FetchVMT(ctx); err != nil {
			logg.Info("VMT dataset refresh failed, scoring proceeds on whatever is already cached: %s", err.Error())
		} else {
			logg.Info("refreshed VMT cache for %d counties", n)
		}
	}

	if err := d.truncateStaging(); err != nil {
		return 0, 0, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "could not truncate staging: "+err.Error())
	}

	nextID := int64(1)
	for start := 0; start < len(raws); start += chunkSize {
		end := start + chunkSize
		if end > len(raws) {
			end = len(raws)
		}
		chunk := raws[start:end]

		rows := make([]db.StationStaging, 0, len(chunk))
		for _, raw := range chunk {
			normalized, rej := station.Normalize(raw)
			if rej != nil {
				rejected++
				logg.Info("rejected station %s: %s", rej.ExternalID, rej.Reason)
				continue
			}
			rows = append(rows, station.ToDBStaging(db.StationID(nextID), normalized, station.Network(raw), d.Now()))
			nextID++
		}

		if len(rows) > 0 {
			if err := d.insertChunk(rows); err != nil {
				return inserted, rejected, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "chunk insert failed: "+err.Error())
			}
			inserted += len(rows)
		}

		if end < len(raws) {
			d.Sleep(interChunkPause)
		}
	}

	return inserted, rejected, nil
}

func (d *Driver) truncateStaging() error {
	_, err := d.Store.Exec("TRUNCATE TABLE stations_staging")
	return err
}

func (d *Driver) insertChunk(rows []db.StationStaging) error {
	for i := range rows {
		if err := d.Store.Insert(&rows[i]); err != nil {
			return err
		}
	}
	return nil
}
