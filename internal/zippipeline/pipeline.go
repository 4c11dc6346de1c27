// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package zippipeline implements spec.md §4.G's resumable ZIP-level
// sub-pipeline: the residual affectedZips set for a cycle is persisted in
// zip_pipeline_state and worked off in lexicographic chunks of 100 across as
// many Run calls (and process restarts) as it takes to drain.
package zippipeline

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ev-readiness/internal/aggregate"
	"github.com/sapcc/ev-readiness/internal/db"
)

const (
	chunkSize       = 100
	interChunkPause = 200 * time.Millisecond
)

// Status is G's yield of spec.md §4.G: either complete, or partial with the
// fraction of the original affectedZips set that has been recomputed so far.
type Status struct {
	Complete   bool
	Completion float64
}

// Pipeline processes the residual ZIP set of one cycle. LogError and Sleep
// are usually logg.Error and time.Sleep, replaced in unit tests.
type Pipeline struct {
	Store      db.Interface
	Aggregator *aggregate.ZipAggregator
	LogError   func(msg string, args ...any)
	Sleep      func(time.Duration)
	Now        func() time.Time
}

// NewPipeline builds a Pipeline writing to store via aggregator.
func NewPipeline(store db.Interface, aggregator *aggregate.ZipAggregator) *Pipeline {
	return &Pipeline{
		Store:      store,
		Aggregator: aggregator,
		LogError:   logg.Error,
		Sleep:      time.Sleep,
		Now:        time.Now,
	}
}

// Start persists the initial residual set for a new cycle: spec.md §4.G's
// "the affectedZips set from D, persisted (with the cycle id) at cycle
// start." It inserts a new row; calling Start again for a cycleID that
// already has a row fails on the cycle_id primary key instead of replacing
// the residual set (cycle IDs are unique per spec.md §4.H).
func (p *Pipeline) Start(cycleID string, affectedZips []aggregate.ZipKey) error {
	now := p.Now()
	state := db.ZipPipelineState{
		CycleID:         cycleID,
		ResidualZipsCSV: encodeResidual(affectedZips),
		TotalZips:       len(affectedZips),
		StartedAt:       now,
		UpdatedAt:       now,
	}
	return p.Store.Insert(&state)
}

// Run drains as much of cycleID's persisted residual set as fits before
// deadline, in lexicographic chunks of 100, pausing 200ms between chunks. It
// is safe to call repeatedly (including across process restarts): the
// residual set and total are read back from zip_pipeline_state each time.
func (p *Pipeline) Run(ctx context.Context, cycleID string, deadline time.Time) (Status, error) {
	state, err := p.loadState(cycleID)
	if err != nil {
		return Status{}, err
	}
	if state == nil || state.TotalZips == 0 {
		return Status{Complete: true, Completion: 1}, nil
	}

	remaining := decodeResidual(state.ResidualZipsCSV)
	sortKeys(remaining)
	total := state.TotalZips

	i := 0
	for i < len(remaining) {
		if ctx.Err() != nil || !p.Now().Before(deadline) {
			break
		}

		end := i + chunkSize
		if end > len(remaining) {
			end = len(remaining)
		}
		batch := remaining[i:end]

		if _, aggErr := p.Aggregator.Aggregate(ctx, batch); aggErr != nil {
			p.LogError("zip sub-pipeline: chunk %v failed, will retry next run: %s", batch, aggErr.Error())
			i = end
			continue
		}

		remaining = append(remaining[:i], remaining[end:]...)
		if err := p.saveResidual(cycleID, remaining, total, state.StartedAt); err != nil {
			return Status{}, err
		}

		if len(remaining) == 0 {
			break
		}
		p.Sleep(interChunkPause)
	}

	completion := float64(total-len(remaining)) / float64(total)
	if len(remaining) == 0 {
		return Status{Complete: true, Completion: 1}, nil
	}
	return Status{Complete: false, Completion: completion}, nil
}

func (p *Pipeline) loadState(cycleID string) (*db.ZipPipelineState, error) {
	var rows []db.ZipPipelineState
	whereClause, args := db.BuildSimpleWhereClause(map[string]any{"cycle_id": cycleID}, 0)
	if _, err := p.Store.Select(&rows, db.SimplifyWhitespace(
		`SELECT * FROM zip_pipeline_state WHERE `+whereClause), args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (p *Pipeline) saveResidual(cycleID string, remaining []aggregate.ZipKey, total int, startedAt time.Time) error {
	state := db.ZipPipelineState{
		CycleID:         cycleID,
		ResidualZipsCSV: encodeResidual(remaining),
		TotalZips:       total,
		StartedAt:       startedAt,
		UpdatedAt:       p.Now(),
	}
	_, err := p.Store.Update(&state)
	return err
}

func sortKeys(keys []aggregate.ZipKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Zip != keys[j].Zip {
			return keys[i].Zip < keys[j].Zip
		}
		return keys[i].State < keys[j].State
	})
}

// encodeResidual serializes a ZipKey set into zip_pipeline_state's single
// residual_zips column. The column is spec'd as "comma-joined, lexically
// sorted" ZIPs; since a ZIP can in principle repeat across states, each
// entry is widened to "zip:state" to keep the set lossless, sorted the same
// way sortKeys orders the working set.
func encodeResidual(keys []aggregate.ZipKey) string {
	sorted := make([]aggregate.ZipKey, len(keys))
	copy(sorted, keys)
	sortKeys(sorted)
	parts := make([]string, len(sorted))
	for i, k := range sorted {
		parts[i] = k.Zip + ":" + k.State
	}
	return strings.Join(parts, ",")
}

func decodeResidual(csv string) []aggregate.ZipKey {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	keys := make([]aggregate.ZipKey, 0, len(parts))
	for _, part := range parts {
		zip, state, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		keys = append(keys, aggregate.ZipKey{Zip: zip, State: state})
	}
	return keys
}

// String renders a Status for logging, e.g. in
// internal/promotion's cycle-outcome reporting.
func (s Status) String() string {
	if s.Complete {
		return "complete"
	}
	return "partial(" + strconv.FormatFloat(s.Completion, 'f', 2, 64) + ")"
}
