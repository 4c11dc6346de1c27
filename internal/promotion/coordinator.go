// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package promotion implements the refresh-cycle state machine of spec.md
// §4.H: Coordinator.RunCycle drives ingest -> detect -> aggregate(states) ->
// aggregate(counties) -> aggregate(zips) -> promote, holding the §5 named
// lock for the cycle's duration and writing one change_log row per outcome.
package promotion

import (
	"context"
	"time"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/gofrs/uuid/v5"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/ev-readiness/internal/aggregate"
	"github.com/sapcc/ev-readiness/internal/auditlog"
	"github.com/sapcc/ev-readiness/internal/changedetect"
	"github.com/sapcc/ev-readiness/internal/cyclestate"
	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/ingest"
	"github.com/sapcc/ev-readiness/internal/zippipeline"
)

// cycleDeadlineBudget is spec.md §4's "5-minute ceiling enforced by the
// scheduler" -- the time a single RunCycle call is allowed to spend inside
// the ZIP sub-pipeline before yielding a partial completion.
const cycleDeadlineBudget = 5 * time.Minute

// Coordinator ties the per-package drivers together into the state machine
// of spec.md §4.H. Now and NewCycleID are usually time.Now and a UUIDv4
// generator, replaced in unit tests.
type Coordinator struct {
	DBMap            *gorp.DbMap
	Store            db.Interface
	Ingest           *ingest.Driver
	StateAggregator  *aggregate.StateAggregator
	CountyAggregator *aggregate.CountyAggregator
	ZipPipeline      *zippipeline.Pipeline
	AuditLog         *auditlog.Recorder

	Now        func() time.Time
	NewCycleID func() string
}

// NewCoordinator wires a Coordinator from its component drivers.
func NewCoordinator(dbMap *gorp.DbMap, store db.Interface, ingestDriver *ingest.Driver, stateAgg *aggregate.StateAggregator, countyAgg *aggregate.CountyAggregator, zipPipeline *zippipeline.Pipeline, auditRecorder *auditlog.Recorder) *Coordinator {
	return &Coordinator{
		DBMap:            dbMap,
		Store:            store,
		Ingest:           ingestDriver,
		StateAggregator:  stateAgg,
		CountyAggregator: countyAgg,
		ZipPipeline:      zipPipeline,
		AuditLog:         auditRecorder,
		Now:              time.Now,
		NewCycleID:       func() string { return must.Return(uuid.NewV4()).String() },
	}
}

// RunCycle implements spec.md §4.H. When the §5 lock is already held by an
// earlier, still-partial cycle, this call resumes that cycle's ZIP
// sub-pipeline (identified by the cycle id recorded in the lock) rather
// than starting a new one; see DESIGN.md's "Resuming a held lock" decision for
// why a fresh Ingest/Detect pass is skipped on resumption.
func (c *Coordinator) RunCycle(ctx context.Context) cyclestate.Result {
	start := c.Now()

	lockRow, err := c.loadLockRow()
	if err != nil {
		return c.result("", false, cyclestate.Counts{}, ptr(string(cyclestate.FailureUpstreamError)), "could not read cycle lock: "+err.Error())
	}

	if lockRow != nil && lockRow.LockedBy != "" {
		return c.resumeCycle(ctx, lockRow.LockedBy, start)
	}

	cycleID := c.NewCycleID()
	acquired, err := acquireLock(c.Store, cycleID, start)
	if err != nil {
		return c.result(cycleID, false, cyclestate.Counts{}, ptr(string(cyclestate.FailureUpstreamError)), err.Error())
	}
	if !acquired {
		return c.result("", false, cyclestate.Counts{}, ptr(string(cyclestate.FailureCycleInProgress)), "a refresh cycle is already in progress")
	}

	return c.runFreshCycle(ctx, cycleID, start)
}

func (c *Coordinator) runFreshCycle(ctx context.Context, cycleID string, start time.Time) cyclestate.Result {
	inserted, rejected, tagErr := c.Ingest.Ingest(ctx, cycleID)
	counts := cyclestate.Counts{StationsInserted: inserted, StationsRejected: rejected}
	if tagErr != nil {
		return c.abort(cycleID, counts, tagErr)
	}

	if inserted == 0 {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureInvariantViolation, "ingest inserted no rows"))
	}
	stagingCount, err := db.Count(c.Store, "stations_staging")
	if err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "staging row count: "+err.Error()))
	}
	servingCount, err := db.Count(c.Store, "stations")
	if err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "serving row count: "+err.Error()))
	}
	if float64(stagingCount) <= 0.5*float64(servingCount) {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureInvariantViolation, "staging station count dropped below half of serving"))
	}

	detected, err := changedetect.Detect(c.Store)
	if err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, err.Error()))
	}
	states, counties, zips := detected.Totals()
	counts.AffectedStates, counts.AffectedCounties, counts.AffectedZips = states, counties, zips

	if detected.Empty() {
		return c.finish(cycleID, counts, "no-changes", 1, start)
	}

	stateRows, err := c.StateAggregator.Aggregate(ctx, detected.AffectedStates)
	if err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "state aggregation: "+err.Error()))
	}
	countyRows, err := c.CountyAggregator.Aggregate(ctx, detected.AffectedCounties)
	if err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "county aggregation: "+err.Error()))
	}

	if err := c.ZipPipeline.Start(cycleID, toAggregateZipKeys(detected.AffectedZips)); err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "zip pipeline start: "+err.Error()))
	}

	return c.driveZipPipeline(ctx, cycleID, counts, start, stateRows, countyRows)
}

func (c *Coordinator) resumeCycle(ctx context.Context, cycleID string, start time.Time) cyclestate.Result {
	// The state/county counts from the tick that started this cycle are not
	// re-derived on resumption (zip_pipeline_state persists only the ZIP
	// residual); only the ZIP total is recoverable and is filled in by
	// driveZipPipeline/finish from the pipeline's own status. The staged
	// row counts themselves are still on disk from that tick's aggregation
	// passes, so the Promotable gate below re-derives them from the tables
	// directly instead of from in-memory counts that resumption has lost.
	stateRows, err := db.Count(c.Store, "state_aggregates_staging")
	if err != nil {
		return c.abort(cycleID, cyclestate.Counts{}, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "staged state row count: "+err.Error()))
	}
	countyRows, err := db.Count(c.Store, "county_aggregates_staging")
	if err != nil {
		return c.abort(cycleID, cyclestate.Counts{}, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "staged county row count: "+err.Error()))
	}
	return c.driveZipPipeline(ctx, cycleID, cyclestate.Counts{}, start, stateRows, countyRows)
}

// driveZipPipeline runs (or resumes) the ZIP sub-pipeline and, once it
// reports completion, enforces spec.md §4.H's Aggregating(zips)->Promotable
// guard before calling db.Promote: G must have returned complete AND E's
// state and county aggregation passes must each have staged at least one
// row. Failing either keeps the cycle at Aggregating(zips) rather than
// promoting an empty or partial aggregate set.
func (c *Coordinator) driveZipPipeline(ctx context.Context, cycleID string, counts cyclestate.Counts, start time.Time, stateRows, countyRows int) cyclestate.Result {
	status, err := c.ZipPipeline.Run(ctx, cycleID, start.Add(cycleDeadlineBudget))
	if err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "zip pipeline: "+err.Error()))
	}

	if !status.Complete {
		// Cycle stays at Aggregating(zips): the lock is deliberately NOT
		// released, so the next trigger resumes this same cycle id instead
		// of starting a new one or reporting cycle-in-progress.
		failure := string(cyclestate.FailurePartialCompletion)
		return cyclestate.Result{
			CycleID: cycleID,
			Success: false,
			Partial: true,
			Message: "zip sub-pipeline yielded " + status.String(),
			Counts:  counts,
			Failure: &failure,
		}
	}

	if stateRows <= 0 || countyRows <= 0 {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureInvariantViolation, "state or county aggregation staged no rows"))
	}

	if err := db.Promote(c.DBMap); err != nil {
		return c.abortWithoutRelease(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailurePromotionFailed, err.Error()))
	}

	return c.finish(cycleID, counts, "promoted", status.Completion, start)
}

func (c *Coordinator) finish(cycleID string, counts cyclestate.Counts, outcome string, zipCompletion float64, start time.Time) cyclestate.Result {
	if err := c.AuditLog.Record(cycleID, counts, outcome); err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "change log write: "+err.Error()))
	}
	if err := releaseLock(c.Store, cycleID, c.Now()); err != nil {
		return c.abort(cycleID, counts, cyclestate.NewTaggedError(cycleID, cyclestate.FailureUpstreamError, "lock release: "+err.Error()))
	}
	recordCycleMetrics(c.Now().Sub(start).Seconds(), counts.AffectedStates, counts.AffectedCounties, counts.AffectedZips, zipCompletion, outcome)
	return cyclestate.Result{CycleID: cycleID, Success: true, Message: outcome, Counts: counts}
}

// abort implements spec.md §4.H's "any exception in Ingesting, Aggregating,
// or Promoting transitions directly to Idle without touching serving": the
// lock is released (Idle), a change_log row records the abort, and the
// tagged error's failure kind is surfaced in the result.
func (c *Coordinator) abort(cycleID string, counts cyclestate.Counts, tagErr *cyclestate.TaggedError) cyclestate.Result {
	_ = c.AuditLog.Record(cycleID, counts, "aborted:"+string(tagErr.Kind))
	_ = releaseLock(c.Store, cycleID, c.Now())
	failure := string(tagErr.Kind)
	return cyclestate.Result{CycleID: cycleID, Success: false, Message: tagErr.Message, Counts: counts, Failure: &failure}
}

// abortWithoutRelease is used only for a failed promotion: spec.md says the
// cycle "remains Promotable for the next tick to retry", so unlike abort it
// deliberately keeps the lock held.
func (c *Coordinator) abortWithoutRelease(cycleID string, counts cyclestate.Counts, tagErr *cyclestate.TaggedError) cyclestate.Result {
	_ = c.AuditLog.Record(cycleID, counts, "aborted:"+string(tagErr.Kind))
	failure := string(tagErr.Kind)
	return cyclestate.Result{CycleID: cycleID, Success: false, Message: tagErr.Message, Counts: counts, Failure: &failure}
}

func (c *Coordinator) result(cycleID string, success bool, counts cyclestate.Counts, failure *string, message string) cyclestate.Result {
	return cyclestate.Result{CycleID: cycleID, Success: success, Message: message, Counts: counts, Failure: failure}
}

func (c *Coordinator) loadLockRow() (*db.CycleLock, error) {
	var rows []db.CycleLock
	whereClause, args := db.BuildSimpleWhereClause(map[string]any{"name": lockName}, 0)
	if _, err := c.Store.Select(&rows, db.SimplifyWhitespace(`SELECT * FROM cycle_locks WHERE `+whereClause), args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func toAggregateZipKeys(keys []changedetect.ZipKey) []aggregate.ZipKey {
	result := make([]aggregate.ZipKey, len(keys))
	for i, k := range keys {
		result[i] = aggregate.ZipKey{Zip: k.Zip, State: k.State}
	}
	return result
}

func ptr(s string) *string { return &s }
