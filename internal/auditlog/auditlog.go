// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package auditlog writes the append-only change_log row that spec.md §3
// requires for every completed refresh cycle. It is grounded on
// internal/audit's event-recording shape (one structured record per
// consequential action) but carries none of that package's CADF/commitment
// machinery: a cycle outcome is a handful of scalar counts, not a
// multi-project event graph, so one flat row replaces a rendered
// cadf.Event.
package auditlog

import (
	"time"

	"github.com/sapcc/ev-readiness/internal/cyclestate"
	"github.com/sapcc/ev-readiness/internal/db"
)

// Recorder appends change_log rows. Now is usually time.Now, replaced in
// unit tests.
type Recorder struct {
	Store db.Interface
	Now   func() time.Time
}

// NewRecorder builds a Recorder against store.
func NewRecorder(store db.Interface) *Recorder {
	return &Recorder{Store: store, Now: time.Now}
}

// Record writes one change_log row for a finished cycle, per spec.md §3's
// "Change log" table. outcome is one of "promoted", "no-changes", or
// "aborted:<reason>", per spec.md §4.H.
func (r *Recorder) Record(cycleID string, counts cyclestate.Counts, outcome string) error {
	entry := db.ChangeLogEntry{
		CycleID:          cycleID,
		DetectedAt:       r.Now(),
		AffectedStates:   counts.AffectedStates,
		AffectedCounties: counts.AffectedCounties,
		AffectedZips:     counts.AffectedZips,
		StationsInserted: counts.StationsInserted,
		StationsRejected: counts.StationsRejected,
		Outcome:          outcome,
	}
	return r.Store.Insert(&entry)
}
