// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package aggregate

import (
	"context"
	"time"

	. "github.com/majewsky/gg/option"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/reference"
)

// StateAggregator implements spec.md §4.E's state-level pass: a single full
// grouping of stations_staging by state, always regenerating all 50+DC rows
// when regions is nil.
type StateAggregator struct {
	Store     db.Interface
	Reference *reference.Cache
	Now       func() time.Time
}

// NewStateAggregator builds a StateAggregator against store and ref.
func NewStateAggregator(store db.Interface, ref *reference.Cache) *StateAggregator {
	return &StateAggregator{Store: store, Reference: ref, Now: time.Now}
}

// Aggregate recomputes the state_aggregates_staging rows for the given state
// codes, or every state plus DC when regions is nil. It returns the number
// of rows written.
func (a *StateAggregator) Aggregate(ctx context.Context, regions []string) (int, error) {
	wantedStates := regions
	if wantedStates == nil {
		wantedStates = reference.KnownStateCodes()
	}
	if len(wantedStates) == 0 {
		return 0, nil
	}

	var allStations []db.Station
	if _, err := a.Store.Select(&allStations, db.SimplifyWhitespace(`SELECT * FROM stations_staging`)); err != nil {
		return 0, err
	}
	byState := make(map[string][]db.Station)
	for _, s := range allStations {
		byState[s.State] = append(byState[s.State], s)
	}

	var existing []db.StateAggregateStaging
	whereClause, args := db.BuildSimpleWhereClause(map[string]any{"state_name": wantedStates}, 0)
	if _, err := a.Store.Select(&existing, db.SimplifyWhitespace(
		`SELECT * FROM state_aggregates_staging WHERE `+whereClause), args...); err != nil {
		return 0, err
	}
	existingByState := make(map[string]db.StateAggregateStaging, len(existing))
	for _, r := range existing {
		existingByState[r.State] = r
	}

	now := a.Now()
	total := 0
	for _, batch := range chunk(wantedStates, insertBatchSize) {
		var existingInBatch []db.StateAggregateStaging
		for _, state := range batch {
			if r, ok := existingByState[state]; ok {
				existingInBatch = append(existingInBatch, r)
			}
		}

		update := db.SetUpdate[db.StateAggregateStaging, string]{
			ExistingRecords: existingInBatch,
			WantedKeys:      batch,
			KeyForRecord:    func(r db.StateAggregateStaging) string { return r.State },
			Create: func(state string) (db.StateAggregateStaging, error) {
				return db.StateAggregateStaging{State: state}, nil
			},
			Update: func(r *db.StateAggregateStaging) error {
				stats, err := computeRegionStats(byState[r.State], zoomRangeState,
					func() (int64, bool, error) {
						value, source, err := a.Reference.Population(ctx, db.RegionState, r.State, r.State)
						return value, source == reference.SourceEstimate, err
					},
					func(int64) (Option[float64], error) { return None[float64](), nil },
					false, now)
				if err != nil {
					return err
				}
				r.CenterLatitude = stats.CenterLatitude
				r.CenterLongitude = stats.CenterLongitude
				r.Population = stats.Population
				r.PopulationIsEst = stats.PopulationIsEst
				r.CountTotal = stats.CountTotal
				r.CountDCFast = stats.CountDCFast
				r.CountLevel2 = stats.CountLevel2
				r.CountLevel1 = stats.CountLevel1
				r.ConnTesla = stats.ConnTesla
				r.ConnCCS = stats.ConnCCS
				r.ConnJ1772 = stats.ConnJ1772
				r.ConnChademo = stats.ConnChademo
				r.PortsTesla = stats.PortsTesla
				r.PortsCCS = stats.PortsCCS
				r.PortsJ1772 = stats.PortsJ1772
				r.PortsChademo = stats.PortsChademo
				r.PortsTotal = stats.PortsTotal
				r.NeedScore = stats.NeedScore
				r.ReadinessScore = stats.ReadinessScore
				r.OpportunityScore = stats.OpportunityScore
				r.HasVMT = stats.HasVMT
				r.VMTPerCapita = stats.VMTPerCapita
				r.ZoomRange = stats.ZoomRange
				r.UpdatedAt = stats.UpdatedAt
				return nil
			},
		}

		result, err := update.Execute(a.Store)
		if err != nil {
			return total, err
		}
		total += len(result)
	}
	return total, nil
}
