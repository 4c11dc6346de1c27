// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package aggregate

import (
	"context"
	"strconv"
	"time"

	. "github.com/majewsky/gg/option"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/geo"
	"github.com/sapcc/ev-readiness/internal/reference"
)

// ZipKey identifies a ZIP aggregate region: a 5-digit ZIP disambiguated by
// state, matching internal/changedetect.ZipKey's shape.
type ZipKey struct {
	Zip   string
	State string
}

// ZipAggregator implements spec.md §4.E's ZIP-level pass: grouping staging
// stations by cleaned 5-digit ZIP within state, with an arithmetic-mean
// centroid and batched (≤50) population lookups. internal/zippipeline calls
// this one chunk of ZipKeys at a time to make the pass resumable across
// scheduler ticks (spec.md §4.G).
type ZipAggregator struct {
	Store     db.Interface
	Reference *reference.Cache
	Now       func() time.Time
}

// NewZipAggregator builds a ZipAggregator against store and ref.
func NewZipAggregator(store db.Interface, ref *reference.Cache) *ZipAggregator {
	return &ZipAggregator{Store: store, Reference: ref, Now: time.Now}
}

// Aggregate recomputes the zip_aggregates_staging rows for the given ZIP
// keys. It is safe to call repeatedly with disjoint slices of a larger
// residual set (spec.md §4.G's chunking).
func (a *ZipAggregator) Aggregate(ctx context.Context, keys []ZipKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	states := make(map[string]bool, len(keys))
	zipCodes := make([]string, 0, len(keys))
	for _, k := range keys {
		states[k.State] = true
		zipCodes = append(zipCodes, k.Zip)
	}
	stateList := make([]string, 0, len(states))
	for s := range states {
		stateList = append(stateList, s)
	}

	var stationsInStates []db.Station
	whereClause, args := db.BuildSimpleWhereClause(map[string]any{"state": stateList}, 0)
	if _, err := a.Store.Select(&stationsInStates, db.SimplifyWhitespace(
		`SELECT * FROM stations_staging WHERE `+whereClause), args...); err != nil {
		return 0, err
	}
	byKey := make(map[ZipKey][]db.Station)
	for _, s := range stationsInStates {
		if s.Zip == "" {
			continue
		}
		k := ZipKey{Zip: s.Zip, State: s.State}
		byKey[k] = append(byKey[k], s)
	}

	populations, sources, err := a.Reference.PopulationBatch(ctx, zipCodes)
	if err != nil {
		return 0, err
	}

	var existing []db.ZipAggregateStaging
	existingWhere, existingArgs := buildZipKeyWhereClause(keys)
	if _, err := a.Store.Select(&existing, db.SimplifyWhitespace(
		`SELECT * FROM zip_aggregates_staging WHERE `+existingWhere), existingArgs...); err != nil {
		return 0, err
	}
	existingByKey := make(map[ZipKey]db.ZipAggregateStaging, len(existing))
	for _, r := range existing {
		existingByKey[ZipKey{Zip: r.ZipCode, State: r.State}] = r
	}

	now := a.Now()
	total := 0
	for _, batch := range chunk(keys, insertBatchSize) {
		var existingInBatch []db.ZipAggregateStaging
		for _, k := range batch {
			if r, ok := existingByKey[k]; ok {
				existingInBatch = append(existingInBatch, r)
			}
		}

		update := db.SetUpdate[db.ZipAggregateStaging, ZipKey]{
			ExistingRecords: existingInBatch,
			WantedKeys:      batch,
			KeyForRecord:    func(r db.ZipAggregateStaging) ZipKey { return ZipKey{Zip: r.ZipCode, State: r.State} },
			Create: func(k ZipKey) (db.ZipAggregateStaging, error) {
				return db.ZipAggregateStaging{ZipCode: k.Zip, State: k.State}, nil
			},
			Update: func(r *db.ZipAggregateStaging) error {
				k := ZipKey{Zip: r.ZipCode, State: r.State}
				members := byKey[k]

				fips, _ := geo.CountyFIPSForZip(k.Zip)
				stats, err := computeRegionStats(members, zoomRangeZip,
					func() (int64, bool, error) {
						return populations[k.Zip], sources[k.Zip] == reference.SourceEstimate, nil
					},
					func(population int64) (Option[float64], error) {
						if fips == "" {
							return None[float64](), nil
						}
						return a.Reference.VMTPerCapita(fips, population)
					},
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

		result, execErr := update.Execute(a.Store)
		if execErr != nil {
			return total, execErr
		}
		total += len(result)
	}
	return total, nil
}

// buildZipKeyWhereClause constructs a WHERE clause matching any of keys
// against (zip_code, state_name), since BuildSimpleWhereClause only handles
// flat field-equality/IN conjunctions, not a list of composite-key pairs.
func buildZipKeyWhereClause(keys []ZipKey) (string, []any) {
	if len(keys) == 0 {
		return "FALSE", nil
	}
	clause := ""
	args := make([]any, 0, len(keys)*2)
	for i, k := range keys {
		if i > 0 {
			clause += " OR "
		}
		clause += "(zip_code = $" + strconv.Itoa(len(args)+1) + " AND state_name = $" + strconv.Itoa(len(args)+2) + ")"
		args = append(args, k.Zip, k.State)
	}
	return clause, args
}
