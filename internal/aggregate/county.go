// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package aggregate

import (
	"context"
	"time"

	. "github.com/majewsky/gg/option"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/geo"
	"github.com/sapcc/ev-readiness/internal/reference"
)

// countyBBoxBuffer is spec.md §4.E's "bbox plus a 0.05° buffer" county
// candidate prefilter.
const countyBBoxBuffer = 0.05

// CountyAggregator implements spec.md §4.E's county-level pass: bbox-with-
// buffer prefiltering followed by point-in-polygon membership against the
// fixed county topology fixture (internal/geo), keyed by FIPS to
// disambiguate same-name counties across states.
type CountyAggregator struct {
	Store     db.Interface
	Reference *reference.Cache
	Now       func() time.Time
}

// NewCountyAggregator builds a CountyAggregator against store and ref.
func NewCountyAggregator(store db.Interface, ref *reference.Cache) *CountyAggregator {
	return &CountyAggregator{Store: store, Reference: ref, Now: time.Now}
}

// Aggregate recomputes the county_aggregates_staging rows for the given
// county FIPS codes, or every fixture county when regions is nil.
func (a *CountyAggregator) Aggregate(ctx context.Context, regions []string) (int, error) {
	wantedFIPS := regions
	if wantedFIPS == nil {
		for _, c := range geo.Counties {
			wantedFIPS = append(wantedFIPS, c.FIPS)
		}
	}
	if len(wantedFIPS) == 0 {
		return 0, nil
	}

	states := make(map[string]bool)
	counties := make(map[string]geo.County, len(wantedFIPS))
	for _, fips := range wantedFIPS {
		c, ok := geo.CountyByFIPS(fips)
		if !ok {
			continue
		}
		counties[fips] = c
		states[c.State] = true
	}

	stateList := make([]string, 0, len(states))
	for s := range states {
		stateList = append(stateList, s)
	}

	var stationsInStates []db.Station
	if len(stateList) > 0 {
		whereClause, args := db.BuildSimpleWhereClause(map[string]any{"state": stateList}, 0)
		if _, err := a.Store.Select(&stationsInStates, db.SimplifyWhitespace(
			`SELECT * FROM stations_staging WHERE `+whereClause), args...); err != nil {
			return 0, err
		}
	}

	var existing []db.CountyAggregateStaging
	whereClause, args := db.BuildSimpleWhereClause(map[string]any{"county_fips": wantedFIPS}, 0)
	if _, err := a.Store.Select(&existing, db.SimplifyWhitespace(
		`SELECT * FROM county_aggregates_staging WHERE `+whereClause), args...); err != nil {
		return 0, err
	}
	existingByFIPS := make(map[string]db.CountyAggregateStaging, len(existing))
	for _, r := range existing {
		existingByFIPS[r.CountyFIPS] = r
	}

	now := a.Now()
	total := 0
	for _, batch := range chunk(wantedFIPS, insertBatchSize) {
		var existingInBatch []db.CountyAggregateStaging
		for _, fips := range batch {
			if r, ok := existingByFIPS[fips]; ok {
				existingInBatch = append(existingInBatch, r)
			}
		}

		update := db.SetUpdate[db.CountyAggregateStaging, string]{
			ExistingRecords: existingInBatch,
			WantedKeys:      batch,
			KeyForRecord:    func(r db.CountyAggregateStaging) string { return r.CountyFIPS },
			Create: func(fips string) (db.CountyAggregateStaging, error) {
				county := counties[fips]
				return db.CountyAggregateStaging{State: county.State, CountyName: county.Name, CountyFIPS: fips}, nil
			},
			Update: func(r *db.CountyAggregateStaging) error {
				county, ok := counties[r.CountyFIPS]
				if !ok {
					return nil
				}
				members := stationsInCounty(stationsInStates, county)

				stats, err := computeRegionStats(members, zoomRangeCounty,
					func() (int64, bool, error) {
						value, source, err := a.Reference.Population(ctx, db.RegionCounty, r.CountyFIPS, r.CountyName)
						return value, source == reference.SourceEstimate, err
					},
					func(population int64) (Option[float64], error) {
						return a.Reference.VMTPerCapita(r.CountyFIPS, population)
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

		result, err := update.Execute(a.Store)
		if err != nil {
			return total, err
		}
		total += len(result)
	}
	return total, nil
}

// stationsInCounty applies spec.md §4.E's candidate-selection rule: same
// state, then bbox-plus-buffer, then exact point-in-polygon.
func stationsInCounty(stations []db.Station, county geo.County) []db.Station {
	buffered := county.Box.Buffered(countyBBoxBuffer)
	var result []db.Station
	for _, s := range stations {
		if s.State != county.State {
			continue
		}
		p := geo.Point{Lat: s.Latitude, Lon: s.Longitude}
		if !buffered.Contains(p) {
			continue
		}
		if !geo.PointInPolygon(p, county.Polygon) {
			continue
		}
		result = append(result, s)
	}
	return result
}
