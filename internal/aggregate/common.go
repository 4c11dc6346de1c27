// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package aggregate implements the three aggregation passes of spec.md
// §4.E: state, county, and ZIP. All three share the grouping/counting/
// scoring logic in this file; state.go, county.go and zip.go each add the
// region-selection and DB-reconciliation specifics for their resolution.
package aggregate

import (
	"time"

	. "github.com/majewsky/gg/option"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/scoring"
	"github.com/sapcc/ev-readiness/internal/station"
)

// zoom ranges tag which display tier consumes a row; spec.md leaves the
// exact values to the aggregation engine.
const (
	zoomRangeState  = "0-5"
	zoomRangeCounty = "5-9"
	zoomRangeZip    = "9-14"
)

// fallback population estimate range of spec.md §3, used when A reports no
// live or cached value at all (practically unreachable: A always returns an
// estimate on terminal failure, never an error).
const fallbackPopulationMin = 5000

// RegionStats holds the computed fields shared by StateAggregate,
// CountyAggregate and ZipAggregate (db.regionAggregateFields, mirrored here
// because that type is unexported outside internal/db). state.go, county.go
// and zip.go each copy this into their own aggregate row type.
type RegionStats struct {
	CenterLatitude   float64
	CenterLongitude  float64
	Population       int64
	PopulationIsEst  bool
	CountTotal       int
	CountDCFast      int
	CountLevel2      int
	CountLevel1      int
	ConnTesla        int
	ConnCCS          int
	ConnJ1772        int
	ConnChademo      int
	PortsTesla       int
	PortsCCS         int
	PortsJ1772       int
	PortsChademo     int
	PortsTotal       int
	NeedScore        int
	ReadinessScore   int
	OpportunityScore int
	HasVMT           bool
	VMTPerCapita     float64
	ZoomRange        string
	UpdatedAt        time.Time
}

// populationLookup abstracts the three ways a region resolves its
// population figure (by state code, county FIPS, or batched ZIP code),
// letting computeRegionStats stay resolution-agnostic.
type populationLookup func() (value int64, isEstimate bool, err error)

// vmtLookup resolves a region's VMT-per-capita figure given the region's
// resolved population (the VMT cache stores annual VMT; converting to
// per-capita needs the population computeRegionStats has just resolved).
// County and ZIP regions have one (keyed by county FIPS); state regions do
// not track VMT at all (spec.md's VMT cache is keyed by county FIPS only).
type vmtLookup func(population int64) (Option[float64], error)

// computeRegionStats implements the counting/weighting/scoring rules shared
// by all three of spec.md §4.E's aggregators, given the member stations of
// one region.
func computeRegionStats(stations []db.Station, zoomRange string, popLookup populationLookup, vmt vmtLookup, portWeighted bool, now time.Time) (RegionStats, error) {
	var stats RegionStats
	stats.ZoomRange = zoomRange
	stats.UpdatedAt = now

	var sumLat, sumLon float64
	for _, s := range stations {
		sumLat += s.Latitude
		sumLon += s.Longitude
		stats.CountTotal++

		switch s.Level {
		case db.LevelDCFast:
			stats.CountDCFast++
		case db.LevelL2:
			stats.CountLevel2++
		case db.LevelL1:
			stats.CountLevel1++
		}

		hasTesla, hasCCS, hasJ1772, hasChademo := false, false, false, false
		for _, c := range connectorsFor(s) {
			switch c {
			case db.ConnectorTesla:
				hasTesla = true
			case db.ConnectorJ1772Combo:
				hasCCS = true
			case db.ConnectorJ1772:
				hasJ1772 = true
			case db.ConnectorChademo:
				hasChademo = true
			}
		}
		if hasTesla {
			stats.ConnTesla++
			stats.PortsTesla += s.NumPorts
		}
		if hasCCS {
			stats.ConnCCS++
			stats.PortsCCS += s.NumPorts
		}
		if hasJ1772 {
			stats.ConnJ1772++
			stats.PortsJ1772 += s.NumPorts
		}
		if hasChademo {
			stats.ConnChademo++
			stats.PortsChademo += s.NumPorts
		}
		stats.PortsTotal += s.NumPorts
	}

	if stats.CountTotal > 0 {
		stats.CenterLatitude = sumLat / float64(stats.CountTotal)
		stats.CenterLongitude = sumLon / float64(stats.CountTotal)
	}

	population, isEstimate, err := popLookup()
	if err != nil {
		return RegionStats{}, err
	}
	if population <= 0 {
		population = fallbackPopulationMin
		isEstimate = true
	}
	stats.Population = population
	stats.PopulationIsEst = isEstimate

	vmtValue, err := vmt(population)
	if err != nil {
		return RegionStats{}, err
	}
	if v, ok := vmtValue.Unpack(); ok {
		stats.HasVMT = true
		stats.VMTPerCapita = v
	}

	weighted := 1.0*float64(stats.CountDCFast) + 0.7*float64(stats.CountLevel2) + 0.3*float64(stats.CountLevel1)

	stats.NeedScore = scoring.Need(population, int64(stats.CountTotal))
	stats.ReadinessScore = scoring.Readiness(scoring.ReadinessInput{
		Weighted:     weighted,
		Population:   population,
		VMT:          vmtValue,
		PortWeighted: portWeighted,
	})
	stats.OpportunityScore = scoring.Opportunity(scoring.OpportunityInput{
		Total:      float64(stats.CountTotal),
		Population: population,
		VMT:        vmtValue,
	})

	return stats, nil
}

func connectorsFor(s db.Station) []db.Connector {
	return station.ConnectorsFromCSV(s.ConnectorsCSV)
}

// insertBatchSize is spec.md §4.E's insertion-policy batch size, shared by
// all three aggregators.
const insertBatchSize = 500

// chunk splits items into groups of at most size, implementing the
// batches-of-500 insertion policy of spec.md §4.E.
func chunk[T any](items []T, size int) [][]T {
	var result [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		result = append(result, items[start:end])
	}
	return result
}
