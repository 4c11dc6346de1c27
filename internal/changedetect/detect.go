// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package changedetect

import (
	"math"
	"sort"

	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/geo"
	"github.com/sapcc/ev-readiness/internal/station"
)

// coordinateEpsilon is spec.md §4.D's ">0.001°" modification threshold for
// latitude/longitude.
const coordinateEpsilon = 0.001

// Detect implements spec.md §4.D's contract: it loads the staging and
// serving station tables, computes the Added/Removed/Modified classes, and
// derives the affected states/counties/ZIPs, applying the already-current-
// ZIP filter before returning.
func Detect(store db.Interface) (Result, error) {
	staging, err := db.BuildIndexOfDBResult(store, func(s db.Station) db.StationID { return s.ID },
		db.SimplifyWhitespace(`SELECT * FROM stations_staging`))
	if err != nil {
		return Result{}, err
	}
	serving, err := db.BuildIndexOfDBResult(store, func(s db.Station) db.StationID { return s.ID },
		db.SimplifyWhitespace(`SELECT * FROM stations`))
	if err != nil {
		return Result{}, err
	}

	states := make(map[string]bool)
	zips := make(map[ZipKey]bool)
	var changedStations []db.Station

	record := func(s db.Station) {
		if s.State != "" {
			states[s.State] = true
		}
		if s.Zip != "" {
			zips[ZipKey{Zip: s.Zip, State: s.State}] = true
		}
		changedStations = append(changedStations, s)
	}

	for id, stagingStation := range staging {
		servingStation, existsInServing := serving[id]
		if !existsInServing {
			// Added
			record(stagingStation)
			continue
		}
		if stationsDiffer(stagingStation, servingStation) {
			// Modified: both the new and (for a move) the previous
			// region are affected.
			record(stagingStation)
			record(servingStation)
		}
	}
	for id, servingStation := range serving {
		if _, existsInStaging := staging[id]; !existsInStaging {
			// Removed
			record(servingStation)
		}
	}

	filteredZips, err := filterAlreadyCurrentZips(store, staging, zips)
	if err != nil {
		return Result{}, err
	}

	counties, err := affectedCounties(changedStations)
	if err != nil {
		return Result{}, err
	}

	return Result{
		AffectedStates:   sortedKeys(states),
		AffectedCounties: counties,
		AffectedZips:     sortedZipKeys(filteredZips),
	}, nil
}

// stationsDiffer implements spec.md §4.D's Modified predicate.
func stationsDiffer(a, b db.Station) bool {
	if a.Level != b.Level {
		return true
	}
	if a.State != b.State || a.Zip != b.Zip {
		return true
	}
	if math.Abs(a.Latitude-b.Latitude) > coordinateEpsilon || math.Abs(a.Longitude-b.Longitude) > coordinateEpsilon {
		return true
	}
	return !sameConnectorSet(station.ConnectorsFromCSV(a.ConnectorsCSV), station.ConnectorsFromCSV(b.ConnectorsCSV))
}

func sameConnectorSet(a, b []db.Connector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// affectedCounties derives county FIPS codes directly from each changed
// station's coordinates via point-in-polygon, per spec.md §4.D's
// alternative derivation path. This is preferred over joining through
// affectedZips because not every station carries a ZIP, while every
// station carries coordinates; internal/geo's fixture is built so both
// paths agree wherever a ZIP is present (see internal/geo/geo_test.go).
func affectedCounties(stations []db.Station) ([]string, error) {
	counties := make(map[string]bool)
	for _, s := range stations {
		if fips, ok := geo.CountyFIPSForPoint(geo.Point{Lat: s.Latitude, Lon: s.Longitude}); ok {
			counties[fips] = true
		}
	}
	result := make([]string, 0, len(counties))
	for fips := range counties {
		result = append(result, fips)
	}
	sort.Strings(result)
	return result, nil
}

func sortedKeys(m map[string]bool) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

func sortedZipKeys(m map[ZipKey]bool) []ZipKey {
	result := make([]ZipKey, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].State != result[j].State {
			return result[i].State < result[j].State
		}
		return result[i].Zip < result[j].Zip
	})
	return result
}
