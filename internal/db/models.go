/*******************************************************************************
*
* Copyright 2017-2020 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package db

import (
	"time"

	gorp "github.com/go-gorp/gorp/v3"
)

// Station contains a record from the `stations` (or `stations_staging`) table.
// It is the canonical station record of spec.md §3. A Station is never
// mutated in place; a refreshed record with the same ExternalID replaces the
// old one wholesale.
type Station struct {
	ID            StationID `db:"id"`
	ExternalID    string    `db:"external_id"`
	Name          string    `db:"name"`
	Latitude      float64   `db:"latitude"`
	Longitude     float64   `db:"longitude"`
	StreetAddress string    `db:"street_address"`
	State         string    `db:"state"`
	Zip           string    `db:"zip"` // empty string means "absent"
	Level         Level     `db:"level"`
	NumPorts      int       `db:"num_ports"`
	ConnectorsCSV string    `db:"connectors"` // comma-joined Connector values, sorted
	Network       string    `db:"network"`
	CreatedAt     time.Time `db:"created_at"`
}

// StationStaging contains a record from the `stations_staging` table.
// Identical schema to Station; kept as a distinct Go type because gorp maps
// one struct type to exactly one table.
type StationStaging Station

// regionAggregateFields is embedded (by value, field-for-field) in the three
// per-resolution aggregate types below. It is not itself mapped to a table.
type regionAggregateFields struct {
	CenterLatitude   float64   `db:"center_latitude"`
	CenterLongitude  float64   `db:"center_longitude"`
	Population       int64     `db:"population"`
	PopulationIsEst  bool      `db:"population_is_estimated"`
	CountTotal       int       `db:"count_total"`
	CountDCFast      int       `db:"count_dcfast"`
	CountLevel2      int       `db:"count_level2"`
	CountLevel1      int       `db:"count_level1"`
	ConnTesla        int       `db:"conn_tesla"`
	ConnCCS          int       `db:"conn_ccs"`
	ConnJ1772        int       `db:"conn_j1772"`
	ConnChademo      int       `db:"conn_chademo"`
	PortsTesla       int       `db:"ports_tesla"`
	PortsCCS         int       `db:"ports_ccs"`
	PortsJ1772       int       `db:"ports_j1772"`
	PortsChademo     int       `db:"ports_chademo"`
	PortsTotal       int       `db:"ports_total"`
	NeedScore        int       `db:"need_score"`
	ReadinessScore   int       `db:"ev_infrastructure_score"`
	OpportunityScore int       `db:"opportunity_score"`
	HasVMT           bool      `db:"has_vmt"`
	VMTPerCapita     float64   `db:"vmt_per_capita"`
	ZoomRange        string    `db:"zoom_range"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// StateAggregate contains a record from the `state_aggregates` table, keyed
// by two-letter state code.
type StateAggregate struct {
	ID    int64  `db:"id"`
	State string `db:"state_name"`
	regionAggregateFields
}

// StateAggregateStaging is the staging counterpart of StateAggregate.
type StateAggregateStaging StateAggregate

// CountyAggregate contains a record from the `county_aggregates` table,
// keyed by (state, county name), disambiguated by FIPS on name collisions.
type CountyAggregate struct {
	ID         int64  `db:"id"`
	State      string `db:"state_name"`
	CountyName string `db:"county_name"`
	CountyFIPS string `db:"county_fips"`
	regionAggregateFields
}

// CountyAggregateStaging is the staging counterpart of CountyAggregate.
type CountyAggregateStaging CountyAggregate

// ZipAggregate contains a record from the `zip_aggregates` table, keyed by
// (zip_code, state).
type ZipAggregate struct {
	ID      int64  `db:"id"`
	ZipCode string `db:"zip_code"`
	State   string `db:"state_name"`
	regionAggregateFields
}

// ZipAggregateStaging is the staging counterpart of ZipAggregate.
type ZipAggregateStaging ZipAggregate

// PopulationCacheEntry contains a record from the `population_cache` table
// (spec.md §3 "Reference caches", §4.A).
type PopulationCacheEntry struct {
	RegionType  string    `db:"region_type"` // "state" | "county" | "zip"
	RegionCode  string    `db:"region_code"`
	DisplayName string    `db:"display_name"`
	Value       int64     `db:"value"`
	IsEstimate  bool      `db:"is_estimate"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// VMTCacheEntry contains a record from the `vmt_cache` table. Keyed by county
// FIPS; replaced wholesale on ingestion, never expired by TTL.
type VMTCacheEntry struct {
	CountyFIPS string    `db:"county_fips"`
	AnnualVMT  float64   `db:"annual_vmt"`
	FetchedAt  time.Time `db:"fetched_at"`
}

// ChangeLogEntry contains a record from the append-only `change_log` table
// (spec.md §3 "Change log").
type ChangeLogEntry struct {
	ID               int64     `db:"id"`
	CycleID          string    `db:"cycle_id"`
	DetectedAt       time.Time `db:"detected_at"`
	AffectedStates   int       `db:"affected_states"`
	AffectedCounties int       `db:"affected_counties"`
	AffectedZips     int       `db:"affected_zips"`
	StationsInserted int       `db:"stations_inserted"`
	StationsRejected int       `db:"stations_rejected"`
	Outcome          string    `db:"outcome"` // "promoted" | "no-changes" | "aborted:<reason>"
}

// CycleLock contains the single row used as the §5 named concurrency guard.
// A row with LockedBy != "" means a cycle currently holds the lock.
type CycleLock struct {
	Name     string    `db:"name"` // fixed value "refresh-cycle"
	LockedBy string    `db:"locked_by"`
	LockedAt time.Time `db:"locked_at"`
}

// ZipPipelineState contains a record from the `zip_pipeline_state` table,
// the persisted residual set that makes the §4.G sub-pipeline resumable
// across scheduler ticks and process restarts.
type ZipPipelineState struct {
	CycleID         string    `db:"cycle_id"`
	ResidualZipsCSV string    `db:"residual_zips"` // comma-joined, lexicographically sorted
	TotalZips       int       `db:"total_zips"`
	StartedAt       time.Time `db:"started_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// initGorp is used by InitORM() to setup the ORM part of the database connection.
func initGorp(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(Station{}, "stations").SetKeys(false, "id")
	dbMap.AddTableWithName(StationStaging{}, "stations_staging").SetKeys(false, "id")
	dbMap.AddTableWithName(StateAggregate{}, "state_aggregates").SetKeys(true, "id")
	dbMap.AddTableWithName(StateAggregateStaging{}, "state_aggregates_staging").SetKeys(true, "id")
	dbMap.AddTableWithName(CountyAggregate{}, "county_aggregates").SetKeys(true, "id")
	dbMap.AddTableWithName(CountyAggregateStaging{}, "county_aggregates_staging").SetKeys(true, "id")
	dbMap.AddTableWithName(ZipAggregate{}, "zip_aggregates").SetKeys(true, "id")
	dbMap.AddTableWithName(ZipAggregateStaging{}, "zip_aggregates_staging").SetKeys(true, "id")
	dbMap.AddTableWithName(PopulationCacheEntry{}, "population_cache").SetKeys(false, "region_type", "region_code")
	dbMap.AddTableWithName(VMTCacheEntry{}, "vmt_cache").SetKeys(false, "county_fips")
	dbMap.AddTableWithName(ChangeLogEntry{}, "change_log").SetKeys(true, "id")
	dbMap.AddTableWithName(CycleLock{}, "cycle_locks").SetKeys(false, "name")
	dbMap.AddTableWithName(ZipPipelineState{}, "zip_pipeline_state").SetKeys(false, "cycle_id")
}
