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

var sqlMigrations = map[string]string{
	"001_initial.down.sql": `
		DROP TABLE zip_pipeline_state;
		DROP TABLE cycle_locks;
		DROP TABLE change_log;
		DROP TABLE vmt_cache;
		DROP TABLE population_cache;
		DROP TABLE zip_aggregates_staging;
		DROP TABLE zip_aggregates;
		DROP TABLE county_aggregates_staging;
		DROP TABLE county_aggregates;
		DROP TABLE state_aggregates_staging;
		DROP TABLE state_aggregates;
		DROP TABLE stations_staging;
		DROP TABLE stations;
	`,
	"001_initial.up.sql": `
		---------- station registry (staging/serving pair)

		CREATE TABLE stations (
			id             BIGINT      NOT NULL PRIMARY KEY,
			external_id    TEXT        NOT NULL UNIQUE,
			name           TEXT        NOT NULL,
			latitude       DOUBLE PRECISION NOT NULL,
			longitude      DOUBLE PRECISION NOT NULL,
			street_address TEXT        NOT NULL DEFAULT '',
			state          TEXT        NOT NULL,
			zip            TEXT        NOT NULL DEFAULT '',
			level          TEXT        NOT NULL,
			num_ports      INTEGER     NOT NULL DEFAULT 1,
			connectors     TEXT        NOT NULL DEFAULT '',
			network        TEXT        NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX stations_state_idx ON stations (state);
		CREATE INDEX stations_zip_idx ON stations (zip, state);
		CREATE INDEX stations_latlng_idx ON stations (latitude, longitude);

		CREATE TABLE stations_staging (LIKE stations INCLUDING ALL);

		---------- region aggregates: state / county / zip, each with a staging pair

		CREATE TABLE state_aggregates (
			id                       BIGSERIAL NOT NULL PRIMARY KEY,
			state_name               TEXT    NOT NULL UNIQUE,
			center_latitude          DOUBLE PRECISION NOT NULL DEFAULT 0,
			center_longitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
			population               BIGINT  NOT NULL,
			population_is_estimated  BOOLEAN NOT NULL DEFAULT FALSE,
			count_total              INTEGER NOT NULL DEFAULT 0,
			count_dcfast             INTEGER NOT NULL DEFAULT 0,
			count_level2             INTEGER NOT NULL DEFAULT 0,
			count_level1             INTEGER NOT NULL DEFAULT 0,
			conn_tesla               INTEGER NOT NULL DEFAULT 0,
			conn_ccs                 INTEGER NOT NULL DEFAULT 0,
			conn_j1772               INTEGER NOT NULL DEFAULT 0,
			conn_chademo             INTEGER NOT NULL DEFAULT 0,
			ports_tesla              INTEGER NOT NULL DEFAULT 0,
			ports_ccs                INTEGER NOT NULL DEFAULT 0,
			ports_j1772              INTEGER NOT NULL DEFAULT 0,
			ports_chademo            INTEGER NOT NULL DEFAULT 0,
			ports_total              INTEGER NOT NULL DEFAULT 0,
			need_score               INTEGER NOT NULL DEFAULT 0,
			ev_infrastructure_score  INTEGER NOT NULL DEFAULT 0,
			opportunity_score        INTEGER NOT NULL DEFAULT 0,
			has_vmt                  BOOLEAN NOT NULL DEFAULT FALSE,
			vmt_per_capita           DOUBLE PRECISION NOT NULL DEFAULT 0,
			zoom_range               TEXT    NOT NULL DEFAULT 'state',
			updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE state_aggregates_staging (LIKE state_aggregates INCLUDING ALL);

		CREATE TABLE county_aggregates (
			id                       BIGSERIAL NOT NULL PRIMARY KEY,
			state_name               TEXT    NOT NULL,
			county_name              TEXT    NOT NULL,
			county_fips              TEXT    NOT NULL,
			center_latitude          DOUBLE PRECISION NOT NULL DEFAULT 0,
			center_longitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
			population               BIGINT  NOT NULL,
			population_is_estimated  BOOLEAN NOT NULL DEFAULT FALSE,
			count_total              INTEGER NOT NULL DEFAULT 0,
			count_dcfast             INTEGER NOT NULL DEFAULT 0,
			count_level2             INTEGER NOT NULL DEFAULT 0,
			count_level1             INTEGER NOT NULL DEFAULT 0,
			conn_tesla               INTEGER NOT NULL DEFAULT 0,
			conn_ccs                 INTEGER NOT NULL DEFAULT 0,
			conn_j1772               INTEGER NOT NULL DEFAULT 0,
			conn_chademo             INTEGER NOT NULL DEFAULT 0,
			ports_tesla              INTEGER NOT NULL DEFAULT 0,
			ports_ccs                INTEGER NOT NULL DEFAULT 0,
			ports_j1772              INTEGER NOT NULL DEFAULT 0,
			ports_chademo            INTEGER NOT NULL DEFAULT 0,
			ports_total              INTEGER NOT NULL DEFAULT 0,
			need_score               INTEGER NOT NULL DEFAULT 0,
			ev_infrastructure_score  INTEGER NOT NULL DEFAULT 0,
			opportunity_score        INTEGER NOT NULL DEFAULT 0,
			has_vmt                  BOOLEAN NOT NULL DEFAULT FALSE,
			vmt_per_capita           DOUBLE PRECISION NOT NULL DEFAULT 0,
			zoom_range               TEXT    NOT NULL DEFAULT 'county',
			updated_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (state_name, county_fips)
		);
		CREATE INDEX county_aggregates_name_idx ON county_aggregates (state_name, county_name);
		CREATE TABLE county_aggregates_staging (LIKE county_aggregates INCLUDING ALL);

		CREATE TABLE zip_aggregates (
			id                       BIGSERIAL NOT NULL PRIMARY KEY,
			zip_code                 TEXT    NOT NULL,
			state_name               TEXT    NOT NULL,
			center_latitude          DOUBLE PRECISION NOT NULL DEFAULT 0,
			center_longitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
			population               BIGINT  NOT NULL,
			population_is_estimated  BOOLEAN NOT NULL DEFAULT FALSE,
			count_total              INTEGER NOT NULL DEFAULT 0,
			count_dcfast             INTEGER NOT NULL DEFAULT 0,
			count_level2             INTEGER NOT NULL DEFAULT 0,
			count_level1             INTEGER NOT NULL DEFAULT 0,
			conn_tesla               INTEGER NOT NULL DEFAULT 0,
			conn_ccs                 INTEGER NOT NULL DEFAULT 0,
			conn_j1772               INTEGER NOT NULL DEFAULT 0,
			conn_chademo             INTEGER NOT NULL DEFAULT 0,
			ports_tesla              INTEGER NOT NULL DEFAULT 0,
			ports_ccs                INTEGER NOT NULL DEFAULT 0,
			ports_j1772              INTEGER NOT NULL DEFAULT 0,
			ports_chademo            INTEGER NOT NULL DEFAULT 0,
			ports_total              INTEGER NOT NULL DEFAULT 0,
			need_score               INTEGER NOT NULL DEFAULT 0,
			ev_infrastructure_score  INTEGER NOT NULL DEFAULT 0,
			opportunity_score        INTEGER NOT NULL DEFAULT 0,
			has_vmt                  BOOLEAN NOT NULL DEFAULT FALSE,
			vmt_per_capita           DOUBLE PRECISION NOT NULL DEFAULT 0,
			zoom_range               TEXT    NOT NULL DEFAULT 'zip',
			updated_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (zip_code, state_name)
		);
		CREATE TABLE zip_aggregates_staging (LIKE zip_aggregates INCLUDING ALL);

		---------- reference caches (spec.md §4.A)

		CREATE TABLE population_cache (
			region_type  TEXT    NOT NULL,
			region_code  TEXT    NOT NULL,
			display_name TEXT    NOT NULL DEFAULT '',
			value        BIGINT  NOT NULL,
			is_estimate  BOOLEAN NOT NULL DEFAULT FALSE,
			fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (region_type, region_code)
		);

		CREATE TABLE vmt_cache (
			county_fips TEXT NOT NULL PRIMARY KEY,
			annual_vmt  DOUBLE PRECISION NOT NULL,
			fetched_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		---------- audit / coordination

		CREATE TABLE change_log (
			id                BIGSERIAL NOT NULL PRIMARY KEY,
			cycle_id          TEXT NOT NULL,
			detected_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			affected_states   INTEGER NOT NULL DEFAULT 0,
			affected_counties INTEGER NOT NULL DEFAULT 0,
			affected_zips     INTEGER NOT NULL DEFAULT 0,
			stations_inserted INTEGER NOT NULL DEFAULT 0,
			stations_rejected INTEGER NOT NULL DEFAULT 0,
			outcome           TEXT NOT NULL
		);

		CREATE TABLE cycle_locks (
			name      TEXT NOT NULL PRIMARY KEY,
			locked_by TEXT NOT NULL DEFAULT '',
			locked_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		INSERT INTO cycle_locks (name, locked_by) VALUES ('refresh-cycle', '');

		CREATE TABLE zip_pipeline_state (
			cycle_id       TEXT NOT NULL PRIMARY KEY,
			residual_zips  TEXT NOT NULL DEFAULT '',
			total_zips     INTEGER NOT NULL DEFAULT 0,
			started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`,
}
