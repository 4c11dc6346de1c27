/*******************************************************************************
*
* Copyright 2017-2018 SAP SE
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
	"database/sql"
	"net/url"

	"github.com/dlmiddlecote/sqlstats"
	gorp "github.com/go-gorp/gorp/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/osext"
)

// Configuration returns the easypg.Configuration object that func Init() needs
// to initialize the database connection and run pending migrations.
func Configuration() easypg.Configuration {
	return easypg.Configuration{
		Migrations: sqlMigrations,
	}
}

// Init initializes the connection to the database, using the DB_URL and
// DB_SERVICE_ROLE_KEY environment variables from spec.md §6.
func Init() (*sql.DB, error) {
	dbURL, err := url.Parse(osext.MustGetenv("DB_URL"))
	if err != nil {
		return nil, err
	}
	if key := osext.GetenvOrDefault("DB_SERVICE_ROLE_KEY", ""); key != "" {
		q := dbURL.Query()
		q.Set("password", key)
		dbURL.RawQuery = q.Encode()
	}

	dbConn, err := easypg.Connect(dbURL, Configuration())
	if err != nil {
		return nil, err
	}
	prometheus.MustRegister(sqlstats.NewStatsCollector("ev_readiness", dbConn))
	return dbConn, nil
}

// InitORM wraps a database connection into a gorp.DbMap instance.
func InitORM(dbConn *sql.DB) *gorp.DbMap {
	// a refresh cycle issues its storage calls one at a time (there is no
	// worker pool anywhere in the cycle); this is plenty of headroom
	dbConn.SetMaxOpenConns(16)

	dbMap := &gorp.DbMap{Db: dbConn, Dialect: gorp.PostgresDialect{}}
	initGorp(dbMap)
	return dbMap
}
