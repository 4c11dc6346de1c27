/*******************************************************************************
*
* Copyright 2024 SAP SE
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
	gorp "github.com/go-gorp/gorp/v3"

	"github.com/sapcc/go-bits/sqlext"
)

// Interface provides the common methods that both the top-level DbMap and a
// transaction implement. This is spec.md §6's "opaque keyed container"
// abstraction made concrete: everything above this package talks to the
// store only through Interface, never through *sql.DB or *gorp.DbMap
// directly, so the storage engine stays swappable.
type Interface interface {
	// from database/sql, by way of go-bits/sqlext
	sqlext.Executor

	// from github.com/go-gorp/gorp
	Insert(args ...any) error
	Update(args ...any) (int64, error)
	Delete(args ...any) (int64, error)
	Select(i any, query string, args ...any) ([]any, error)
}

var (
	_ Interface = (*gorp.DbMap)(nil)
	_ Interface = (*gorp.Transaction)(nil)
)

// TableNames lists the four table pairs that the atomic promotion rename
// (spec.md §6 rpc("promote")) operates on.
var TableNames = []string{"stations", "state_aggregates", "county_aggregates", "zip_aggregates"}

// Promote executes the atomic rename of every staging/serving table pair
// inside a single transaction, as required by spec.md §4.H and §9
// ("Dual-write atomicity"). It is the only supported way to make a refresh
// cycle's staged work visible to query paths.
func Promote(dbMap *gorp.DbMap) error {
	tx, err := dbMap.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, name := range TableNames {
		stagingTmp := name + "_serving_old"
		//nolint:gosec // table names come from the fixed TableNames list, not user input
		if _, err := tx.Exec("ALTER TABLE " + name + " RENAME TO " + stagingTmp); err != nil {
			return err
		}
		if _, err := tx.Exec("ALTER TABLE " + name + "_staging RENAME TO " + name); err != nil {
			return err
		}
		if _, err := tx.Exec("ALTER TABLE " + stagingTmp + " RENAME TO " + name + "_staging"); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SimplifyWhitespace is a thin re-export so callers outside this package don't
// need a second import for a one-line helper used throughout the queries in
// internal/changedetect, internal/aggregate and internal/zippipeline.
var SimplifyWhitespace = sqlext.SimplifyWhitespace
