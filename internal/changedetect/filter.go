// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package changedetect

import (
	"github.com/sapcc/ev-readiness/internal/db"
)

type levelCounts struct {
	dcfast, level2, level1 int
}

// filterAlreadyCurrentZips implements spec.md §4.D's already-current-ZIP
// filter: a candidate ZIP is dropped from the affected set if the serving
// ZIP aggregate row's per-level counts already match the current-staging
// station grouping for that ZIP.
func filterAlreadyCurrentZips(store db.Interface, staging map[db.StationID]db.Station, candidates map[ZipKey]bool) (map[ZipKey]bool, error) {
	result := make(map[ZipKey]bool, len(candidates))

	for key := range candidates {
		stagingCounts := levelCountsFor(staging, key)

		var rows []db.ZipAggregate
		_, err := store.Select(&rows,
			db.SimplifyWhitespace(`SELECT * FROM zip_aggregates WHERE zip_code = $1 AND state_name = $2`),
			key.Zip, key.State)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			// No serving row yet -> definitely not already current.
			result[key] = true
			continue
		}

		serving := rows[0]
		if serving.CountDCFast == stagingCounts.dcfast &&
			serving.CountLevel2 == stagingCounts.level2 &&
			serving.CountLevel1 == stagingCounts.level1 {
			continue // already current: drop from affected set
		}
		result[key] = true
	}

	return result, nil
}

func levelCountsFor(staging map[db.StationID]db.Station, key ZipKey) levelCounts {
	var counts levelCounts
	for _, s := range staging {
		if s.Zip != key.Zip || s.State != key.State {
			continue
		}
		switch s.Level {
		case db.LevelDCFast:
			counts.dcfast++
		case db.LevelL2:
			counts.level2++
		case db.LevelL1:
			counts.level1++
		}
	}
	return counts
}
