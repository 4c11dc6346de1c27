// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package station

import (
	"sort"
	"strings"
	"time"

	"github.com/sapcc/ev-readiness/internal/db"
)

// ToDBStaging converts a normalized Station (plus the raw network label and
// a stable numeric ID assigned by the caller) into the row shape that
// internal/ingest bulk-inserts into `stations_staging`.
func ToDBStaging(id db.StationID, s Station, network string, createdAt time.Time) db.StationStaging {
	zip, _ := s.Zip.Unpack()
	return db.StationStaging{
		ID:            id,
		ExternalID:    s.ExternalID,
		Name:          s.Name,
		Latitude:      s.Latitude,
		Longitude:     s.Longitude,
		StreetAddress: s.StreetAddress,
		State:         s.State,
		Zip:           zip,
		Level:         s.Level,
		NumPorts:      s.NumPorts,
		ConnectorsCSV: connectorsToCSV(s.Connectors),
		Network:       strings.TrimSpace(network),
		CreatedAt:     createdAt,
	}
}

func connectorsToCSV(cs []db.Connector) string {
	strs := make([]string, len(cs))
	for i, c := range cs {
		strs[i] = string(c)
	}
	sort.Strings(strs)
	return strings.Join(strs, ",")
}

// ConnectorsFromCSV parses the comma-joined connector list stored in the DB
// back into a sorted slice. Used by internal/changedetect and
// internal/aggregate, which only ever see the DB row shape.
func ConnectorsFromCSV(csv string) []db.Connector {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	result := make([]db.Connector, len(parts))
	for i, p := range parts {
		result[i] = db.Connector(p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
