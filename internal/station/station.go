// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package station implements the station normalizer of spec.md §4.B: a pure,
// side-effect-free mapping from an upstream registry record to the
// canonical Station record of spec.md §3, or a rejection with a reason.
package station

import (
	"sort"
	"strconv"
	"strings"

	. "github.com/majewsky/gg/option"

	"github.com/sapcc/ev-readiness/internal/db"
)

// RejectReason enumerates the rejection reasons of spec.md §4.B.
type RejectReason string

// Enum values for RejectReason.
const (
	ReasonMissingCoordinates RejectReason = "missing-coordinates"
	ReasonMissingName        RejectReason = "missing-name"
	ReasonOutsideEnvelope    RejectReason = "outside-us-envelope"
)

// Rejection is returned by Normalize when a raw record cannot be turned into
// a canonical Station.
type Rejection struct {
	ExternalID string
	Reason     RejectReason
}

func (r Rejection) Error() string {
	return "station " + r.ExternalID + " rejected: " + string(r.Reason)
}

// US envelope bounds from spec.md §3.
const (
	minLatitude  = 24.5
	maxLatitude  = 71.5
	minLongitude = -179.0
	maxLongitude = -66.0
)

// Raw is the shape of one entry in the upstream registry's `fuel_stations`
// array (spec.md §6). Field names match the upstream JSON exactly so that
// internal/ingest can json.Unmarshal directly into this type.
type Raw struct {
	ID                int      `json:"id"`
	StationName       string   `json:"station_name"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	StreetAddress     string   `json:"street_address"`
	City              string   `json:"city"`
	State             string   `json:"state"`
	Zip               string   `json:"zip"`
	EVConnectorTypes  []string `json:"ev_connector_types"`
	EVDCFastNum       int      `json:"ev_dc_fast_num"`
	EVLevel2Num       int      `json:"ev_level2_evse_num"`
	EVLevel1Num       int      `json:"ev_level1_evse_num"`
	EVNetwork         string   `json:"ev_network"`
}

// Station is the canonical station record of spec.md §3.
type Station struct {
	ExternalID    string
	Name          string
	Latitude      float64
	Longitude     float64
	StreetAddress string
	State         string
	Zip           Option[string]
	Level         db.Level
	NumPorts      int
	Connectors    []db.Connector
}

// Normalize maps a raw upstream record to a canonical Station, or returns a
// Rejection. It performs no I/O and has no side effects; calling it twice on
// the same input yields the same result (spec.md §8 "Normalizer
// determinism").
func Normalize(raw Raw) (Station, *Rejection) {
	externalID := strconv.Itoa(raw.ID)

	if strings.TrimSpace(raw.StationName) == "" {
		return Station{}, &Rejection{ExternalID: externalID, Reason: ReasonMissingName}
	}
	if raw.Latitude == 0 && raw.Longitude == 0 {
		return Station{}, &Rejection{ExternalID: externalID, Reason: ReasonMissingCoordinates}
	}
	if raw.Latitude < minLatitude || raw.Latitude > maxLatitude ||
		raw.Longitude < minLongitude || raw.Longitude > maxLongitude {
		return Station{}, &Rejection{ExternalID: externalID, Reason: ReasonOutsideEnvelope}
	}

	connectors := normalizeConnectors(raw.EVConnectorTypes)
	level, numPorts := classify(raw, connectors)

	return Station{
		ExternalID:    externalID,
		Name:          strings.TrimSpace(raw.StationName),
		Latitude:      raw.Latitude,
		Longitude:     raw.Longitude,
		StreetAddress: strings.TrimSpace(raw.StreetAddress),
		State:         strings.ToUpper(strings.TrimSpace(raw.State)),
		Zip:           cleanZip(raw.Zip),
		Level:         level,
		NumPorts:      numPorts,
		Connectors:    connectors,
		// EVNetwork is carried through by internal/ingest when building db.Station;
		// kept out of the canonical projection used for idempotence checks.
	}, nil
}

// Network returns the raw upstream network label unchanged; it is not part
// of the canonical comparison projection used by internal/changedetect.
func Network(raw Raw) string {
	return strings.TrimSpace(raw.EVNetwork)
}

// classify applies the level-classification rule of spec.md §4.B: level =
// dcfast iff the record reports any DC-fast port count > 0 OR its connector
// set contains J1772COMBO, CHADEMO, or TESLA; else level2 iff any level-2
// port > 0; else level1. num_ports = max(1, raw port count for the chosen
// level).
func classify(raw Raw, connectors []db.Connector) (db.Level, int) {
	hasDCFastConnector := false
	for _, c := range connectors {
		if c == db.ConnectorJ1772Combo || c == db.ConnectorChademo || c == db.ConnectorTesla {
			hasDCFastConnector = true
			break
		}
	}

	switch {
	case raw.EVDCFastNum > 0 || hasDCFastConnector:
		return db.LevelDCFast, max(1, raw.EVDCFastNum)
	case raw.EVLevel2Num > 0:
		return db.LevelL2, max(1, raw.EVLevel2Num)
	default:
		return db.LevelL1, max(1, raw.EVLevel1Num)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var knownConnectors = map[string]db.Connector{
	"TESLA":      db.ConnectorTesla,
	"J1772":      db.ConnectorJ1772,
	"J1772COMBO": db.ConnectorJ1772Combo,
	"CHADEMO":    db.ConnectorChademo,
}

func normalizeConnectors(raw []string) []db.Connector {
	seen := make(map[db.Connector]bool, len(raw))
	for _, r := range raw {
		c, ok := knownConnectors[strings.ToUpper(strings.TrimSpace(r))]
		if !ok {
			c = db.ConnectorOther
		}
		seen[c] = true
	}
	result := make([]db.Connector, 0, len(seen))
	for c := range seen {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// cleanZip implements the ZIP cleaning rule of spec.md §4.B and §8: the
// first 5 characters after trimming, provided they are numeric; otherwise
// the ZIP is absent.
func cleanZip(raw string) Option[string] {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 5 {
		return None[string]()
	}
	prefix := trimmed[:5]
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return None[string]()
		}
	}
	return Some(prefix)
}
