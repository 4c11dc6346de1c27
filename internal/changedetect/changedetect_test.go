// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package changedetect_test

import (
	"database/sql"
	"sort"
	"strings"
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/ev-readiness/internal/changedetect"
	"github.com/sapcc/ev-readiness/internal/db"
)

type fakeStore struct {
	staging []db.Station
	serving []db.Station
	zips    []db.ZipAggregate
}

func (s *fakeStore) Select(i any, query string, args ...any) ([]any, error) {
	switch dest := i.(type) {
	case *[]db.Station:
		if strings.Contains(query, "stations_staging") {
			*dest = append(*dest, s.staging...)
		} else {
			*dest = append(*dest, s.serving...)
		}
	case *[]db.ZipAggregate:
		zip, state := args[0].(string), args[1].(string)
		for _, z := range s.zips {
			if z.ZipCode == zip && z.State == state {
				*dest = append(*dest, z)
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) Insert(args ...any) error          { return nil }
func (s *fakeStore) Update(args ...any) (int64, error) { return 0, nil }
func (s *fakeStore) Delete(args ...any) (int64, error) { return 0, nil }
func (s *fakeStore) Exec(query string, args ...any) (sql.Result, error) {
	return nil, nil
}

var _ db.Interface = (*fakeStore)(nil)

func sfStation(id db.StationID, lat, lon float64, state, zip string, level db.Level) db.Station {
	return db.Station{ID: id, ExternalID: "ext", Name: "Station", Latitude: lat, Longitude: lon, State: state, Zip: zip, Level: level, NumPorts: 1}
}

func TestDetectClassifiesAddedRemovedModified(t *testing.T) {
	store := &fakeStore{
		staging: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast), // unchanged
			sfStation(2, 34.05, -118.25, "CA", "90001", db.LevelL2),      // added
			sfStation(3, 40.75, -73.99, "NY", "10001", db.LevelDCFast),   // modified (was L2)
		},
		serving: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast),
			sfStation(3, 40.75, -73.99, "NY", "10001", db.LevelL2),
			sfStation(4, 36.06, -94.16, "AR", "72701", db.LevelL1), // removed
		},
	}

	result, err := changedetect.Detect(store)
	if err != nil {
		t.Fatal(err)
	}

	assert.DeepEqual(t, "affected states", result.AffectedStates, []string{"AR", "CA", "NY"})
}

func TestDetectEmptyWhenNothingChanged(t *testing.T) {
	store := &fakeStore{
		staging: []db.Station{sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast)},
		serving: []db.Station{sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast)},
	}

	result, err := changedetect.Detect(store)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Fatalf("expected an empty result, got %+v", result)
	}
}

func TestDetectCoordinateEpsilonToleratesSubThresholdDrift(t *testing.T) {
	store := &fakeStore{
		staging: []db.Station{sfStation(1, 37.7750001, -122.42, "CA", "94102", db.LevelDCFast)},
		serving: []db.Station{sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast)},
	}

	result, err := changedetect.Detect(store)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Fatalf("expected sub-epsilon coordinate drift to not register as modified, got %+v", result)
	}
}

func TestDetectAlreadyCurrentZipIsFilteredOut(t *testing.T) {
	store := &fakeStore{
		staging: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast),
			sfStation(2, 37.775, -122.42, "CA", "94102", db.LevelL2),
		},
		serving: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast),
		},
		zips: []db.ZipAggregate{
			{ZipCode: "94102", State: "CA"},
		},
	}
	// the serving aggregate already reflects 1 dcfast + 1 level2 for this zip
	store.zips[0].CountDCFast = 1
	store.zips[0].CountLevel2 = 1

	result, err := changedetect.Detect(store)
	if err != nil {
		t.Fatal(err)
	}
	for _, z := range result.AffectedZips {
		if z.Zip == "94102" && z.State == "CA" {
			t.Fatalf("expected already-current ZIP 94102/CA to be filtered out, got %+v", result.AffectedZips)
		}
	}
}

// TestDetectAffectedRegionsAreSymmetricUnderSwap exercises spec.md §8's
// "Change-detector symmetry" property: an added station in one direction is
// a removed station in the other, and a modified station records both its
// old and new region in either direction, so the set of affected
// states/counties/ZIPs Detect reports is the same regardless of which table
// is called staging and which is called serving. No ZipAggregate rows are
// seeded here so the already-current-ZIP filter (which itself depends on
// which side is "serving") stays a no-op in both directions.
func TestDetectAffectedRegionsAreSymmetricUnderSwap(t *testing.T) {
	forward := &fakeStore{
		staging: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast), // unchanged
			sfStation(2, 34.05, -118.25, "CA", "90001", db.LevelL2),      // added
			sfStation(3, 40.75, -73.99, "NY", "10001", db.LevelDCFast),   // modified (was L2)
		},
		serving: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast),
			sfStation(3, 40.75, -73.99, "NY", "10001", db.LevelL2),
			sfStation(4, 36.06, -94.16, "AR", "72701", db.LevelL1), // removed
		},
	}
	backward := &fakeStore{staging: forward.serving, serving: forward.staging}

	forwardResult, err := changedetect.Detect(forward)
	if err != nil {
		t.Fatal(err)
	}
	backwardResult, err := changedetect.Detect(backward)
	if err != nil {
		t.Fatal(err)
	}

	assert.DeepEqual(t, "affected states", backwardResult.AffectedStates, forwardResult.AffectedStates)
	assert.DeepEqual(t, "affected counties", backwardResult.AffectedCounties, forwardResult.AffectedCounties)
	assert.DeepEqual(t, "affected zips", backwardResult.AffectedZips, forwardResult.AffectedZips)
}

func TestDetectAffectedCountiesAreSortedAndDeduped(t *testing.T) {
	store := &fakeStore{
		staging: []db.Station{
			sfStation(1, 37.775, -122.42, "CA", "94102", db.LevelDCFast),
			sfStation(2, 37.78, -122.43, "CA", "94103", db.LevelL2),
		},
		serving: []db.Station{},
	}

	result, err := changedetect.Detect(store)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "affected counties", result.AffectedCounties, []string{"06075"})
	if !sort.StringsAreSorted(result.AffectedCounties) {
		t.Fatal("expected affected counties to be sorted")
	}
}
