// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package auditlog_test

import (
	"database/sql"
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/mock"

	"github.com/sapcc/ev-readiness/internal/auditlog"
	"github.com/sapcc/ev-readiness/internal/cyclestate"
	"github.com/sapcc/ev-readiness/internal/db"
)

type fakeStore struct {
	inserted []db.ChangeLogEntry
}

func (s *fakeStore) Select(i any, query string, args ...any) ([]any, error) { return nil, nil }
func (s *fakeStore) Insert(args ...any) error {
	s.inserted = append(s.inserted, *args[0].(*db.ChangeLogEntry))
	return nil
}
func (s *fakeStore) Update(args ...any) (int64, error)                  { return 0, nil }
func (s *fakeStore) Delete(args ...any) (int64, error)                  { return 0, nil }
func (s *fakeStore) Exec(query string, args ...any) (sql.Result, error) { return nil, nil }

var _ db.Interface = (*fakeStore)(nil)

func TestRecordWritesOneRowWithCounts(t *testing.T) {
	clock := mock.NewClock()
	store := &fakeStore{}
	r := auditlog.NewRecorder(store)
	r.Now = clock.Now

	counts := cyclestate.Counts{StationsInserted: 10, StationsRejected: 1, AffectedStates: 2, AffectedCounties: 1, AffectedZips: 3}
	if err := r.Record("cycle-1", counts, "promoted"); err != nil {
		t.Fatal(err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 row written, got %d", len(store.inserted))
	}
	row := store.inserted[0]
	assert.DeepEqual(t, "cycle id", row.CycleID, "cycle-1")
	assert.DeepEqual(t, "outcome", row.Outcome, "promoted")
	assert.DeepEqual(t, "affected zips", row.AffectedZips, 3)
}
