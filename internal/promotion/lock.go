// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package promotion

import (
	"fmt"
	"time"

	"github.com/sapcc/ev-readiness/internal/db"
)

// lockName is the fixed cycle_locks row name of spec.md §5's named
// concurrency guard.
const lockName = "refresh-cycle"

// acquireLock implements spec.md §5: a cycle may only proceed if it can
// atomically flip cycle_locks.locked_by from empty to its own cycle id. The
// compare-and-set happens in the WHERE clause rather than a read-then-write,
// so two concurrent triggers racing for the same empty row cannot both
// succeed.
func acquireLock(store db.Interface, cycleID string, lockedAt time.Time) (bool, error) {
	result, err := store.Exec(
		`UPDATE cycle_locks SET locked_by = $1, locked_at = $2 WHERE name = $3 AND locked_by = ''`,
		cycleID, lockedAt, lockName)
	if err != nil {
		return false, fmt.Errorf("could not acquire refresh-cycle lock: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// releaseLock clears the lock, but only if it is still held by cycleID —
// guarding against a stale release from a cycle that previously timed out
// and had its lock reclaimed or cleared by an operator.
func releaseLock(store db.Interface, cycleID string, releasedAt time.Time) error {
	_, err := store.Exec(
		`UPDATE cycle_locks SET locked_by = '', locked_at = $1 WHERE name = $2 AND locked_by = $3`,
		releasedAt, lockName, cycleID)
	return err
}
