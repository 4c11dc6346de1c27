// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package changedetect implements the change detector of spec.md §4.D: a
// diff between the staging and serving station tables that derives the
// regions aggregation needs to revisit.
package changedetect

// ZipKey disambiguates a 5-digit ZIP by its state, per spec.md §3's ZIP
// aggregate key.
type ZipKey struct {
	Zip   string
	State string
}

// Result is the return value of Detect, spec.md §4.D's
// `(affectedStates, affectedCounties, affectedZips, totals)`.
type Result struct {
	AffectedStates   []string
	AffectedCounties []string // county FIPS codes
	AffectedZips     []ZipKey
}

// Totals reports the final (post-filter) sizes of the three affected sets,
// per spec.md §4.D.
func (r Result) Totals() (states, counties, zips int) {
	return len(r.AffectedStates), len(r.AffectedCounties), len(r.AffectedZips)
}

// Empty reports whether the cycle found nothing to revisit, short-
// circuiting the aggregation engine per spec.md §4.D.
func (r Result) Empty() bool {
	return len(r.AffectedStates) == 0 && len(r.AffectedCounties) == 0 && len(r.AffectedZips) == 0
}
