// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package db

// BuildIndexOfDBResult executes an SQL query and returns a map (index) of the result.
// The key should be unique among the whole result set.
//
// internal/changedetect uses this to build the `id -> Station` maps for both
// the staging and serving station tables that spec.md §4.D diffs against
// each other.
func BuildIndexOfDBResult[R any, K comparable](dbi Interface, keyFunc func(R) K, query string, args ...any) (result map[K]R, err error) {
	var resultArray []R
	_, err = dbi.Select(&resultArray, query, args...)
	if err != nil {
		return nil, err
	}
	result = make(map[K]R, len(resultArray))
	for _, item := range resultArray {
		result[keyFunc(item)] = item
	}
	return result, nil
}

// BuildArrayIndexOfDBResult executes an SQL query and returns a map (index) of the result.
// The key should not be unique among the whole result set
func BuildArrayIndexOfDBResult[R any, K comparable](dbi Interface, keyFunc func(R) K, query string, args ...any) (result map[K][]R, err error) {
	var resultArray []R
	_, err = dbi.Select(&resultArray, query, args...)
	if err != nil {
		return nil, err
	}
	result = make(map[K][]R, len(resultArray))
	for _, item := range resultArray {
		key := keyFunc(item)
		result[key] = append(result[key], item)
	}
	return result, nil
}

// Count implements spec.md §6's "count" storage primitive: a row count for
// the given table, optionally narrowed by a WHERE clause built from the
// given predicate. It is a free function over Interface rather than a
// method on it, the same shape as BuildIndexOfDBResult above, so it stays
// usable against both *gorp.DbMap and *gorp.Transaction without widening
// the interface every caller's fake store has to implement.
//
//nolint:gosec // table is always one of the fixed names in TableNames, not user input
func Count(dbi Interface, table string, predicate ...string) (int, error) {
	query := "SELECT COUNT(*) FROM " + table
	if len(predicate) > 0 {
		query += " WHERE " + SimplifyWhitespace(predicate[0])
	}
	var counts []int
	if _, err := dbi.Select(&counts, SimplifyWhitespace(query)); err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}
