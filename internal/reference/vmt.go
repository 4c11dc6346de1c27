// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	. "github.com/majewsky/gg/option"
)

// VMTPerCapita returns the county's annual vehicle-miles-traveled figure
// converted to a daily per-capita value, per spec.md §6 ("dividing by 365
// then by population"). VMT has no TTL: it is absent entirely until
// internal/ingest's VMT dataset pass populates vmt_cache for that FIPS code,
// and is never estimated (spec.md §3, §4.A).
func (c *Cache) VMTPerCapita(fips string, population int64) (Option[float64], error) {
	if population <= 0 {
		return None[float64](), nil
	}
	entry, err := c.lookupVMT(fips)
	if err != nil {
		return None[float64](), err
	}
	if entry == nil {
		return None[float64](), nil
	}
	perCapita := (entry.AnnualVMT / 365.0) / float64(population)
	return Some(perCapita), nil
}
