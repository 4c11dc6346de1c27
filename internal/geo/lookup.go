// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package geo

// zipToFIPS is the static ZIP→county mapping of spec.md §4.D, covering the
// same representative counties as the Counties fixture so that the two
// affectedCounties derivation paths (ZIP mapping vs. point-in-polygon) agree
// for every ZIP this fixture knows about.
var zipToFIPS = map[string]string{
	"94102": "06075", // San Francisco County, CA
	"94103": "06075",
	"90001": "06037", // Los Angeles County, CA
	"90012": "06037",
	"94601": "06001", // Alameda County, CA
	"10001": "36061", // New York County, NY
	"11201": "36047", // Kings County, NY
	"77002": "48201", // Harris County, TX
	"78701": "48453", // Travis County, TX
	"33130": "12086", // Miami-Dade County, FL
	"98101": "53033", // King County, WA
	"60601": "17031", // Cook County, IL
	"80202": "08031", // Denver County, CO
	"72701": "05143", // Washington County, AR
	"97006": "41067", // Washington County, OR
	"02108": "25025", // Suffolk County, MA
}

// CountyFIPSForZip implements the ZIP→county derivation path of spec.md
// §4.D. ok is false for ZIPs outside the fixture (spec.md's real
// implementation would consult the full ZCTA→county crosswalk).
func CountyFIPSForZip(zip string) (fips string, ok bool) {
	fips, ok = zipToFIPS[zip]
	return fips, ok
}

// CountyFIPSForPoint implements the point-in-polygon derivation path of
// spec.md §4.D and the county-aggregation membership test of §4.E. It
// returns the first county fixture whose polygon contains p; ok is false if
// no fixture county contains it.
func CountyFIPSForPoint(p Point) (fips string, ok bool) {
	for _, c := range Counties {
		if !c.Box.Contains(p) {
			continue
		}
		if PointInPolygon(p, c.Polygon) {
			return c.FIPS, true
		}
	}
	return "", false
}

// CountiesForState returns the fixture counties belonging to state, in
// fixture order. internal/aggregate does not call it: it enumerates
// "regions = all" by ranging over Counties directly.
func CountiesForState(state string) []County {
	var result []County
	for _, c := range Counties {
		if c.State == state {
			result = append(result, c)
		}
	}
	return result
}

// CountyByFIPS looks up a fixture county by its FIPS code.
func CountyByFIPS(fips string) (County, bool) {
	for _, c := range Counties {
		if c.FIPS == fips {
			return c, true
		}
	}
	return County{}, false
}
