// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package geo

// County is one entry in the fixed topology fixture of spec.md §4.E
// ("County polygons are loaded from a fixed topology fixture"). Polygon is a
// closed ring approximating the county boundary; every entry in the current
// fixture carries only a bounding box, so Polygon is that rectangle and
// PointInPolygon degenerates to a bbox test for all of them.
type County struct {
	State   string
	Name    string
	FIPS    string
	Box     BoundingBox
	Polygon []Point
}

// rectanglePolygon builds a closed 4-vertex ring from a bounding box, used
// by fixture entries that carry only a bbox.
func rectanglePolygon(b BoundingBox) []Point {
	return []Point{
		{Lat: b.MinLat, Lon: b.MinLon},
		{Lat: b.MinLat, Lon: b.MaxLon},
		{Lat: b.MaxLat, Lon: b.MaxLon},
		{Lat: b.MaxLat, Lon: b.MinLon},
	}
}

// Counties is the fixed topology fixture: a representative subset of US
// counties (not the full ~3,200-county topology) covering enough states and
// one same-name collision ("Washington County" in AR and OR) to exercise
// FIPS-based disambiguation per spec.md §4.E.
var Counties = buildCounties()

func buildCounties() []County {
	raw := []struct {
		state, name, fips           string
		minLat, maxLat, minLon, maxLon float64
	}{
		{"CA", "San Francisco County", "06075", 37.70, 37.83, -122.52, -122.35},
		{"CA", "Los Angeles County", "06037", 33.70, 34.82, -118.95, -117.65},
		{"CA", "Alameda County", "06001", 37.45, 37.90, -122.34, -121.46},
		{"NY", "New York County", "36061", 40.68, 40.88, -74.02, -73.91},
		{"NY", "Kings County", "36047", 40.57, 40.74, -74.04, -73.83},
		{"TX", "Harris County", "48201", 29.49, 30.17, -95.91, -94.90},
		{"TX", "Travis County", "48453", 30.02, 30.52, -98.17, -97.51},
		{"FL", "Miami-Dade County", "12086", 25.14, 25.98, -80.87, -80.12},
		{"WA", "King County", "53033", 47.08, 47.78, -122.54, -121.06},
		{"IL", "Cook County", "17031", 41.47, 42.15, -88.26, -87.52},
		{"CO", "Denver County", "08031", 39.61, 39.91, -105.11, -104.60},
		{"AR", "Washington County", "05143", 35.76, 36.26, -94.50, -93.97},
		{"OR", "Washington County", "41067", 45.36, 45.78, -123.29, -122.71},
		{"MA", "Suffolk County", "25025", 42.23, 42.40, -71.19, -70.92},
	}

	counties := make([]County, 0, len(raw))
	for _, r := range raw {
		box := BoundingBox{MinLat: r.minLat, MaxLat: r.maxLat, MinLon: r.minLon, MaxLon: r.maxLon}
		counties = append(counties, County{
			State:   r.state,
			Name:    r.name,
			FIPS:    r.fips,
			Box:     box,
			Polygon: rectanglePolygon(box),
		})
	}
	return counties
}
