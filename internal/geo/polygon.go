// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package geo implements the county-boundary lookups of spec.md §4.D and
// §4.E: bounding-box pre-filtering with a buffer, and point-in-polygon
// containment against a fixed county topology fixture. No third-party
// geometry library in the example corpus implements plain 2D ray-casting
// point-in-polygon over GeoJSON-style rings (the one geospatial library
// touched anywhere in the retrieved corpus, uber/h3-go, implements hexagonal
// cell indexing, which solves a different problem and does not compose with
// a fixed-polygon county fixture); this is implemented directly.
package geo

// Point is a (latitude, longitude) pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Buffered returns the box expanded by degrees on every side, implementing
// the "bbox plus a 0.05° buffer" prefilter of spec.md §4.E.
func (b BoundingBox) Buffered(degrees float64) BoundingBox {
	return BoundingBox{
		MinLat: b.MinLat - degrees,
		MaxLat: b.MaxLat + degrees,
		MinLon: b.MinLon - degrees,
		MaxLon: b.MaxLon + degrees,
	}
}

// Contains reports whether p lies within the box (inclusive).
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// PointInPolygon reports whether p lies inside the closed ring described by
// vertices, using the standard even-odd ray-casting rule. vertices need not
// repeat the first point at the end.
func PointInPolygon(p Point, vertices []Point) bool {
	inside := false
	n := len(vertices)
	if n < 3 {
		return false
	}
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			atX := (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lon
			if p.Lon < atX {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
