// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package reference implements the reference-data caches of spec.md §4.A:
// population and VMT lookups backed by a TTL'd cache, falling back to fixed
// estimates when the upstream source cannot be reached.
package reference

// Source reports where a Population value came from, per spec.md §4.A's
// contract `Population(regionType, code) → (value, source)`.
type Source string

// Enum values for Source.
const (
	SourceLive     Source = "live"
	SourceCached   Source = "cached"
	SourceEstimate Source = "estimate"
)
