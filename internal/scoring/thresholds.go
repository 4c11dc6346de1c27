// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package scoring implements the two pure scalar scoring functions of
// spec.md §4.F, plus the legacy need score, consumed by internal/aggregate
// during each refresh cycle and by the read path.
package scoring

// ReadinessThresholds is the T1..T5 threshold tuple of spec.md §4.F,
// descending. The zero value is invalid; use DefaultReadinessThresholds or
// DefaultPortWeightedReadinessThresholds.
type ReadinessThresholds struct {
	T1 float64 `yaml:"t1"`
	T2 float64 `yaml:"t2"`
	T3 float64 `yaml:"t3"`
	T4 float64 `yaml:"t4"`
	T5 float64 `yaml:"t5"`
}

// DefaultReadinessThresholds is the non-port-weighted threshold set.
var DefaultReadinessThresholds = ReadinessThresholds{T1: 60, T2: 40, T3: 25, T4: 15, T5: 8}

// DefaultPortWeightedReadinessThresholds is substituted when the caller's
// weighted count is port-weighted rather than station-weighted.
var DefaultPortWeightedReadinessThresholds = ReadinessThresholds{T1: 200, T2: 120, T3: 75, T4: 40, T5: 20}
