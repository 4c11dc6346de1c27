// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"math"

	. "github.com/majewsky/gg/option"
)

// ReadinessInput carries the parameters of spec.md §4.F's
// `score(weighted, population, vmt?, portWeighted?)`.
type ReadinessInput struct {
	// Weighted is the charger or port count feeding the density ratio.
	Weighted float64
	// Population is the region's population (never zero in practice: an
	// absent live value is replaced by an estimate; a non-positive value
	// scores 0).
	Population int64
	// VMT is the region's vehicle-miles-traveled-per-day figure, if known.
	VMT Option[float64]
	// PortWeighted selects the {200,120,75,40,20} threshold set instead of
	// the default {60,40,25,15,8}.
	PortWeighted bool
	// Thresholds overrides the default threshold set for this call (e.g.
	// from a scoring.yaml config). Nil selects the built-in default for
	// PortWeighted.
	Thresholds *ReadinessThresholds
}

// Readiness computes spec.md §4.F's readiness score: a pure, deterministic
// function of its input, clamped to [0,100] and rounded to the nearest
// integer.
func Readiness(in ReadinessInput) int {
	if in.Population <= 0 {
		return 0
	}

	t := in.Thresholds
	if t == nil {
		if in.PortWeighted {
			t = &DefaultPortWeightedReadinessThresholds
		} else {
			t = &DefaultReadinessThresholds
		}
	}

	d := (in.Weighted / float64(in.Population)) * 100000

	vmt, hasVMT := in.VMT.Unpack()
	dPrime := d
	if hasVMT {
		multiplier := clamp(vmt/25, 0.5, 2.0)
		dPrime = d / multiplier
	}

	charger := chargerPiecewise(dPrime, *t)

	if !hasVMT {
		return clampRound(charger)
	}

	density := math.Min(float64(in.Population)/300000*100, 100)
	blended := 0.7*charger + 0.3*density
	return clampRound(blended)
}

// chargerPiecewise implements the T1..T5 breakpoint ladder of spec.md §4.F,
// unclamped.
func chargerPiecewise(d float64, t ReadinessThresholds) float64 {
	switch {
	case d >= t.T1:
		return 80 + math.Min((d-t.T1)/(t.T1*2/3)*20, 20)
	case d >= t.T2:
		return 70 + (d-t.T2)/(t.T1-t.T2)*10
	case d >= t.T3:
		return 55 + (d-t.T3)/(t.T2-t.T3)*15
	case d >= t.T4:
		return 40 + (d-t.T4)/(t.T3-t.T4)*15
	case d >= t.T5:
		return 25 + (d-t.T5)/(t.T4-t.T5)*15
	default:
		return (d / t.T5) * 25
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampRound(v float64) int {
	return int(math.Round(clamp(v, 0, 100)))
}
