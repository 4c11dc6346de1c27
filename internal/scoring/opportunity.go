// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"math"

	. "github.com/majewsky/gg/option"
)

// OpportunityInput carries the parameters of spec.md §4.F's
// `opp(total, population, vmt?)`.
type OpportunityInput struct {
	Total      float64
	Population int64
	VMT        Option[float64]
}

// Opportunity computes spec.md §4.F's opportunity score.
func Opportunity(in OpportunityInput) int {
	if in.Population < 10000 {
		return clampRound(math.Min(25, float64(in.Population)/10000*25))
	}

	d := (in.Total / float64(in.Population)) * 100000
	multiplier := 1.0
	if vmt, ok := in.VMT.Unpack(); ok {
		multiplier = clamp(vmt/25, 0.5, 2.0)
	}

	var base float64
	switch {
	case d <= 5:
		base = 80 + math.Min((float64(in.Population)/100000)/5*20, 20)
	case d <= 15:
		base = 60 + (15-d)/10*20
	case d <= 30:
		base = 40 + (30-d)/15*20
	case d <= 50:
		base = 20 + (50-d)/20*20
	default:
		base = math.Max(0, 20-(d-50)/10*20)
	}

	return clampRound(base * multiplier)
}
