// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package cyclestate implements the refresh-cycle state machine, error
// taxonomy, and exit-code mapping of spec.md §4.H and §7: the single sink
// that decides whether a cycle's staged work ever becomes visible to
// serving.
package cyclestate

// Phase is one state of the refresh-cycle state machine of spec.md §4.H:
//
//	Idle -> Ingesting -> Detecting -> Aggregating(states) ->
//	Aggregating(counties) -> Aggregating(zips) -> Promotable ->
//	Promoting -> Idle
type Phase string

// Enum values for Phase.
const (
	PhaseIdle              Phase = "idle"
	PhaseIngesting         Phase = "ingesting"
	PhaseDetecting         Phase = "detecting"
	PhaseAggregatingStates Phase = "aggregating-states"
	PhaseAggregatingCounty Phase = "aggregating-counties"
	PhaseAggregatingZips   Phase = "aggregating-zips"
	PhasePromotable        Phase = "promotable"
	PhasePromoting         Phase = "promoting"
)
