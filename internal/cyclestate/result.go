// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package cyclestate

// Counts summarizes one cycle's work, reported back through the trigger
// endpoint and written to the change log.
type Counts struct {
	StationsInserted int `json:"stations_inserted"`
	StationsRejected int `json:"stations_rejected"`
	AffectedStates   int `json:"affected_states"`
	AffectedCounties int `json:"affected_counties"`
	AffectedZips     int `json:"affected_zips"`
}

// Result is the trigger endpoint's response body of spec.md §7:
// `{success, message, counts, partial?}`.
type Result struct {
	CycleID string  `json:"cycle_id"`
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Counts  Counts  `json:"counts"`
	Partial bool    `json:"partial,omitempty"`
	Failure *string `json:"failure,omitempty"`
}

// HTTPStatus implements spec.md §7's status-code rule: 200 on success or a
// partial completion, 207 when aggregation produced rows but a later step
// failed, 5xx only for cycle-in-progress or a storage-layer outage.
func (r Result) HTTPStatus() int {
	if r.Success || r.Partial {
		return 200
	}
	if r.Failure == nil {
		return 200
	}
	switch FailureKind(*r.Failure) {
	case FailureCycleInProgress:
		return 503
	case FailurePromotionFailed:
		if r.Counts.AffectedStates > 0 || r.Counts.AffectedCounties > 0 || r.Counts.AffectedZips > 0 {
			return 207
		}
		return 500
	case FailureInvariantViolation, FailureUpstreamError, FailureValidationError:
		if r.Counts.AffectedStates > 0 || r.Counts.AffectedCounties > 0 || r.Counts.AffectedZips > 0 {
			return 207
		}
		return 500
	default:
		return 500
	}
}
