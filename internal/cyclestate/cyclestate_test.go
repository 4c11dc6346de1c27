// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package cyclestate_test

import (
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/ev-readiness/internal/cyclestate"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind cyclestate.FailureKind
		want int
	}{
		{cyclestate.FailureCycleInProgress, 2},
		{cyclestate.FailureUpstreamError, 3},
		{cyclestate.FailurePromotionFailed, 4},
		{cyclestate.FailurePartialCompletion, 5},
		{cyclestate.FailureInvariantViolation, 1},
		{cyclestate.FailureValidationError, 1},
	}
	for _, c := range cases {
		assert.DeepEqual(t, string(c.kind), cyclestate.ExitCode(c.kind), c.want)
	}
}

func TestTaggedErrorCarriesCycleID(t *testing.T) {
	err := cyclestate.NewTaggedError("cycle-42", cyclestate.FailureUpstreamError, "timeout after 3 retries")
	assert.DeepEqual(t, "error string", err.Error(), "cycle-42: upstream-error: timeout after 3 retries")
}

func TestResultHTTPStatusSuccess(t *testing.T) {
	r := cyclestate.Result{Success: true}
	assert.DeepEqual(t, "status", r.HTTPStatus(), 200)
}

func TestResultHTTPStatusPartial(t *testing.T) {
	r := cyclestate.Result{Partial: true}
	assert.DeepEqual(t, "status", r.HTTPStatus(), 200)
}

func TestResultHTTPStatusCycleInProgressIs503(t *testing.T) {
	failure := string(cyclestate.FailureCycleInProgress)
	r := cyclestate.Result{Failure: &failure}
	assert.DeepEqual(t, "status", r.HTTPStatus(), 503)
}

func TestResultHTTPStatusMultiStatusWhenAggregationProducedRows(t *testing.T) {
	failure := string(cyclestate.FailurePromotionFailed)
	r := cyclestate.Result{Failure: &failure, Counts: cyclestate.Counts{AffectedStates: 3}}
	assert.DeepEqual(t, "status", r.HTTPStatus(), 207)
}

func TestResultHTTPStatusServerErrorWhenNothingProduced(t *testing.T) {
	failure := string(cyclestate.FailureUpstreamError)
	r := cyclestate.Result{Failure: &failure}
	assert.DeepEqual(t, "status", r.HTTPStatus(), 500)
}
