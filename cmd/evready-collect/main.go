// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Command evready-collect runs a single refresh cycle (spec.md §4's A
// through H) to completion and exits, for invocation from a cron-style
// scheduler that does not go through the HTTP trigger endpoint.
package main

import (
	"context"
	"os"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ev-readiness/internal/aggregate"
	"github.com/sapcc/ev-readiness/internal/auditlog"
	"github.com/sapcc/ev-readiness/internal/config"
	"github.com/sapcc/ev-readiness/internal/cyclestate"
	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/ingest"
	"github.com/sapcc/ev-readiness/internal/promotion"
	"github.com/sapcc/ev-readiness/internal/reference"
	"github.com/sapcc/ev-readiness/internal/zippipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logg.Fatal(err.Error())
	}

	dbConn, err := db.Init()
	if err != nil {
		logg.Fatal(err.Error())
	}
	dbMap := db.InitORM(dbConn)

	ref := reference.NewCache(dbMap, cfg.PopulationAPIKey)
	ingestDriver := ingest.NewDriver(dbMap, cfg.StationsAPIKey)
	ingestDriver.FetchVMT = ref.RefreshVMT
	stateAgg := aggregate.NewStateAggregator(dbMap, ref)
	countyAgg := aggregate.NewCountyAggregator(dbMap, ref)
	zipAgg := aggregate.NewZipAggregator(dbMap, ref)
	zipPipeline := zippipeline.NewPipeline(dbMap, zipAgg)
	auditRecorder := auditlog.NewRecorder(dbMap)

	coordinator := promotion.NewCoordinator(dbMap, dbMap, ingestDriver, stateAgg, countyAgg, zipPipeline, auditRecorder)

	result := coordinator.RunCycle(context.Background())
	logg.Info("cycle %s: %s (inserted=%d rejected=%d states=%d counties=%d zips=%d)",
		result.CycleID, result.Message,
		result.Counts.StationsInserted, result.Counts.StationsRejected,
		result.Counts.AffectedStates, result.Counts.AffectedCounties, result.Counts.AffectedZips)

	if result.Failure == nil {
		os.Exit(0)
	}
	os.Exit(cyclestate.ExitCode(cyclestate.FailureKind(*result.Failure)))
}
