// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Command evready-server serves spec.md §7's trigger endpoint over HTTP,
// alongside a Prometheus /metrics endpoint and pprof diagnostics restricted
// to localhost.
package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/ev-readiness/internal/aggregate"
	"github.com/sapcc/ev-readiness/internal/api"
	"github.com/sapcc/ev-readiness/internal/auditlog"
	"github.com/sapcc/ev-readiness/internal/config"
	"github.com/sapcc/ev-readiness/internal/db"
	"github.com/sapcc/ev-readiness/internal/ingest"
	"github.com/sapcc/ev-readiness/internal/pprofapi"
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
	triggerAPI := api.NewTriggerAPI(coordinator, cfg.CRONSecret)

	handler := httpapi.Compose(
		triggerAPI,
		metricsAPI{},
		pprofapi.API{IsAuthorized: pprofapi.IsRequestFromLocalhost},
	)

	listenAddress := osext.GetenvOrDefault("LISTEN_ADDRESS", ":8080")
	logg.Info("listening on " + listenAddress)
	if err := http.ListenAndServe(listenAddress, handler); err != nil {
		logg.Fatal(err.Error())
		os.Exit(1)
	}
}

// metricsAPI exposes the process's Prometheus registry at GET /metrics.
type metricsAPI struct{}

func (metricsAPI) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
}
