// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package api implements spec.md §7's trigger endpoint: a single
// CRON_SECRET-gated HTTP entrypoint that runs one refresh cycle and reports
// its outcome. It keeps internal/api's original shape — a type
// implementing httpapi.API, attached to a gorilla/mux router via AddTo,
// with respondwith for JSON bodies and httpapi.IdentifyEndpoint/
// SkipRequestLog for request metadata — but replaces its OpenStack quota
// routes entirely, since none of them have any SPEC_FULL.md analogue.
package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/ev-readiness/internal/promotion"
)

// TriggerAPI implements httpapi.API for spec.md §7: POST /v1/refresh (CRON
// Secret-gated) runs one refresh cycle synchronously and returns its
// cyclestate.Result; GET /healthz is left open for load balancer probes.
type TriggerAPI struct {
	Coordinator *promotion.Coordinator
	CRONSecret  string
}

// NewTriggerAPI builds a TriggerAPI around a wired Coordinator.
func NewTriggerAPI(coordinator *promotion.Coordinator, cronSecret string) *TriggerAPI {
	return &TriggerAPI{Coordinator: coordinator, CRONSecret: cronSecret}
}

// AddTo implements the httpapi.API interface.
func (a *TriggerAPI) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpapi.IdentifyEndpoint(r, "/healthz")
		httpapi.SkipRequestLog(r)
		w.WriteHeader(http.StatusOK)
	})

	r.Methods("POST").Path("/v1/refresh").HandlerFunc(a.Refresh)
}

// Refresh handles POST /v1/refresh, spec.md §7's trigger endpoint.
func (a *TriggerAPI) Refresh(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/v1/refresh")
	if !a.isAuthorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result := a.Coordinator.RunCycle(r.Context())
	respondwith.JSON(w, result.HTTPStatus(), result)
}

// isAuthorized implements spec.md §6's CRON_SECRET gate: the secret may be
// supplied as a bearer token or as a plain header, compared in constant
// time to avoid a timing side channel.
func (a *TriggerAPI) isAuthorized(r *http.Request) bool {
	supplied := r.Header.Get("X-Cron-Secret")
	if supplied == "" {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
			supplied = auth[len(prefix):]
		}
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(a.CRONSecret)) == 1
}
