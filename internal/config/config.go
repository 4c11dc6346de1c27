// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package config reads the environment-variable surface of spec.md §6 and
// the optional scoring.yaml threshold override, the same osext-based idiom
// internal/db/connection.go uses for its own settings.
package config

import (
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/ev-readiness/internal/scoring"
)

// Config holds every environment-derived setting a cmd/ binary needs to
// wire up its components. DB_URL and DB_SERVICE_ROLE_KEY are read directly
// by internal/db.Init and are not duplicated here.
type Config struct {
	StationsAPIKey   string
	PopulationAPIKey string
	CRONSecret       string
	ScoringYAMLPath  string
}

// Load reads three of the five spec.md §6 environment variables (DB_URL and
// DB_SERVICE_ROLE_KEY are left to internal/db.Init, which already reads
// them) and applies any scoring.yaml override found at SCORING_CONFIG_PATH,
// defaulting to "scoring.yaml" in the working directory.
func Load() (Config, error) {
	cfg := Config{
		StationsAPIKey:   osext.MustGetenv("STATIONS_API_KEY"),
		PopulationAPIKey: osext.MustGetenv("POPULATION_API_KEY"),
		CRONSecret:       osext.MustGetenv("CRON_SECRET"),
		ScoringYAMLPath:  osext.GetenvOrDefault("SCORING_CONFIG_PATH", "scoring.yaml"),
	}
	if err := scoring.LoadThresholdOverrides(cfg.ScoringYAMLPath); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
