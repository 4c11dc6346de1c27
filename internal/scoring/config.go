// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ThresholdOverrides is the shape of an optional `scoring.yaml` file letting
// operators retune the readiness breakpoints without a code change, per
// SPEC_FULL.md's domain-stack wiring of yaml.v3.
type ThresholdOverrides struct {
	Readiness             *ReadinessThresholds `yaml:"readiness,omitempty"`
	PortWeightedReadiness *ReadinessThresholds `yaml:"port_weighted_readiness,omitempty"`
}

// LoadThresholdOverrides reads a scoring.yaml file and applies any thresholds
// it specifies as the new package-wide defaults. Called once at startup by
// internal/config; a missing file is not an error (the built-in defaults
// apply).
func LoadThresholdOverrides(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var overrides ThresholdOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return err
	}
	if overrides.Readiness != nil {
		DefaultReadinessThresholds = *overrides.Readiness
	}
	if overrides.PortWeightedReadiness != nil {
		DefaultPortWeightedReadinessThresholds = *overrides.PortWeightedReadiness
	}
	return nil
}
