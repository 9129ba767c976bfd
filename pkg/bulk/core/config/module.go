// Package config provides core configuration structures and utilities for the
// orchestrator. This file defines the Fx providers for configuration-related
// components.
package config

import "go.uber.org/fx"

// NewOperationConfigProvider extracts and provides *OperationConfig from
// *Config, so execution components can depend on just the slice of
// configuration they use.
func NewOperationConfigProvider(cfg *Config) *OperationConfig {
	return &cfg.Bulkhead.Operation
}

// NewLimitsConfigProvider extracts and provides *LimitsConfig from *Config.
func NewLimitsConfigProvider(cfg *Config) *LimitsConfig {
	return &cfg.Bulkhead.Operation.Limits
}

// NewScoringConfigProvider extracts and provides *ScoringConfig from *Config.
func NewScoringConfigProvider(cfg *Config) *ScoringConfig {
	return &cfg.Bulkhead.Scoring
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewOperationConfigProvider),
	fx.Provide(NewLimitsConfigProvider),
	fx.Provide(NewScoringConfigProvider),
)
