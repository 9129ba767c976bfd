package factory

import (
	"github.com/moorings/bulkhead/pkg/bulk/support/util/configbinder"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

// EdgeCasesFromProperties binds a loosely typed property map, typically the
// factory section of the application configuration, onto an EdgeCaseConfig.
// Binding is weakly typed, so fractions declared as strings bind too. Missing
// keys keep their zero value; fractions outside [0, 1] are rejected.
func EdgeCasesFromProperties(properties map[string]interface{}) (EdgeCaseConfig, error) {
	var edges EdgeCaseConfig
	if len(properties) == 0 {
		return edges, nil
	}

	if err := configbinder.BindProperties(properties, &edges); err != nil {
		return EdgeCaseConfig{}, exception.Newf(moduleName, exception.ClassValidation,
			"failed to bind edge case properties").Wrap(err)
	}

	for name, fraction := range map[string]float64{
		"null_optional_fraction":   edges.NullOptionalFraction,
		"boundary_string_fraction": edges.BoundaryStringFraction,
		"out_of_range_fraction":    edges.OutOfRangeFraction,
	} {
		if fraction < 0 || fraction > 1 {
			return EdgeCaseConfig{}, exception.Newf(moduleName, exception.ClassValidation,
				"%s must be within [0, 1], got %v", name, fraction)
		}
	}
	return edges, nil
}
