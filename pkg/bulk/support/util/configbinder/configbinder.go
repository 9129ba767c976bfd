// Package configbinder binds loosely typed property maps, such as factory
// generator rules declared in YAML, onto concrete configuration structs.
package configbinder

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds a map of properties to a target struct using
// mapstructure. It uses the "yaml" tag for binding and allows weakly typed
// input (e.g. string to int conversion), so properties sourced from YAML or
// environment overrides bind the same way.
//
// Parameters:
//
//	properties: The map of properties to bind.
//	target: The target struct to bind the properties to.
//
// Returns:
//
//	An error if binding fails.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		return fmt.Errorf("failed to decode properties: %w", err)
	}

	return nil
}
