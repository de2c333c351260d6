package factory

import (
	"fmt"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/hardware"
	"cuckoominer/pkg/mining/methods/plugin"
	"cuckoominer/pkg/mining/methods/reference"
)

// SelectionConfig contains configuration for engine selection
type SelectionConfig struct {
	// Preferred engine kinds (highest priority first)
	PreferredOrder []string `json:"preferred_order" mapstructure:"preferred_order"`

	// Plugin directory relative to the base directory
	PluginSubdir string `json:"plugin_subdir" mapstructure:"plugin_subdir"`

	// Engine settings
	ThreadCount uint32 `json:"thread_count" mapstructure:"thread_count"` // 0 = one per logical CPU
	TrimRounds  uint32 `json:"trim_rounds" mapstructure:"trim_rounds"`   // 0 = engine default

	// Try the next kind when one fails
	EnableFallback bool `json:"enable_fallback" mapstructure:"enable_fallback"`
}

// DefaultSelectionConfig returns the plugin-only configuration
func DefaultSelectionConfig() *SelectionConfig {
	return &SelectionConfig{
		PreferredOrder: []string{
			plugin.Kind, // installed engine matching the sizeshift tag
		},
		PluginSubdir:   discovery.DefaultSubdir,
		ThreadCount:    hardware.DefaultThreadCount,
		TrimRounds:     0,
		EnableFallback: false,
	}
}

// FallbackSelectionConfig prefers plugins but falls back to the reference engine
func FallbackSelectionConfig() *SelectionConfig {
	config := DefaultSelectionConfig()
	config.PreferredOrder = []string{
		plugin.Kind,    // 1. installed plugin
		reference.Kind, // 2. built-in reference search
	}
	config.EnableFallback = true
	return config
}

// Validate checks the configuration is usable
func (c *SelectionConfig) Validate() error {
	if len(c.PreferredOrder) == 0 {
		return fmt.Errorf("preferred_order must name at least one engine kind")
	}
	seen := make(map[string]bool, len(c.PreferredOrder))
	for _, kind := range c.PreferredOrder {
		if kind == "" {
			return fmt.Errorf("preferred_order contains an empty kind")
		}
		if seen[kind] {
			return fmt.Errorf("preferred_order lists %q twice", kind)
		}
		seen[kind] = true
	}
	return nil
}

// BuildWorkerConfig bridges consensus parameters and a selected engine path
// into the configuration handed to the engine constructor.
func BuildWorkerConfig(params core.CycleParameters, enginePath string, config *SelectionConfig, detector *hardware.Detector) core.WorkerConfig {
	threads := config.ThreadCount
	if detector != nil {
		threads = detector.ThreadCount(threads)
	} else if threads == 0 {
		threads = hardware.DefaultThreadCount
	}

	return core.WorkerConfig{
		EnginePath:  enginePath,
		ThreadCount: threads,
		TrimRounds:  config.TrimRounds,
		Params:      params,
	}
}
