package discovery

import (
	"cuckoominer/pkg/mining/core"
)

// DefaultSubdir is where engines are installed relative to the node's base directory
const DefaultSubdir = "deps"

// Capability describes one installed engine as reported by a Host
type Capability struct {
	// Tag the engine was built for, e.g. "simple_16"
	Tag string `json:"tag"`

	// Absolute path of the engine binary
	Path string `json:"path"`

	// Optional display name
	Name string `json:"name,omitempty"`

	// Optional version, may be empty for local builds
	Version string `json:"version,omitempty"`
}

// Host enumerates and loads engine plugins. The worker consumes a Host; it
// never loads code itself.
type Host interface {
	// Enumerate lists every installed engine under dir
	Enumerate(dir string) ([]Capability, error)

	// Load initialises the engine at path with cfg
	Load(path string, cfg core.WorkerConfig) (core.Engine, error)
}
