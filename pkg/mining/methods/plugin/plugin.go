package plugin

import (
	"fmt"

	"cuckoominer/pkg/mining/core"
)

// Kind is the factory name of plugin-backed engines
const Kind = "plugin"

// Engine wraps an engine loaded by a plugin host. Foreign engines are
// isolated behind it: panics become faults and mismatched proof sizes are
// rejected before they reach the worker's buffer. The plugin's name and
// capabilities are read once, in Wrap.
type Engine struct {
	inner core.Engine
	cfg   core.WorkerConfig
	tag   string
	name  string
	caps  core.Capabilities
}

// Wrap adapts a host-loaded engine. cfg must be the configuration the
// engine was loaded with and tag the capability tag it was selected by.
// Wrap calls into the plugin; callers recover panics around it.
func Wrap(inner core.Engine, cfg core.WorkerConfig, tag string) (*Engine, error) {
	if inner == nil {
		return nil, fmt.Errorf("plugin engine %s: nil engine", cfg.EnginePath)
	}
	if tag != cfg.Params.Tag() {
		return nil, fmt.Errorf("plugin engine %s: tag %q does not match sizeshift %d",
			cfg.EnginePath, tag, cfg.Params.Sizeshift)
	}

	var caps core.Capabilities
	if reported := inner.GetCapabilities(); reported != nil {
		if reported.Tag != "" && reported.Tag != tag {
			return nil, fmt.Errorf("plugin engine %s: advertises tag %q, selected as %q",
				cfg.EnginePath, reported.Tag, tag)
		}
		caps = *reported
	}

	e := &Engine{inner: inner, cfg: cfg, tag: tag}
	e.name = "Plugin " + inner.Name()

	caps.Name = e.name
	caps.Tag = tag
	caps.Path = cfg.EnginePath
	caps.InProcess = false
	if caps.ThreadCount == 0 {
		caps.ThreadCount = cfg.ThreadCount
	}
	e.caps = caps
	return e, nil
}

// Name returns the human-readable name of the engine
func (e *Engine) Name() string {
	return e.name
}

// Mine delegates to the plugin
func (e *Engine) Mine(header []byte, sol []uint32) (found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = false
			err = fmt.Errorf("plugin %s panicked: %v", e.cfg.EnginePath, r)
		}
	}()

	if caps := e.GetCapabilities(); caps.ProofSize != 0 && caps.ProofSize != len(sol) {
		return false, fmt.Errorf("plugin %s produces %d-cycles, worker expects %d",
			e.cfg.EnginePath, caps.ProofSize, len(sol))
	}

	return e.inner.Mine(header, sol)
}

// GetCapabilities merges what the plugin reported with what the host knows
func (e *Engine) GetCapabilities() *core.Capabilities {
	caps := e.caps
	return &caps
}

// Close releases the plugin engine
func (e *Engine) Close() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked on close: %v", e.cfg.EnginePath, r)
		}
	}()
	return e.inner.Close()
}

// Unwrap returns the host-loaded engine
func (e *Engine) Unwrap() core.Engine {
	return e.inner
}
