package worker

import (
	"go.uber.org/zap"

	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/factory"
)

// Option configures a Worker at construction
type Option func(*options)

type options struct {
	host      discovery.Host
	baseDir   string
	selection *factory.SelectionConfig
	factory   *factory.EngineFactory
	logger    *zap.Logger
	proofSize int

	// overrides applied on top of selection
	pluginSubdir *string
	threadCount  *uint32
	trimRounds   *uint32
}

// WithHost injects the plugin host used for discovery and loading
func WithHost(h discovery.Host) Option {
	return func(o *options) { o.host = h }
}

// WithBaseDir sets the directory plugins are discovered under. Defaults to
// the directory of the running executable.
func WithBaseDir(dir string) Option {
	return func(o *options) { o.baseDir = dir }
}

// WithPluginSubdir overrides the plugin subdirectory (default "deps")
func WithPluginSubdir(subdir string) Option {
	return func(o *options) { o.pluginSubdir = &subdir }
}

// WithThreadCount overrides the engine thread count; 0 means one per CPU
func WithThreadCount(n uint32) Option {
	return func(o *options) { o.threadCount = &n }
}

// WithTrimRounds overrides the engine trim rounds; 0 means engine default
func WithTrimRounds(n uint32) Option {
	return func(o *options) { o.trimRounds = &n }
}

// WithSelection replaces the engine selection configuration
func WithSelection(cfg *factory.SelectionConfig) Option {
	return func(o *options) { o.selection = cfg }
}

// WithFactory supplies a prepared engine factory. Host and selection
// options are ignored when a factory is given.
func WithFactory(f *factory.EngineFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithLogger sets the worker logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProofSize overrides the cycle length (default core.ProofSize)
func WithProofSize(n int) Option {
	return func(o *options) { o.proofSize = n }
}

// selectionConfig returns a copy of the selection with overrides applied
func (o *options) selectionConfig() *factory.SelectionConfig {
	base := o.selection
	if base == nil {
		base = factory.DefaultSelectionConfig()
	}

	cfg := *base
	cfg.PreferredOrder = append([]string(nil), base.PreferredOrder...)
	if o.pluginSubdir != nil {
		cfg.PluginSubdir = *o.pluginSubdir
	}
	if o.threadCount != nil {
		cfg.ThreadCount = *o.threadCount
	}
	if o.trimRounds != nil {
		cfg.TrimRounds = *o.trimRounds
	}
	return &cfg
}
