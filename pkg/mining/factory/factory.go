package factory

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/hardware"
	"cuckoominer/pkg/mining/methods/plugin"
	"cuckoominer/pkg/mining/methods/reference"
)

// Constructor builds a built-in engine from its worker configuration
type Constructor func(cfg core.WorkerConfig) (core.Engine, error)

// EngineFactory selects and constructs the engine for one worker. Reports
// may be taken from other goroutines while Build runs.
type EngineFactory struct {
	config   *SelectionConfig
	registry *discovery.Registry
	detector *hardware.Detector
	logger   *zap.Logger

	mutex        sync.RWMutex
	constructors map[string]Constructor
	selected     string
	failures     map[string]error
}

// Option configures an EngineFactory
type Option func(*EngineFactory)

// WithDetector overrides the host detector
func WithDetector(d *hardware.Detector) Option {
	return func(f *EngineFactory) { f.detector = d }
}

// WithLogger sets the factory logger
func WithLogger(l *zap.Logger) Option {
	return func(f *EngineFactory) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewEngineFactory creates a factory with the given configuration. The
// reference engine is registered by default; plugins are loaded via host.
func NewEngineFactory(config *SelectionConfig, host discovery.Host, opts ...Option) *EngineFactory {
	if config == nil {
		config = DefaultSelectionConfig()
	}

	f := &EngineFactory{
		config:       config,
		registry:     discovery.NewRegistry(host),
		constructors: make(map[string]Constructor),
		detector:     hardware.NewDetector(),
		logger:       zap.NewNop(),
		failures:     make(map[string]error),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.constructors[reference.Kind] = f.referenceConstructor
	return f
}

// Register adds a built-in engine kind
func (f *EngineFactory) Register(kind string, c Constructor) error {
	if c == nil {
		return fmt.Errorf("engine factory: nil constructor for %q", kind)
	}
	if kind == plugin.Kind {
		return fmt.Errorf("engine factory: %q is reserved for discovered plugins", kind)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, dup := f.constructors[kind]; dup {
		return fmt.Errorf("engine factory: %q registered twice", kind)
	}
	f.constructors[kind] = c
	return nil
}

// Config returns the selection configuration
func (f *EngineFactory) Config() *SelectionConfig {
	return f.config
}

// Registry returns the plugin registry used for discovery
func (f *EngineFactory) Registry() *discovery.Registry {
	return f.registry
}

// Selected returns the kind chosen by the last successful Build
func (f *EngineFactory) Selected() string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.selected
}

// Build walks the preferred order and constructs the first engine that
// succeeds. Without fallback the first kind's error is final.
func (f *EngineFactory) Build(params core.CycleParameters, baseDir string) (core.Engine, core.WorkerConfig, error) {
	if err := params.Validate(); err != nil {
		return nil, core.WorkerConfig{}, err
	}
	if err := f.config.Validate(); err != nil {
		return nil, core.WorkerConfig{}, core.WrapError(core.ErrCodeInvalidParameters, err, "engine selection")
	}

	var lastErr error
	for _, kind := range f.config.PreferredOrder {
		var (
			engine core.Engine
			cfg    core.WorkerConfig
			err    error
		)
		if kind == plugin.Kind {
			engine, cfg, err = f.buildPlugin(params, baseDir)
		} else {
			engine, cfg, err = f.buildBuiltin(kind, params)
		}

		if err == nil {
			f.mutex.Lock()
			f.selected = kind
			f.mutex.Unlock()
			f.logger.Info("engine selected",
				zap.String("kind", kind),
				zap.String("engine", engine.Name()),
				zap.String("engine_path", cfg.EnginePath),
				zap.String("tag", params.Tag()),
				zap.Uint32("threads", cfg.ThreadCount),
				zap.Uint32("trim_rounds", cfg.TrimRounds))
			return engine, cfg, nil
		}

		f.mutex.Lock()
		f.failures[kind] = err
		f.mutex.Unlock()
		lastErr = err
		if !f.config.EnableFallback {
			break
		}
		f.logger.Warn("engine unavailable, trying next", zap.String("kind", kind), zap.Error(err))
	}

	return nil, core.WorkerConfig{}, lastErr
}

func (f *EngineFactory) buildPlugin(params core.CycleParameters, baseDir string) (core.Engine, core.WorkerConfig, error) {
	dir := filepath.Join(baseDir, f.config.PluginSubdir)
	if !f.registry.Scanned() {
		if err := f.registry.Scan(dir); err != nil && !f.registry.Scanned() {
			return nil, core.WorkerConfig{}, err
		}
	}

	capability, err := f.registry.Select(params.Tag())
	if err != nil {
		return nil, core.WorkerConfig{}, err
	}

	cfg := BuildWorkerConfig(params, capability.Path, f.config, f.detector)
	f.logger.Info("loading plugin", zap.String("engine_path", capability.Path), zap.String("tag", capability.Tag))

	engine, err := f.loadPlugin(capability, cfg)
	if err != nil {
		return nil, core.WorkerConfig{}, core.WrapError(core.ErrCodePluginLoadFailed, err, capability.Path)
	}
	return engine, cfg, nil
}

// loadPlugin runs the plugin's constructor and wraps the result. A panic in
// plugin code during construction is returned as an error.
func (f *EngineFactory) loadPlugin(capability discovery.Capability, cfg core.WorkerConfig) (engine *plugin.Engine, err error) {
	var inner core.Engine
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = fmt.Errorf("plugin panicked during construction: %v", r)
			f.logger.Error("plugin construction panicked",
				zap.String("engine_path", capability.Path), zap.Any("panic", r))
			if inner != nil {
				closeQuietly(inner)
			}
		}
	}()

	inner, err = f.registry.Host().Load(capability.Path, cfg)
	if err != nil {
		return nil, err
	}

	engine, err = plugin.Wrap(inner, cfg, capability.Tag)
	if err != nil {
		closeQuietly(inner)
		return nil, err
	}
	return engine, nil
}

// closeQuietly releases an engine that failed construction, ignoring panics
func closeQuietly(e core.Engine) {
	defer func() { _ = recover() }()
	e.Close()
}

func (f *EngineFactory) buildBuiltin(kind string, params core.CycleParameters) (core.Engine, core.WorkerConfig, error) {
	f.mutex.RLock()
	ctor, ok := f.constructors[kind]
	f.mutex.RUnlock()
	if !ok {
		return nil, core.WorkerConfig{}, core.WrapError(core.ErrCodePluginNotFound, nil,
			fmt.Sprintf("unknown engine kind %q", kind))
	}

	cfg := BuildWorkerConfig(params, core.BuiltinPath(kind), f.config, f.detector)
	engine, err := ctor(cfg)
	if err != nil {
		var me *core.MiningError
		if errors.As(err, &me) {
			return nil, core.WorkerConfig{}, err
		}
		return nil, core.WorkerConfig{}, core.WrapError(core.ErrCodePluginLoadFailed, err, cfg.EnginePath)
	}
	if engine == nil {
		return nil, core.WorkerConfig{}, core.WrapError(core.ErrCodePluginLoadFailed, nil, kind+" constructor returned no engine")
	}
	return engine, cfg, nil
}

func (f *EngineFactory) referenceConstructor(cfg core.WorkerConfig) (core.Engine, error) {
	if reason := f.referenceUnavailable(cfg.Params); reason != "" {
		return nil, errors.New(reason)
	}
	return reference.NewEngine(cfg)
}

func (f *EngineFactory) referenceUnavailable(params core.CycleParameters) string {
	if params.Sizeshift > reference.MaxSizeshift {
		return fmt.Sprintf("reference engine supports sizeshift up to %d", reference.MaxSizeshift)
	}
	if f.detector == nil {
		return ""
	}
	return f.detector.CheckMemory(reference.MemoryRequired(params))
}

// DetectionReport contains the results of engine detection
type DetectionReport struct {
	Tag            string                 `json:"tag"`
	Engines        []*EngineStatus        `json:"engines"`
	Plugins        []discovery.Capability `json:"plugins"`
	Selected       string                 `json:"selected"`
	AvailableCount int                    `json:"available_count"`
}

// EngineStatus describes the status of a single engine kind
type EngineStatus struct {
	Kind        string `json:"kind"`
	Available   bool   `json:"available"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
	Reason      string `json:"reason,omitempty"`
}

// GetDetectionReport reports every engine kind for params, using the
// plugins seen by the last scan.
func (f *EngineFactory) GetDetectionReport(params core.CycleParameters) *DetectionReport {
	f.mutex.RLock()
	selected := f.selected
	failures := make(map[string]error, len(f.failures))
	for kind, err := range f.failures {
		failures[kind] = err
	}
	kinds := []string{plugin.Kind}
	for kind := range f.constructors {
		kinds = append(kinds, kind)
	}
	f.mutex.RUnlock()

	report := &DetectionReport{
		Tag:      params.Tag(),
		Plugins:  f.registry.Capabilities(),
		Selected: selected,
	}
	if report.Selected == "" {
		report.Selected = "none"
	}

	for _, kind := range kinds {
		status := &EngineStatus{
			Kind:        kind,
			Priority:    f.getPriority(kind),
			Description: getEngineDescription(kind),
		}

		switch kind {
		case plugin.Kind:
			matches := f.registry.Filter(params.Tag())
			status.Available = len(matches) > 0
			if !status.Available {
				status.Reason = fmt.Sprintf("no plugin tagged %q in %s", params.Tag(), f.registry.Dir())
			}
		case reference.Kind:
			status.Reason = f.referenceUnavailable(params)
			status.Available = status.Reason == ""
		default:
			status.Available = true
		}
		if err, failed := failures[kind]; failed {
			status.Available = false
			status.Reason = err.Error()
		}

		if status.Available {
			report.AvailableCount++
		}
		report.Engines = append(report.Engines, status)
	}

	SortEnginesByPriority(report.Engines)
	return report
}

// UnrankedPriority is reported for kinds missing from the preferred order
const UnrankedPriority = 999

// getPriority returns the priority index of a kind
func (f *EngineFactory) getPriority(kind string) int {
	for i, preferred := range f.config.PreferredOrder {
		if kind == preferred {
			return i
		}
	}
	return UnrankedPriority
}

// getEngineDescription returns a human-readable description for a kind
func getEngineDescription(kind string) string {
	descriptions := map[string]string{
		plugin.Kind:    "Installed engine plugin matching the sizeshift tag",
		reference.Kind: "Built-in single-threaded reference search",
	}

	if desc, exists := descriptions[kind]; exists {
		return desc
	}
	return "Registered built-in engine"
}

// SortEnginesByPriority sorts statuses by priority, then kind
func SortEnginesByPriority(engines []*EngineStatus) {
	sort.Slice(engines, func(i, j int) bool {
		if engines[i].Priority != engines[j].Priority {
			return engines[i].Priority < engines[j].Priority
		}
		return engines[i].Kind < engines[j].Kind
	})
}
