// Package worker provides the mining worker: an engine selected once at
// construction plus the solution buffer it writes into.
package worker

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/factory"
)

// Worker owns one engine and one solution buffer for a fixed set of cycle
// parameters. A worker runs one search at a time.
type Worker struct {
	params core.CycleParameters
	config core.WorkerConfig
	engine core.Engine
	kind   string
	buffer *core.SolutionBuffer
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New selects and constructs an engine for params. Discovery, selection and
// engine initialisation all happen here; failures are returned as
// *core.MiningError values.
func New(params core.CycleParameters, opts ...Option) (*Worker, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	baseDir := o.baseDir
	if baseDir == "" {
		dir, err := DefaultBaseDir()
		if err != nil {
			return nil, core.WrapError(core.ErrCodePluginNotFound, err, "resolving executable directory")
		}
		baseDir = dir
	}

	logger := o.logger.With(
		zap.Uint32("ease", params.Ease),
		zap.Uint32("sizeshift", params.Sizeshift),
		zap.String("tag", params.Tag()))

	f := o.factory
	if f == nil {
		host := o.host
		if host == nil {
			host = discovery.NewDirHost(logger)
		}
		f = factory.NewEngineFactory(o.selectionConfig(), host, factory.WithLogger(logger))
	}

	engine, cfg, err := f.Build(params, baseDir)
	if err != nil {
		logger.Warn("no engine for worker", zap.String("base_dir", baseDir), zap.Error(err))
		return nil, err
	}

	w := &Worker{
		params: params,
		config: cfg,
		engine: engine,
		kind:   f.Selected(),
		buffer: core.NewSolutionBuffer(o.proofSize),
		logger: logger.With(zap.String("engine", engine.Name()), zap.String("engine_path", cfg.EnginePath)),
	}
	WorkersActive.WithLabelValues(w.kind).Inc()

	w.logger.Info("mining worker ready",
		zap.Uint32("threads", cfg.ThreadCount),
		zap.Int("proof_size", w.buffer.Len()))
	return w, nil
}

// Mine searches the graph generated from header for a cycle. It returns a
// Proof copied out of the worker's buffer, core.ErrNoSolution when the
// engine finished without a cycle, or an error with code
// core.ErrCodeEngineInvocationFailed when the engine faulted.
func (w *Worker) Mine(header []byte) (core.Proof, error) {
	w.buffer.Reset()

	start := time.Now()
	found, err := w.engine.Mine(header, w.buffer.Slot())
	MineDuration.WithLabelValues(w.kind).Observe(time.Since(start).Seconds())

	if err != nil {
		MineTotal.WithLabelValues(w.kind, outcomeFault).Inc()
		w.logger.Error("engine fault", zap.Error(err))
		return core.Proof{}, core.WrapError(core.ErrCodeEngineInvocationFailed, err, w.config.EnginePath)
	}
	if !found {
		MineTotal.WithLabelValues(w.kind, outcomeMiss).Inc()
		return core.Proof{}, core.ErrNoSolution
	}

	MineTotal.WithLabelValues(w.kind, outcomeFound).Inc()
	proof := core.ProofFromBuffer(w.buffer)
	w.logger.Debug("cycle found", zap.Stringer("proof", proof))
	return proof, nil
}

// Params returns the cycle parameters the worker was built for
func (w *Worker) Params() core.CycleParameters {
	return w.params
}

// Config returns a copy of the engine configuration
func (w *Worker) Config() core.WorkerConfig {
	return w.config
}

// Kind returns the factory kind the engine was selected as
func (w *Worker) Kind() string {
	return w.kind
}

// EngineName returns the engine's display name
func (w *Worker) EngineName() string {
	return w.engine.Name()
}

// Capabilities returns what the engine reports about itself
func (w *Worker) Capabilities() *core.Capabilities {
	return w.engine.GetCapabilities()
}

// Close releases the engine. Calling Close more than once is safe.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		WorkersActive.WithLabelValues(w.kind).Dec()
		w.closeErr = w.engine.Close()
		w.logger.Info("mining worker closed")
	})
	return w.closeErr
}

// DefaultBaseDir returns the directory of the running executable, the
// base plugins are discovered under when none is configured.
func DefaultBaseDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
