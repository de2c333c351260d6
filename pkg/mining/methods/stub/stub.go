package stub

import (
	"errors"
	"fmt"
	"sync"

	"cuckoominer/pkg/mining/core"
)

// Kind is the factory name of the stub engine
const Kind = "stub"

// ErrInjectedFault is returned by scripted faults without a custom error
var ErrInjectedFault = errors.New("stub: injected engine fault")

// Result is one scripted outcome
type Result struct {
	// Nonces written to the solution slot; nil means no cycle
	Nonces []uint32

	// Err simulates an internal engine fault
	Err error
}

// Found returns a result reporting a cycle
func Found(nonces ...uint32) Result {
	return Result{Nonces: nonces}
}

// Miss returns a result reporting no cycle
func Miss() Result {
	return Result{}
}

// Fault returns a result reporting an engine fault
func Fault(err error) Result {
	if err == nil {
		err = ErrInjectedFault
	}
	return Result{Err: err}
}

// Engine is a deterministic engine whose outcomes are scripted per header
type Engine struct {
	mutex    sync.Mutex
	cfg      core.WorkerConfig
	scripted map[string]Result
	fallback Result
	calls    int
	closed   bool
}

// New creates a stub engine that reports fallback for unscripted headers
func New(cfg core.WorkerConfig, fallback Result) *Engine {
	if cfg.EnginePath == "" {
		cfg.EnginePath = core.BuiltinPath(Kind)
	}
	return &Engine{
		cfg:      cfg,
		scripted: make(map[string]Result),
		fallback: fallback,
	}
}

// Constructor returns a factory constructor producing stubs with fallback
func Constructor(fallback Result) func(core.WorkerConfig) (core.Engine, error) {
	return func(cfg core.WorkerConfig) (core.Engine, error) {
		return New(cfg, fallback), nil
	}
}

// Script sets the outcome for header
func (e *Engine) Script(header []byte, r Result) *Engine {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.scripted[string(header)] = r
	return e
}

// Calls returns how many times Mine has run
func (e *Engine) Calls() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.calls
}

// Closed reports whether Close has been called
func (e *Engine) Closed() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.closed
}

// Config returns the configuration the stub was built with
func (e *Engine) Config() core.WorkerConfig {
	return e.cfg
}

// Name returns the human-readable name of the engine
func (e *Engine) Name() string {
	return "Stub Engine"
}

// Mine replays the scripted result for header
func (e *Engine) Mine(header []byte, sol []uint32) (bool, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.calls++
	if e.closed {
		return false, fmt.Errorf("stub engine closed")
	}

	r, ok := e.scripted[string(header)]
	if !ok {
		r = e.fallback
	}
	if r.Err != nil {
		return false, r.Err
	}
	if r.Nonces == nil {
		return false, nil
	}
	if len(r.Nonces) != len(sol) {
		return false, fmt.Errorf("stub: scripted %d nonces for a %d-cycle", len(r.Nonces), len(sol))
	}

	copy(sol, r.Nonces)
	return true, nil
}

// GetCapabilities returns the capabilities and performance characteristics
func (e *Engine) GetCapabilities() *core.Capabilities {
	return &core.Capabilities{
		Name:        e.Name(),
		Tag:         e.cfg.Params.Tag(),
		Path:        e.cfg.EnginePath,
		InProcess:   true,
		ThreadCount: e.cfg.ThreadCount,
	}
}

// Close marks the stub closed
func (e *Engine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.closed = true
	return nil
}

// Sequence builds a cycle of n nonces starting with the given prefix and
// continuing in steps of 7, handy for fixed-length test proofs.
func Sequence(n int, prefix ...uint32) []uint32 {
	out := make([]uint32, n)
	copy(out, prefix)
	for i := len(prefix); i < n; i++ {
		prev := uint32(0)
		if i > 0 {
			prev = out[i-1]
		}
		out[i] = prev + 7
	}
	return out
}
