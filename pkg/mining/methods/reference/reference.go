package reference

import (
	"fmt"
	"sync"

	"cuckoominer/pkg/mining/core"
)

const (
	// Kind is the factory name of the reference engine
	Kind = "reference"

	// MaxSizeshift keeps node ids within uint32
	MaxSizeshift = 32

	// MaxPathLen bounds the walk from a node to its root
	MaxPathLen = 8192
)

// Engine is the in-process reference cycle finder. It builds the full
// graph without trimming, so it is meant for small sizeshifts and tests.
type Engine struct {
	cfg      core.WorkerConfig
	edgeMask uint64
	easiness uint64

	mutex sync.Mutex
	graph []uint32
	us    []uint32
	vs    []uint32
	caps  *core.Capabilities
}

// New creates a reference engine for cfg.Params
func New(cfg core.WorkerConfig) (*Engine, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Params.Sizeshift > MaxSizeshift {
		return nil, fmt.Errorf("reference engine supports sizeshift up to %d, got %d",
			MaxSizeshift, cfg.Params.Sizeshift)
	}
	if cfg.EnginePath == "" {
		cfg.EnginePath = core.BuiltinPath(Kind)
	}

	return &Engine{
		cfg:      cfg,
		edgeMask: cfg.Params.NodeCount()/2 - 1,
		easiness: cfg.Params.EdgeCount(),
	}, nil
}

// NewEngine adapts New to the factory constructor signature
func NewEngine(cfg core.WorkerConfig) (core.Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// MemoryRequired returns the graph size in bytes for params
func MemoryRequired(params core.CycleParameters) uint64 {
	return (params.NodeCount() + 1) * 4
}

// Name returns the human-readable name of the engine
func (e *Engine) Name() string {
	return "Reference Cuckoo"
}

// Mine searches the header's graph for a cycle of len(sol) edges
func (e *Engine) Mine(header []byte, sol []uint32) (bool, error) {
	if len(sol) < 2 || len(sol)%2 != 0 {
		return false, fmt.Errorf("reference engine needs an even cycle length, got %d", len(sol))
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.reset()
	keys := deriveKeys(header)
	graph, us, vs := e.graph, e.us, e.vs

	for nonce := uint64(0); nonce < e.easiness; nonce++ {
		u0 := uint32(keys.node(nonce, 0, e.edgeMask))
		if u0 == 0 {
			// 0 marks an empty slot
			continue
		}
		v0 := uint32(keys.node(nonce, 1, e.edgeMask))

		us[0], vs[0] = u0, v0
		nu, ok := walk(graph, graph[u0], us)
		if !ok {
			return false, nil
		}
		nv, ok := walk(graph, graph[v0], vs)
		if !ok {
			return false, nil
		}

		if us[nu] == vs[nv] {
			m := nu
			if nv < m {
				m = nv
			}
			nu, nv = nu-m, nv-m
			for us[nu] != vs[nv] {
				nu++
				nv++
			}
			if nu+nv+1 == len(sol) && e.recover(&keys, nu, nv, sol) {
				return true, nil
			}
			continue
		}

		if nu < nv {
			for nu > 0 {
				nu--
				graph[us[nu+1]] = us[nu]
			}
			graph[u0] = v0
		} else {
			for nv > 0 {
				nv--
				graph[vs[nv+1]] = vs[nv]
			}
			graph[v0] = u0
		}
	}

	return false, nil
}

// walk follows parent links from u, storing the path in us[1:]. It
// reports false when the path outgrows MaxPathLen.
func walk(graph []uint32, u uint32, us []uint32) (int, bool) {
	nu := 0
	for u != 0 {
		nu++
		if nu >= MaxPathLen {
			return 0, false
		}
		us[nu] = u
		u = graph[u]
	}
	return nu, true
}

type edge struct {
	u, v uint32
}

// recover turns the two joined paths into the ascending list of edge nonces
func (e *Engine) recover(keys *sipKeys, nu, nv int, sol []uint32) bool {
	us, vs := e.us, e.vs
	cycle := make(map[edge]struct{}, len(sol))
	cycle[edge{us[0], vs[0]}] = struct{}{}
	for nu > 0 {
		nu--
		// u's in even position, v's in odd
		cycle[edge{us[(nu+1)&^1], us[nu|1]}] = struct{}{}
	}
	for nv > 0 {
		nv--
		cycle[edge{vs[nv|1], vs[(nv+1)&^1]}] = struct{}{}
	}

	n := 0
	for nonce := uint64(0); nonce < e.easiness && n < len(sol); nonce++ {
		ed := edge{
			uint32(keys.node(nonce, 0, e.edgeMask)),
			uint32(keys.node(nonce, 1, e.edgeMask)),
		}
		if _, ok := cycle[ed]; ok {
			sol[n] = uint32(nonce)
			n++
			delete(cycle, ed)
		}
	}
	return n == len(sol)
}

func (e *Engine) reset() {
	size := int(e.cfg.Params.NodeCount()) + 1
	if e.graph == nil {
		e.graph = make([]uint32, size)
		e.us = make([]uint32, MaxPathLen)
		e.vs = make([]uint32, MaxPathLen)
		return
	}
	for i := range e.graph {
		e.graph[i] = 0
	}
}

// GetCapabilities returns the capabilities and performance characteristics
func (e *Engine) GetCapabilities() *core.Capabilities {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.caps == nil {
		e.caps = &core.Capabilities{
			Name:            e.Name(),
			Tag:             e.cfg.Params.Tag(),
			InProcess:       true,
			ProductionReady: false,
			ProofSize:       core.ProofSize,
			ThreadCount:     1, // single-threaded search
			MemoryBytes:     MemoryRequired(e.cfg.Params),
		}
	}
	return e.caps
}

// Close drops the graph
func (e *Engine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.graph, e.us, e.vs = nil, nil, nil
	return nil
}
