// Package miner drives a mining worker over a stream of headers and applies
// the caller-side error policy.
package miner

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cuckoominer/pkg/mining/core"
)

// Worker is the part of worker.Worker the loop needs
type Worker interface {
	Mine(header []byte) (core.Proof, error)
	EngineName() string
	Config() core.WorkerConfig
	Close() error
}

// Builder constructs a fresh worker. It is called once at start and again
// after every engine fault.
type Builder func() (Worker, error)

// Solution is a proof together with the header it was found for
type Solution struct {
	Nonce  uint64     `json:"nonce"`
	Header []byte     `json:"header"`
	Proof  core.Proof `json:"proof"`
}

// MarshalJSON encodes the header as hex, the form verify --header accepts
func (s Solution) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Nonce  uint64     `json:"nonce"`
		Header string     `json:"header"`
		Proof  core.Proof `json:"proof"`
	}{
		Nonce:  s.Nonce,
		Header: hex.EncodeToString(s.Header),
		Proof:  s.Proof,
	})
}

// Stats tracks loop activity
type Stats struct {
	Attempts   uint64
	Solutions  uint64
	Misses     uint64
	Faults     uint64
	Reinits    uint64
	Engine     string
	EnginePath string
	LastNonce  uint64
	Started    time.Time
	mu         sync.RWMutex
}

// StatsSnapshot is a copy of Stats without synchronization
type StatsSnapshot struct {
	Attempts   uint64    `json:"attempts"`
	Solutions  uint64    `json:"solutions"`
	Misses     uint64    `json:"misses"`
	Faults     uint64    `json:"faults"`
	Reinits    uint64    `json:"reinits"`
	Engine     string    `json:"engine"`
	EnginePath string    `json:"engine_path"`
	LastNonce  uint64    `json:"last_nonce"`
	Started    time.Time `json:"started"`
	Running    bool      `json:"running"`
}

// Option configures a Loop
type Option func(*Loop)

// WithMaxReinit bounds how many times a faulted worker is rebuilt
func WithMaxReinit(n int) Option {
	return func(l *Loop) { l.maxReinit = n }
}

// WithMaxSolutions stops the loop after n proofs; 0 means unbounded
func WithMaxSolutions(n uint64) Option {
	return func(l *Loop) { l.maxSolutions = n }
}

// WithMaxAttempts stops the loop after n headers; 0 means unbounded
func WithMaxAttempts(n uint64) Option {
	return func(l *Loop) { l.maxAttempts = n }
}

// WithSolutionHandler receives every proof; a handler error stops the loop
func WithSolutionHandler(fn func(Solution) error) Option {
	return func(l *Loop) { l.onSolution = fn }
}

// WithLogger sets the loop logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop mines successive headers with one worker at a time
type Loop struct {
	build   Builder
	headers HeaderSource
	logger  *zap.Logger

	maxReinit    int
	maxSolutions uint64
	maxAttempts  uint64
	onSolution   func(Solution) error

	stats   Stats
	running bool
}

// New creates a loop
func New(build Builder, headers HeaderSource, opts ...Option) *Loop {
	l := &Loop{
		build:     build,
		headers:   headers,
		logger:    zap.NewNop(),
		maxReinit: 3,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run mines until ctx is cancelled, a limit is reached or the worker cannot
// be kept alive. ErrNoSolution advances to the next header; an engine fault
// rebuilds the worker up to the reinit limit and then returns the fault.
// Reaching a limit returns nil.
func (l *Loop) Run(ctx context.Context) error {
	w, err := l.build()
	if err != nil {
		return err
	}
	l.begin(w)
	defer func() {
		l.end()
		w.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if l.maxAttempts > 0 && l.Stats().Attempts >= l.maxAttempts {
			return nil
		}

		header, nonce := l.headers.Next()
		proof, err := w.Mine(header)

		switch {
		case err == nil:
			solutions := l.record(nonce, func(s *Stats) { s.Solutions++ })
			l.logger.Info("cycle found", zap.Uint64("nonce", nonce), zap.Stringer("proof", proof))
			if l.onSolution != nil {
				if err := l.onSolution(Solution{Nonce: nonce, Header: header, Proof: proof}); err != nil {
					return err
				}
			}
			if l.maxSolutions > 0 && solutions >= l.maxSolutions {
				return nil
			}

		case errors.Is(err, core.ErrNoSolution):
			l.record(nonce, func(s *Stats) { s.Misses++ })

		case errors.Is(err, core.ErrEngineInvocationFailed):
			l.record(nonce, func(s *Stats) { s.Faults++ })
			reinits := l.Stats().Reinits
			if reinits >= uint64(l.maxReinit) {
				l.logger.Error("engine fault, giving up",
					zap.Uint64("nonce", nonce), zap.Uint64("reinits", reinits), zap.Error(err))
				return err
			}
			l.logger.Warn("engine fault, rebuilding worker", zap.Uint64("nonce", nonce), zap.Error(err))

			w.Close()
			fresh, buildErr := l.build()
			if buildErr != nil {
				// keep the deferred Close harmless
				w = closedWorker{w}
				return buildErr
			}
			w = fresh
			l.stats.mu.Lock()
			l.stats.Reinits++
			l.stats.Engine = w.EngineName()
			l.stats.EnginePath = w.Config().EnginePath
			l.stats.mu.Unlock()

		default:
			return err
		}
	}
}

// Stats returns a snapshot of the loop counters
func (l *Loop) Stats() StatsSnapshot {
	l.stats.mu.RLock()
	defer l.stats.mu.RUnlock()

	return StatsSnapshot{
		Attempts:   l.stats.Attempts,
		Solutions:  l.stats.Solutions,
		Misses:     l.stats.Misses,
		Faults:     l.stats.Faults,
		Reinits:    l.stats.Reinits,
		Engine:     l.stats.Engine,
		EnginePath: l.stats.EnginePath,
		LastNonce:  l.stats.LastNonce,
		Started:    l.stats.Started,
		Running:    l.running,
	}
}

func (l *Loop) begin(w Worker) {
	l.stats.mu.Lock()
	defer l.stats.mu.Unlock()

	l.running = true
	l.stats.Started = time.Now()
	l.stats.Engine = w.EngineName()
	l.stats.EnginePath = w.Config().EnginePath
}

func (l *Loop) end() {
	l.stats.mu.Lock()
	defer l.stats.mu.Unlock()
	l.running = false
}

// record bumps the attempt counter plus whatever update sets, returning the
// solution count afterwards
func (l *Loop) record(nonce uint64, update func(*Stats)) uint64 {
	l.stats.mu.Lock()
	defer l.stats.mu.Unlock()

	l.stats.Attempts++
	l.stats.LastNonce = nonce
	update(&l.stats)
	return l.stats.Solutions
}

// closedWorker wraps a worker that has already been closed
type closedWorker struct {
	Worker
}

func (closedWorker) Close() error { return nil }
