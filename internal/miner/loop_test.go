package miner

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/factory"
	"cuckoominer/pkg/mining/methods/stub"
	"cuckoominer/pkg/mining/worker"
)

// fakeWorker answers each nonce from a table; unknown nonces miss
type fakeWorker struct {
	outcomes map[uint64]error
	proofs   map[uint64]core.Proof
	closed   bool
}

func (w *fakeWorker) Mine(header []byte) (core.Proof, error) {
	nonce := binary.BigEndian.Uint64(header[len(header)-8:])
	if err, ok := w.outcomes[nonce]; ok {
		return core.Proof{}, err
	}
	if p, ok := w.proofs[nonce]; ok {
		return p, nil
	}
	return core.Proof{}, core.ErrNoSolution
}

func (w *fakeWorker) EngineName() string        { return "fake" }
func (w *fakeWorker) Config() core.WorkerConfig { return core.WorkerConfig{EnginePath: "builtin:fake"} }
func (w *fakeWorker) Close() error              { w.closed = true; return nil }

func fault() error {
	return core.WrapError(core.ErrCodeEngineInvocationFailed, stub.ErrInjectedFault, "builtin:fake")
}

func headers(t *testing.T) *NonceHeaders {
	h, err := NewNonceHeaders(make([]byte, 16), 8, 0)
	require.NoError(t, err)
	return h
}

func TestNonceHeaders(t *testing.T) {
	template := []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0}
	h, err := NewNonceHeaders(template, 4, 255)
	require.NoError(t, err)

	first, nonce := h.Next()
	assert.Equal(t, uint64(255), nonce)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0xff}, first)

	second, nonce := h.Next()
	assert.Equal(t, uint64(256), nonce)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 1, 0}, second)
	assert.Equal(t, byte(0xff), first[11])

	_, err = NewNonceHeaders(make([]byte, 10), 4, 0)
	assert.Error(t, err)
}

func TestLoopAdvancesPastMisses(t *testing.T) {
	want := core.NewProof(stub.Sequence(core.ProofSize, 5))
	w := &fakeWorker{proofs: map[uint64]core.Proof{3: want}}

	var got []Solution
	loop := New(func() (Worker, error) { return w, nil }, headers(t),
		WithMaxSolutions(1),
		WithSolutionHandler(func(s Solution) error {
			got = append(got, s)
			return nil
		}))

	require.NoError(t, loop.Run(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].Nonce)
	assert.True(t, got[0].Proof.Equal(want))

	stats := loop.Stats()
	assert.Equal(t, uint64(4), stats.Attempts)
	assert.Equal(t, uint64(3), stats.Misses)
	assert.Equal(t, uint64(1), stats.Solutions)
	assert.Equal(t, "fake", stats.Engine)
	assert.False(t, stats.Running)
	assert.True(t, w.closed)
}

func TestLoopRebuildsAfterFault(t *testing.T) {
	builds := 0
	build := func() (Worker, error) {
		builds++
		return &fakeWorker{
			outcomes: map[uint64]error{1: fault()},
			proofs:   map[uint64]core.Proof{2: core.NewProof([]uint32{1, 2})},
		}, nil
	}

	loop := New(build, headers(t), WithMaxSolutions(1), WithMaxReinit(1))
	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, 2, builds)
	stats := loop.Stats()
	assert.Equal(t, uint64(1), stats.Faults)
	assert.Equal(t, uint64(1), stats.Reinits)
	assert.Equal(t, uint64(1), stats.Solutions)
}

func TestLoopGivesUpAfterMaxReinit(t *testing.T) {
	builds := 0
	build := func() (Worker, error) {
		builds++
		return &fakeWorker{outcomes: map[uint64]error{0: fault(), 1: fault(), 2: fault(), 3: fault()}}, nil
	}

	err := New(build, headers(t), WithMaxReinit(2)).Run(context.Background())
	assert.True(t, errors.Is(err, core.ErrEngineInvocationFailed))
	assert.Equal(t, 3, builds)
}

func TestLoopRebuildFailure(t *testing.T) {
	builds := 0
	build := func() (Worker, error) {
		builds++
		if builds > 1 {
			return nil, core.ErrPluginLoadFailed
		}
		return &fakeWorker{outcomes: map[uint64]error{0: fault()}}, nil
	}

	err := New(build, headers(t)).Run(context.Background())
	assert.True(t, errors.Is(err, core.ErrPluginLoadFailed))
}

func TestLoopInitialBuildFailure(t *testing.T) {
	err := New(func() (Worker, error) { return nil, core.ErrPluginNotFound }, headers(t)).Run(context.Background())
	assert.True(t, errors.Is(err, core.ErrPluginNotFound))
}

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := New(func() (Worker, error) { return &fakeWorker{}, nil }, headers(t))
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
	assert.Equal(t, uint64(0), loop.Stats().Attempts)
}

func TestLoopMaxAttempts(t *testing.T) {
	loop := New(func() (Worker, error) { return &fakeWorker{}, nil }, headers(t), WithMaxAttempts(10))
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, uint64(10), loop.Stats().Misses)
	assert.Equal(t, uint64(9), loop.Stats().LastNonce)
}

func TestLoopHandlerErrorStops(t *testing.T) {
	stop := errors.New("submit rejected")
	w := &fakeWorker{proofs: map[uint64]core.Proof{0: core.NewProof([]uint32{1, 2})}}

	loop := New(func() (Worker, error) { return w, nil }, headers(t),
		WithSolutionHandler(func(Solution) error { return stop }))
	assert.ErrorIs(t, loop.Run(context.Background()), stop)
}

func TestLoopWithRealWorker(t *testing.T) {
	selection := factory.DefaultSelectionConfig()
	selection.PreferredOrder = []string{stub.Kind}
	params, err := core.NewCycleParameters(50, 16)
	require.NoError(t, err)

	build := func() (Worker, error) {
		f := factory.NewEngineFactory(selection, nil)
		if err := f.Register(stub.Kind, stub.Constructor(stub.Found(stub.Sequence(core.ProofSize, 3, 17, 22)...))); err != nil {
			return nil, err
		}
		return worker.New(params, worker.WithFactory(f), worker.WithBaseDir(t.TempDir()))
	}

	var proofs []core.Proof
	loop := New(build, headers(t), WithMaxSolutions(2), WithSolutionHandler(func(s Solution) error {
		proofs = append(proofs, s.Proof)
		return nil
	}))
	require.NoError(t, loop.Run(context.Background()))

	require.Len(t, proofs, 2)
	assert.True(t, proofs[0].Equal(proofs[1]))
	assert.Equal(t, "Stub Engine", loop.Stats().Engine)
}

func TestSolutionJSONHeaderIsHex(t *testing.T) {
	header := make([]byte, 80)
	header[0] = 0xab
	binary.BigEndian.PutUint64(header[72:], 7)

	data, err := json.Marshal(Solution{Nonce: 7, Header: header, Proof: core.NewProof([]uint32{1, 2, 3})})
	require.NoError(t, err)

	var decoded struct {
		Nonce  uint64   `json:"nonce"`
		Header string   `json:"header"`
		Proof  []uint32 `json:"proof"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(7), decoded.Nonce)
	assert.Len(t, decoded.Header, 160)
	assert.Equal(t, "ab", decoded.Header[:2])
	assert.Equal(t, "0000000000000007", decoded.Header[144:])
	assert.Equal(t, []uint32{1, 2, 3}, decoded.Proof)
}
