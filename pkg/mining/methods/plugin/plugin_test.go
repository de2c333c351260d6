package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/methods/stub"
)

type panickyEngine struct{}

func (panickyEngine) Name() string { return "panicky" }

func (panickyEngine) Mine(header []byte, sol []uint32) (bool, error) {
	panic("segfault in plugin")
}

func (panickyEngine) GetCapabilities() *core.Capabilities { return nil }
func (panickyEngine) Close() error                        { return nil }

type sizedEngine struct {
	*stub.Engine
	proofSize int
}

func (e *sizedEngine) GetCapabilities() *core.Capabilities {
	caps := e.Engine.GetCapabilities()
	caps.ProofSize = e.proofSize
	return caps
}

func testConfig() core.WorkerConfig {
	return core.WorkerConfig{
		EnginePath:  "/x/deps/libsimple16",
		ThreadCount: 4,
		Params:      core.CycleParameters{Ease: 50, Sizeshift: 16},
	}
}

func TestWrapDelegates(t *testing.T) {
	cfg := testConfig()
	inner := stub.New(cfg, stub.Found(1, 2, 3, 4))
	e, err := Wrap(inner, cfg, "simple_16")
	require.NoError(t, err)

	sol := make([]uint32, 4)
	found, err := e.Mine([]byte("header"), sol)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []uint32{1, 2, 3, 4}, sol)
	assert.Equal(t, 1, inner.Calls())

	caps := e.GetCapabilities()
	assert.Equal(t, "/x/deps/libsimple16", caps.Path)
	assert.Equal(t, "simple_16", caps.Tag)
	assert.False(t, caps.InProcess)
	assert.Equal(t, "Plugin Stub Engine", e.Name())
	assert.Same(t, inner, e.Unwrap())

	require.NoError(t, e.Close())
	assert.True(t, inner.Closed())
}

func TestWrapRejectsTagMismatch(t *testing.T) {
	cfg := testConfig()
	_, err := Wrap(stub.New(cfg, stub.Miss()), cfg, "simple_20")
	assert.Error(t, err)

	other := cfg
	other.Params.Sizeshift = 20
	_, err = Wrap(stub.New(other, stub.Miss()), cfg, "simple_16")
	assert.Error(t, err)

	_, err = Wrap(nil, cfg, "simple_16")
	assert.Error(t, err)
}

func TestPanicBecomesFault(t *testing.T) {
	cfg := testConfig()
	e, err := Wrap(panickyEngine{}, cfg, "simple_16")
	require.NoError(t, err)

	found, err := e.Mine(make([]byte, 80), make([]uint32, core.ProofSize))
	assert.False(t, found)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segfault in plugin")
}

func TestProofSizeMismatchIsFault(t *testing.T) {
	cfg := testConfig()
	inner := &sizedEngine{Engine: stub.New(cfg, stub.Found(1, 2)), proofSize: 2}
	e, err := Wrap(inner, cfg, "simple_16")
	require.NoError(t, err)

	_, err = e.Mine(make([]byte, 80), make([]uint32, core.ProofSize))
	assert.Error(t, err)
}

func TestFaultPassesThrough(t *testing.T) {
	cfg := testConfig()
	cause := errors.New("cuda out of memory")
	e, err := Wrap(stub.New(cfg, stub.Fault(cause)), cfg, "simple_16")
	require.NoError(t, err)

	_, err = e.Mine(make([]byte, 80), make([]uint32, core.ProofSize))
	assert.ErrorIs(t, err, cause)
}

type crashOnClose struct{ panickyEngine }

func (crashOnClose) Close() error { panic("double free") }

func TestClosePanicBecomesError(t *testing.T) {
	cfg := testConfig()
	e, err := Wrap(crashOnClose{}, cfg, "simple_16")
	require.NoError(t, err)

	err = e.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "double free")
}

type countingEngine struct {
	*stub.Engine
	capsCalls int
	nameCalls int
}

func (e *countingEngine) Name() string {
	e.nameCalls++
	return e.Engine.Name()
}

func (e *countingEngine) GetCapabilities() *core.Capabilities {
	e.capsCalls++
	return e.Engine.GetCapabilities()
}

func TestWrapReadsPluginOnce(t *testing.T) {
	cfg := testConfig()
	inner := &countingEngine{Engine: stub.New(cfg, stub.Miss())}
	e, err := Wrap(inner, cfg, "simple_16")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_ = e.Name()
		_ = e.GetCapabilities()
	}
	assert.Equal(t, 1, inner.capsCalls)
	assert.Equal(t, 1, inner.nameCalls)
}
