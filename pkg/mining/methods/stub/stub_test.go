package stub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuckoominer/pkg/mining/core"
)

func TestScriptedResults(t *testing.T) {
	e := New(core.WorkerConfig{}, Miss())
	e.Script([]byte("h1"), Found(1, 2, 3))
	e.Script([]byte("h2"), Fault(nil))

	sol := make([]uint32, 3)
	found, err := e.Mine([]byte("h1"), sol)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []uint32{1, 2, 3}, sol)

	found, err = e.Mine([]byte("h2"), sol)
	assert.False(t, found)
	assert.True(t, errors.Is(err, ErrInjectedFault))

	found, err = e.Mine([]byte("other"), sol)
	assert.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 3, e.Calls())
	assert.Equal(t, core.BuiltinPath(Kind), e.Config().EnginePath)
}

func TestLengthMismatchIsFault(t *testing.T) {
	e := New(core.WorkerConfig{}, Found(1, 2))
	_, err := e.Mine(nil, make([]uint32, 4))
	assert.Error(t, err)
}

func TestClosedEngineFaults(t *testing.T) {
	e := New(core.WorkerConfig{}, Miss())
	require.NoError(t, e.Close())
	_, err := e.Mine(nil, make([]uint32, 4))
	assert.Error(t, err)
	assert.True(t, e.Closed())
}

func TestSequence(t *testing.T) {
	seq := Sequence(core.ProofSize, 3, 17, 22)
	require.Len(t, seq, core.ProofSize)
	assert.Equal(t, []uint32{3, 17, 22, 29, 36}, seq[:5])
	assert.Equal(t, []uint32{7, 14}, Sequence(2))
}
