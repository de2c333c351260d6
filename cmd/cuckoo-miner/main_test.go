package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/factory"
	"cuckoominer/pkg/mining/methods/reference"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestPluginsReport(t *testing.T) {
	base := t.TempDir()
	deps := filepath.Join(base, "deps")
	require.NoError(t, os.MkdirAll(deps, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deps, "libsimple_12.so"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(deps, "libsimple_30.so"), nil, 0o644))

	out, err := execute(t, "plugins", "--base-dir", base, "--sizeshift", "12", "--json")
	require.NoError(t, err)

	var report factory.DetectionReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "simple_12", report.Tag)
	require.Len(t, report.Plugins, 2)
	assert.Equal(t, "simple_12", report.Plugins[0].Tag)
	require.NotEmpty(t, report.Engines)
	assert.Equal(t, "plugin", report.Engines[0].Kind)
	assert.True(t, report.Engines[0].Available)
}

func TestPluginsTable(t *testing.T) {
	out, err := execute(t, "plugins", "--base-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "no engines installed")
	assert.Contains(t, out, "simple_16")
}

func TestMineWithoutPlugins(t *testing.T) {
	_, err := execute(t, "mine", "--base-dir", t.TempDir(), "--sizeshift", "12")
	assert.True(t, errors.Is(err, core.ErrPluginNotFound))
}

func TestMineReferenceFallback(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("preferred_order: [plugin, reference]\nenable_fallback: true\n"), 0o644))

	_, err := execute(t, "mine", "--config", conf, "--base-dir", t.TempDir(),
		"--sizeshift", "12", "--attempts", "4", "--solutions", "0")
	assert.NoError(t, err)
}

func TestVerify(t *testing.T) {
	params, err := core.NewCycleParameters(50, 12)
	require.NoError(t, err)
	engine, err := reference.New(core.WorkerConfig{Params: params})
	require.NoError(t, err)
	defer engine.Close()

	header := make([]byte, headerSize)
	sol := make([]uint32, 6)
	var nonce uint64
	found := false
	for nonce = 0; nonce < 256 && !found; nonce++ {
		binary.BigEndian.PutUint64(header[headerSize-8:], nonce)
		found, err = engine.Mine(header, sol)
		require.NoError(t, err)
	}
	require.True(t, found, "no 6-cycle in 256 headers")
	nonce--

	args := []string{"verify", "--sizeshift", "12", "--proof-size", "6", "--nonce", strconv.FormatUint(nonce, 10)}
	for _, n := range sol {
		args = append(args, strconv.FormatUint(uint64(n), 10))
	}
	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	args[len(args)-1] = "0x0"
	_, err = execute(t, args...)
	assert.Error(t, err)
}

func TestVerifyProofLength(t *testing.T) {
	_, err := execute(t, "verify", "1", "2", "3")
	assert.True(t, errors.Is(err, reference.ErrProofLength))
}

func TestParseNonces(t *testing.T) {
	nonces, err := parseNonces([]string{"7", "0x1f"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{7, 31}, nonces)

	_, err = parseNonces([]string{"4294967296"})
	assert.Error(t, err)
}
