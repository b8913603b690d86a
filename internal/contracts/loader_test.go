package contracts_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/contracts/contractstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, entries map[string]any) string {
	t.Helper()

	data, err := json.Marshal(entries)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), contracts.BundleFileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func fullBundle() map[string]any {
	entries := map[string]any{}
	for name, raw := range contractstest.ABIs {
		entries[string(name)] = map[string]any{"abi": json.RawMessage(raw), "bytecode": "0x6080"}
	}
	return entries
}

func TestLoad(t *testing.T) {
	t.Run("loads every deployment contract", func(t *testing.T) {
		entries := fullBundle()
		entries["Ownable"] = map[string]any{"abi": json.RawMessage(`[]`), "bytecode": "0x"}

		set, err := contracts.Load(writeBundle(t, entries))
		require.NoError(t, err)

		assert.Len(t, set, 6)
		require.NoError(t, set.Require(contracts.All()...))

		sender, err := set.Get(contracts.NameSender)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x60, 0x80}, sender.Bytecode)
		assert.Contains(t, sender.ABI.Methods, contracts.MethodSetCCTPConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := contracts.Load(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid abi", func(t *testing.T) {
		entries := fullBundle()
		entries[string(contracts.NameBridge)] = map[string]any{"abi": json.RawMessage(`{"nope":1}`), "bytecode": "0x60"}

		_, err := contracts.Load(writeBundle(t, entries))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse ABI for LayerZeroBridge")
	})
}

func TestSet_Require(t *testing.T) {
	set := contractstest.Set()
	require.NoError(t, set.Require(contracts.LocalChainContracts...))

	delete(set, contracts.NameReceiver)
	err := set.Require(contracts.NativeChainContracts...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CCTPReceiver")

	job := set[contracts.NameJob]
	job.Bytecode = nil
	set[contracts.NameJob] = job
	err = set.Require(contracts.NameJob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no bytecode")
}

type fakeRunner struct {
	calls [][]string
	err   error
}

func (r *fakeRunner) Run(_ context.Context, dir, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{dir, name}, args...))
	return r.err
}

func writeArtifact(t *testing.T, projectDir, source string, name contracts.Name) {
	t.Helper()

	dir := filepath.Join(projectDir, "artifacts", "contracts", source)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	artifact := map[string]any{
		"contractName": string(name),
		"abi":          json.RawMessage(contractstest.ABIs[name]),
		"bytecode":     "0x6080",
	}
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, string(name)+".json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, string(name)+".dbg.json"), []byte(`{}`), 0o644))
}

func TestCompiler_Compile(t *testing.T) {
	t.Run("bundles hardhat artifacts", func(t *testing.T) {
		projectDir := t.TempDir()
		for _, name := range contracts.All() {
			writeArtifact(t, projectDir, string(name)+".sol", name)
		}
		bundlePath := filepath.Join(t.TempDir(), "out", contracts.BundleFileName)
		runner := &fakeRunner{}

		err := contracts.NewCompiler(projectDir, bundlePath).WithRunner(runner).Compile(context.Background(), contracts.All())
		require.NoError(t, err)

		require.Len(t, runner.calls, 1)
		assert.Equal(t, []string{projectDir, "npx", "hardhat", "compile"}, runner.calls[0])

		set, err := contracts.Load(bundlePath)
		require.NoError(t, err)
		assert.NoError(t, set.Require(contracts.All()...))
	})

	t.Run("missing artifact", func(t *testing.T) {
		projectDir := t.TempDir()
		writeArtifact(t, projectDir, "CCTPSender.sol", contracts.NameSender)

		err := contracts.NewCompiler(projectDir, filepath.Join(t.TempDir(), "b.json")).
			WithRunner(&fakeRunner{}).
			Compile(context.Background(), []contracts.Name{contracts.NameSender, contracts.NameReceiver})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "artifact for 'CCTPReceiver' not found")
	})

	t.Run("build failure", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("exit status 1")}

		err := contracts.NewCompiler(t.TempDir(), filepath.Join(t.TempDir(), "b.json")).
			WithRunner(runner).
			Compile(context.Background(), contracts.All())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hardhat compile failed")
	})
}
