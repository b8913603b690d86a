package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/compose-network/bridge-deployer/internal/metrics"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDeployer struct {
	mock.Mock
}

func (m *mockDeployer) Deploy(ctx context.Context) (record.ChainEntry, error) {
	args := m.Called(ctx)
	return args.Get(0).(record.ChainEntry), args.Error(1)
}

type mockPatcher struct {
	mock.Mock
}

func (m *mockPatcher) Run(ctx context.Context) (record.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).(record.Record), args.Error(1)
}

var binding = record.Binding{
	Chain:          record.ChainLocal,
	Contract:       record.ContractSender,
	Field:          "cctpReceiver",
	SourceChain:    record.ChainNative,
	SourceContract: record.ContractReceiver,
}

func entry(chainID uint32, seed byte) record.ChainEntry {
	return record.NewChainEntry(chainID, map[record.ContractRole]common.Address{
		record.ContractBridge: common.BytesToAddress([]byte{seed}),
	})
}

type harness struct {
	store   record.Store
	local   *mockDeployer
	native  *mockDeployer
	patcher *mockPatcher
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   record.NewFileStore(filepath.Join(t.TempDir(), "record.json")),
		local:   &mockDeployer{},
		native:  &mockDeployer{},
		patcher: &mockPatcher{},
	}
	h.orch = NewOrchestrator(h.store, h.local, h.native, h.patcher, metrics.New())

	return h
}

func (h *harness) save(t *testing.T, r record.Record) {
	t.Helper()
	require.NoError(t, h.store.Save(context.Background(), r))
}

func (h *harness) load(t *testing.T) record.Record {
	t.Helper()
	r, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return r
}

// the mocks write to the store the way the real deployers do
func (h *harness) expectLocal(t *testing.T, e record.ChainEntry) {
	h.local.On("Deploy", mock.Anything).Return(e, nil).Once().Run(func(mock.Arguments) {
		r, err := h.store.Load(context.Background())
		if errors.Is(err, record.ErrNotFound) {
			r = record.New()
		}
		r = record.UpsertChainEntry(r, record.ChainLocal, e)
		h.save(t, record.OpenBinding(r, binding))
	})
}

func (h *harness) expectNative(t *testing.T, e record.ChainEntry, patchErr error) {
	h.native.On("Deploy", mock.Anything).Return(e, patchErr).Once().Run(func(mock.Arguments) {
		r := record.UpsertChainEntry(h.load(t), record.ChainNative, e)
		if patchErr == nil {
			r = record.CloseBinding(r, binding)
		}
		h.save(t, r)
	})
}

func (h *harness) expectPatch(t *testing.T) {
	h.patcher.On("Run", mock.Anything).Return(record.Record{}, nil).Once().Run(func(mock.Arguments) {
		h.save(t, record.CloseBinding(h.load(t), binding))
	})
}

func (h *harness) assertExpectations(t *testing.T) {
	h.local.AssertExpectations(t)
	h.native.AssertExpectations(t)
	h.patcher.AssertExpectations(t)
}

func TestNextStage(t *testing.T) {
	r := record.New()
	assert.Equal(t, StageLocal, NextStage(r))

	r = record.OpenBinding(record.UpsertChainEntry(r, record.ChainLocal, entry(40231, 1)), binding)
	assert.Equal(t, StageNative, NextStage(r))

	r = record.UpsertChainEntry(r, record.ChainNative, entry(40232, 2))
	assert.Equal(t, StagePatch, NextStage(r))

	r = record.CloseBinding(r, binding)
	assert.Equal(t, StageCompleted, NextStage(r))
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage("native")
	require.NoError(t, err)
	assert.Equal(t, StageNative, stage)

	_, err = ParseStage("completed")
	assert.Error(t, err)
	_, err = ParseStage("mainnet")
	assert.Error(t, err)
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh deployment runs local then native", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocal(t, entry(40231, 1))
		h.expectNative(t, entry(40232, 2), nil)

		result, err := h.orch.Run(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, []Stage{StageLocal, StageNative}, result.Executed)
		assert.Equal(t, []Stage{StagePatch}, result.Skipped)
		assert.True(t, result.Record.Complete())
		h.assertExpectations(t)
	})

	t.Run("resumes after the local stage", func(t *testing.T) {
		h := newHarness(t)
		h.save(t, record.OpenBinding(record.UpsertChainEntry(record.New(), record.ChainLocal, entry(40231, 1)), binding))
		h.expectNative(t, entry(40232, 2), nil)

		result, err := h.orch.Run(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, []Stage{StageNative}, result.Executed)
		h.local.AssertNotCalled(t, "Deploy", mock.Anything)
		h.assertExpectations(t)
	})

	t.Run("patch failure stops and the next run only patches", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocal(t, entry(40231, 1))
		h.expectNative(t, entry(40232, 2), errors.New("setCCTPConfig reverted"))

		result, err := h.orch.Run(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage native failed")
		assert.Equal(t, []Stage{StageLocal}, result.Executed)

		h.expectPatch(t)
		result, err = h.orch.Run(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []Stage{StagePatch}, result.Executed)
		assert.True(t, h.load(t).Complete())
		h.assertExpectations(t)
	})

	t.Run("complete deployment does nothing", func(t *testing.T) {
		h := newHarness(t)
		r := record.UpsertChainEntry(record.New(), record.ChainLocal, entry(40231, 1))
		h.save(t, record.UpsertChainEntry(r, record.ChainNative, entry(40232, 2)))

		result, err := h.orch.Run(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, result.Executed)
		h.assertExpectations(t)
	})

	t.Run("forcing local re-patches the existing native receiver", func(t *testing.T) {
		h := newHarness(t)
		r := record.UpsertChainEntry(record.New(), record.ChainLocal, entry(40231, 1))
		h.save(t, record.UpsertChainEntry(r, record.ChainNative, entry(40232, 2)))
		h.expectLocal(t, entry(40231, 3))
		h.expectPatch(t)

		result, err := h.orch.Run(ctx, StageLocal)
		require.NoError(t, err)

		assert.Equal(t, []Stage{StageLocal, StagePatch}, result.Executed)
		assert.Equal(t, []Stage{StageNative}, result.Skipped)
		assert.Equal(t, entry(40231, 3), h.load(t).Chains[record.ChainLocal])
		h.assertExpectations(t)
	})

	t.Run("unknown forced stage", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.orch.Run(ctx, "mainnet")
		assert.Error(t, err)
	})
}
