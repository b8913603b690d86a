package record

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	senderAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bridgeAddr   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	jobAddr      = common.HexToAddress("0x1000000000000000000000000000000000000003")
	receiverAddr = common.HexToAddress("0x2000000000000000000000000000000000000001")
)

func localEntry() ChainEntry {
	return NewChainEntry(40231, map[ContractRole]common.Address{
		ContractSender: senderAddr,
		ContractBridge: bridgeAddr,
		ContractJob:    jobAddr,
	})
}

func nativeEntry() ChainEntry {
	return NewChainEntry(40232, map[ContractRole]common.Address{
		ContractReceiver: receiverAddr,
		ContractBridge:   common.HexToAddress("0x2000000000000000000000000000000000000002"),
		ContractJob:      common.HexToAddress("0x2000000000000000000000000000000000000003"),
	})
}

func receiverBinding() Binding {
	return Binding{
		Chain:          ChainLocal,
		Contract:       ContractSender,
		Field:          "cctpReceiver",
		Placeholder:    Placeholder,
		SourceChain:    ChainNative,
		SourceContract: ContractReceiver,
	}
}

func TestUpsertChainEntry(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		once := UpsertChainEntry(New(), ChainLocal, localEntry())
		twice := UpsertChainEntry(once, ChainLocal, localEntry())

		assert.Equal(t, once, twice)
		assert.Len(t, twice.Chains, 1)
	})

	t.Run("commutative across roles", func(t *testing.T) {
		a := UpsertChainEntry(UpsertChainEntry(New(), ChainLocal, localEntry()), ChainNative, nativeEntry())
		b := UpsertChainEntry(UpsertChainEntry(New(), ChainNative, nativeEntry()), ChainLocal, localEntry())

		assert.Equal(t, a, b)
	})

	t.Run("replaces the entry for the same role", func(t *testing.T) {
		first := UpsertChainEntry(New(), ChainLocal, localEntry())
		replacement := NewChainEntry(40231, map[ContractRole]common.Address{ContractSender: receiverAddr})

		out := UpsertChainEntry(first, ChainLocal, replacement)

		assert.Len(t, out.Chains, 1)
		assert.Equal(t, replacement, out.Chains[ChainLocal])
	})

	t.Run("does not mutate its input", func(t *testing.T) {
		in := UpsertChainEntry(New(), ChainLocal, localEntry())
		entry := nativeEntry()

		_ = UpsertChainEntry(in, ChainNative, entry)
		entry.Contracts[ContractReceiver] = senderAddr

		assert.Len(t, in.Chains, 1)
		_, ok := in.Entry(ChainNative)
		assert.False(t, ok)
	})

	t.Run("works on a zero record", func(t *testing.T) {
		out := UpsertChainEntry(Record{}, ChainLocal, localEntry())
		assert.Equal(t, localEntry(), out.Chains[ChainLocal])
	})
}

func TestBindings(t *testing.T) {
	r := OpenBinding(New(), receiverBinding())
	require.Len(t, r.PendingBindings, 1)

	// reopening the same slot does not duplicate it
	r = OpenBinding(r, receiverBinding())
	require.Len(t, r.PendingBindings, 1)

	closed := CloseBinding(r, receiverBinding())
	assert.Nil(t, closed.PendingBindings)
	assert.Len(t, r.PendingBindings, 1, "input must stay untouched")

	assert.Equal(t, "local.sender.cctpReceiver <- native.receiver", receiverBinding().String())
}

func TestRecord_Complete(t *testing.T) {
	r := UpsertChainEntry(New(), ChainLocal, localEntry())
	assert.False(t, r.Complete())

	r = UpsertChainEntry(r, ChainNative, nativeEntry())
	assert.True(t, r.Complete())

	r = OpenBinding(r, receiverBinding())
	assert.False(t, r.Complete())
}

func TestChainEntry_JSON(t *testing.T) {
	data, err := json.Marshal(localEntry())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"sender": "0x1000000000000000000000000000000000000001",
		"bridge": "0x1000000000000000000000000000000000000002",
		"job": "0x1000000000000000000000000000000000000003",
		"chainId": 40231
	}`, string(data))

	var decoded ChainEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, localEntry(), decoded)
}

func TestChainEntry_UnmarshalJSON_Errors(t *testing.T) {
	tests := map[string]string{
		"missing chain id": `{"sender": "0x1000000000000000000000000000000000000001"}`,
		"bad address":      `{"sender": "0x12", "chainId": 1}`,
		"non string":       `{"sender": 5, "chainId": 1}`,
		"bad chain id":     `{"chainId": "one"}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			var entry ChainEntry
			assert.Error(t, json.Unmarshal([]byte(input), &entry))
		})
	}
}

func TestChainEntry_MarshalJSON_RejectsReservedRole(t *testing.T) {
	entry := NewChainEntry(1, map[ContractRole]common.Address{"chainId": senderAddr})
	_, err := json.Marshal(entry)
	assert.Error(t, err)
}
