package configs

import (
	"math/big"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()

	cfg, err := DefaultConfig()
	require.NoError(t, err)

	cfg.Wallet.PrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	cfg.Chains.Local.RPCURL = "http://localhost:18545"
	cfg.Chains.Native.RPCURL = "http://localhost:28545"

	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, uint32(40231), cfg.Chains.Local.EndpointID)
	assert.Equal(t, uint32(40232), cfg.Chains.Native.EndpointID)
	assert.Equal(t, uint32(40161), cfg.MainChainEndpointID)
	assert.Equal(t, "0x8FE6B999Dc680CcFDD5Bf7EB0974218be2542DAA", cfg.Chains.Local.CCTPTokenMessenger)
	assert.Equal(t, "0xE737e5cEBEEBa77EFE34D4aa090756590b1CE275", cfg.Chains.Native.CCTPMessageTransmitter)
	assert.Equal(t, uint32(1000), cfg.Transfer.FinalityThreshold)
	assert.Equal(t, 3*time.Minute, cfg.ConfirmationTimeout)
	assert.Equal(t, RecordBackendFile, cfg.Record.Backend)
	assert.True(t, cfg.Patch.PreserveOnchainValues)

	fee, err := cfg.Transfer.MaxFeeInt()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), fee)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("complete configuration passes", func(t *testing.T) {
		cfg := validConfig(t)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("defaults alone miss rpc urls and key", func(t *testing.T) {
		cfg, err := DefaultConfig()
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wallet.private-key failed on 'required'")
		assert.Contains(t, err.Error(), "chains.local.rpc-url failed on 'required'")
		assert.Contains(t, err.Error(), "chains.native.rpc-url failed on 'required'")
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Chains.Local.Token = "0x1234"
		cfg.Wallet.Owner = "not-an-address"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chains.local.token failed on 'eth_addr'")
		assert.Contains(t, err.Error(), "wallet.owner failed on 'eth_addr'")
	})

	t.Run("rejects identical endpoint ids", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Chains.Native.EndpointID = cfg.Chains.Local.EndpointID

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint-id must differ")
	})

	t.Run("redis backend requires addr and key", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Record.Backend = RecordBackendRedis
		cfg.Record.Redis.Key = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record.redis.addr is required")
		assert.Contains(t, err.Error(), "record.redis.key is required")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Record.Backend = "s3"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record.backend must be either")
	})
}

func TestTransfer_MaxFeeInt(t *testing.T) {
	_, err := (&Transfer{MaxFee: "-1"}).MaxFeeInt()
	assert.Error(t, err)

	_, err = (&Transfer{MaxFee: "1e6"}).MaxFeeInt()
	assert.Error(t, err)
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	require.NoError(t, SetDefaults(v))

	v.Set("chains.local.rpc-url", "http://override:8545")

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "http://override:8545", cfg.Chains.Local.RPCURL)
	assert.Equal(t, uint32(40232), cfg.Chains.Native.EndpointID)
}
