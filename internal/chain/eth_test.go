package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storageABI describes storageBytecode: the constructor argument is kept in slot 0, value()
// returns it and setValue overwrites it.
const storageABI = `[
	{"type":"constructor","inputs":[{"name":"initial","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"value","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"setValue","inputs":[{"name":"v","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

// Runtime: calldata longer than a selector stores its first word in slot 0, anything else
// returns slot 0.
const storageBytecode = "0x60206033600039600051600055601a6019600039601a6000f3" +
	"6004361160125760005460005260206000f35b60043560005500"

func storageContract(t *testing.T) contracts.Contract {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(storageABI))
	require.NoError(t, err)

	return contracts.Contract{
		Name:     "Storage",
		ABI:      parsed,
		RawABI:   storageABI,
		Bytecode: common.FromHex(storageBytecode),
	}
}

type simulatedChain struct {
	backend *simulated.Backend
	key     *ecdsa.PrivateKey
}

func newSimulatedChain(t *testing.T) *simulatedChain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	funds := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
	})
	t.Cleanup(func() { _ = backend.Close() })

	return &simulatedChain{backend: backend, key: key}
}

// mineContinuously seals a block every few milliseconds until the test ends.
func (s *simulatedChain) mineContinuously(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.backend.Commit()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *simulatedChain) client(t *testing.T, b backend, confirmationTimeout time.Duration) *EthClient {
	t.Helper()

	client, err := newEthClient(context.Background(), b, nil, s.key, confirmationTimeout, logger.Named("chain_client_test"))
	require.NoError(t, err)
	return client
}

// failedReceipts reports every mined transaction as reverted.
type failedReceipts struct {
	simulated.Client
}

func (f failedReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := f.Client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	receipt.Status = types.ReceiptStatusFailed
	return receipt, nil
}

func TestEthClient_DeployTransactCall(t *testing.T) {
	sim := newSimulatedChain(t)
	sim.mineContinuously(t)
	client := sim.client(t, sim.backend.Client(), time.Minute)
	contract := storageContract(t)
	ctx := context.Background()

	balance, err := client.Balance(ctx)
	require.NoError(t, err)
	assert.Positive(t, balance.Sign())

	address, txHash, err := client.Deploy(ctx, contract, big.NewInt(42))
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, address)
	assert.Equal(t, crypto.CreateAddress(client.From(), 0), address)

	receipt, err := sim.backend.Client().TransactionReceipt(ctx, txHash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	out, err := client.Call(ctx, contract, address, "value")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(42), out[0].(*big.Int))

	_, err = client.Transact(ctx, contract, address, "setValue", big.NewInt(7))
	require.NoError(t, err)

	out, err = client.Call(ctx, contract, address, "value")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), out[0].(*big.Int))
}

func TestEthClient_RevertedTransaction(t *testing.T) {
	sim := newSimulatedChain(t)
	sim.mineContinuously(t)
	contract := storageContract(t)
	ctx := context.Background()

	address, _, err := sim.client(t, sim.backend.Client(), time.Minute).Deploy(ctx, contract, big.NewInt(1))
	require.NoError(t, err)

	reverting := sim.client(t, failedReceipts{sim.backend.Client()}, time.Minute)

	_, err = reverting.Transact(ctx, contract, address, "setValue", big.NewInt(2))
	require.ErrorIs(t, err, ErrTxReverted)
	assert.Contains(t, err.Error(), "Storage.setValue")

	_, _, err = reverting.Deploy(ctx, contract, big.NewInt(3))
	require.ErrorIs(t, err, ErrTxReverted)
}

func TestEthClient_ConfirmationTimeout(t *testing.T) {
	sim := newSimulatedChain(t)
	client := sim.client(t, sim.backend.Client(), 300*time.Millisecond)

	started := time.Now()
	_, txHash, err := client.Deploy(context.Background(), storageContract(t), big.NewInt(1))
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.NotEqual(t, common.Hash{}, txHash)
	assert.Less(t, time.Since(started), 5*time.Second)
}
