package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	defaultRPCAttempts = 60
	defaultRPCInterval = time.Second
)

type (
	// EthDialer opens go-ethereum clients signing with one key.
	EthDialer struct {
		privateKey          *ecdsa.PrivateKey
		confirmationTimeout time.Duration
		rpcAttempts         int
		rpcInterval         time.Duration
	}

	// backend is the part of an RPC client EthClient needs: contract binding, receipts and the
	// deployer's balance.
	backend interface {
		bind.ContractBackend
		bind.DeployBackend
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
		ChainID(ctx context.Context) (*big.Int, error)
	}

	EthClient struct {
		client              backend
		closeFn             func()
		privateKey          *ecdsa.PrivateKey
		from                common.Address
		chainID             *big.Int
		confirmationTimeout time.Duration
		logger              *slog.Logger
	}
)

func NewEthDialer(privateKeyHex string, confirmationTimeout time.Duration) (*EthDialer, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	return &EthDialer{
		privateKey:          privateKey,
		confirmationTimeout: confirmationTimeout,
		rpcAttempts:         defaultRPCAttempts,
		rpcInterval:         defaultRPCInterval,
	}, nil
}

func (d *EthDialer) Dial(ctx context.Context, rpcURL string) (Client, error) {
	log := logger.Named("chain_client").With("url", rpcURL)

	log.Info("waiting for RPC")
	if err := waitForRPC(ctx, rpcURL, d.rpcAttempts, d.rpcInterval); err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	ethClient, err := newEthClient(ctx, client, client.Close, d.privateKey, d.confirmationTimeout, log)
	if err != nil {
		client.Close()
		return nil, err
	}

	return ethClient, nil
}

func newEthClient(
	ctx context.Context,
	client backend,
	closeFn func(),
	privateKey *ecdsa.PrivateKey,
	confirmationTimeout time.Duration,
	log *slog.Logger) (*EthClient, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	from, err := addressOf(privateKey)
	if err != nil {
		return nil, err
	}

	log.With("chain_id", chainID).With("from", from.Hex()).Info("connected to chain")

	return &EthClient{
		client:              client,
		closeFn:             closeFn,
		privateKey:          privateKey,
		from:                from,
		chainID:             chainID,
		confirmationTimeout: confirmationTimeout,
		logger:              log.With("chain_id", chainID),
	}, nil
}

func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *EthClient) From() common.Address {
	return c.from
}

func (c *EthClient) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", c.from.Hex(), err)
	}

	return balance, nil
}

func (c *EthClient) Deploy(ctx context.Context, contract contracts.Contract, args ...any) (common.Address, common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmationTimeout)
	defer cancel()

	auth, err := c.transactor(ctx)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	address, tx, _, err := bind.DeployContract(auth, contract.ABI, contract.Bytecode, c.client, args...)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("failed to deploy %s: %w", contract.Name, err)
	}

	c.logger.
		With("contract", contract.Name).
		With("address", address.Hex()).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return common.Address{}, tx.Hash(), fmt.Errorf("deployment of %s: %w", contract.Name, err)
	}
	if receipt.ContractAddress != (common.Address{}) {
		address = receipt.ContractAddress
	}

	return address, tx.Hash(), nil
}

func (c *EthClient) Transact(ctx context.Context, contract contracts.Contract, at common.Address, method string, args ...any) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmationTimeout)
	defer cancel()

	auth, err := c.transactor(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	bound := bind.NewBoundContract(at, contract.ABI, c.client, c.client, c.client)
	tx, err := bound.Transact(auth, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s.%s: %w", contract.Name, method, err)
	}

	c.logger.
		With("contract", contract.Name).
		With("method", method).
		With("tx_hash", tx.Hash().Hex()).
		Info("transaction sent")

	if _, err := c.waitMined(ctx, tx); err != nil {
		return tx.Hash(), fmt.Errorf("%s.%s: %w", contract.Name, method, err)
	}

	return tx.Hash(), nil
}

func (c *EthClient) Call(ctx context.Context, contract contracts.Contract, at common.Address, method string, args ...any) ([]any, error) {
	bound := bind.NewBoundContract(at, contract.ABI, c.client, c.client, c.client)

	var out []any
	if err := bound.Call(&bind.CallOpts{Context: ctx, From: c.from}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s.%s: %w", contract.Name, method, err)
	}

	return out, nil
}

func (c *EthClient) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

func (c *EthClient) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	return auth, nil
}

func (c *EthClient) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tx %s after %s", ErrConfirmationTimeout, tx.Hash().Hex(), c.confirmationTimeout)
		}
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: tx %s in block %s", ErrTxReverted, tx.Hash().Hex(), receipt.BlockNumber)
	}

	return receipt, nil
}
