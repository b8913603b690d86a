// Package chain is the boundary to an EVM chain: deploy a contract, send a state-changing call
// and wait for it to confirm, read a view function.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrTxReverted reports a transaction that was mined with a failed status.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrConfirmationTimeout reports a transaction that did not confirm within the configured wait.
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
)

type (
	// Client talks to one chain as one signer. Every state-changing method returns only after
	// the transaction is confirmed.
	Client interface {
		ChainID() *big.Int
		From() common.Address
		Balance(ctx context.Context) (*big.Int, error)
		Deploy(ctx context.Context, contract contracts.Contract, args ...any) (common.Address, common.Hash, error)
		Transact(ctx context.Context, contract contracts.Contract, at common.Address, method string, args ...any) (common.Hash, error)
		Call(ctx context.Context, contract contracts.Contract, at common.Address, method string, args ...any) ([]any, error)
		Close()
	}

	Dialer interface {
		Dial(ctx context.Context, rpcURL string) (Client, error)
	}
)
