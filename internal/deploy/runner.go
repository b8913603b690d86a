package deploy

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/compose-network/bridge-deployer/internal/chain"
	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/metrics"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
)

// runner executes the ordered steps of one chain run. Each step returns only once confirmed.
type runner struct {
	chain    record.ChainRole
	client   chain.Client
	set      contracts.Set
	metrics  *metrics.Recorder
	logger   *slog.Logger
	deployed map[record.ContractRole]common.Address
}

func newRunner(role record.ChainRole, client chain.Client, set contracts.Set, rec *metrics.Recorder, log *slog.Logger) *runner {
	return &runner{
		chain:    role,
		client:   client,
		set:      set,
		metrics:  rec,
		logger:   log,
		deployed: make(map[record.ContractRole]common.Address),
	}
}

func (r *runner) deploy(ctx context.Context, step int, role record.ContractRole, name contracts.Name, args ...any) (common.Address, error) {
	action := "deploy " + string(name)

	contract, err := r.set.Get(name)
	if err != nil {
		return common.Address{}, r.fail(step, action, err)
	}

	start := time.Now()
	address, txHash, err := r.client.Deploy(ctx, contract, args...)
	r.metrics.ObserveTx(string(r.chain), "deploy", time.Since(start), err)
	if err != nil {
		return common.Address{}, r.fail(step, action, err)
	}

	r.deployed[role] = address
	r.logger.
		With("step", step).
		With("contract", name).
		With("address", address.Hex()).
		With("tx_hash", txHash.Hex()).
		Info("contract deployed")

	return address, nil
}

func (r *runner) transact(ctx context.Context, step int, name contracts.Name, at common.Address, method string, args ...any) error {
	action := string(name) + "." + method

	contract, err := r.set.Get(name)
	if err != nil {
		return r.fail(step, action, err)
	}

	start := time.Now()
	txHash, err := r.client.Transact(ctx, contract, at, method, args...)
	r.metrics.ObserveTx(string(r.chain), method, time.Since(start), err)
	if err != nil {
		return r.fail(step, action, err)
	}

	r.logger.
		With("step", step).
		With("contract", name).
		With("method", method).
		With("tx_hash", txHash.Hex()).
		Info("transaction confirmed")

	return nil
}

func (r *runner) fail(step int, action string, err error) error {
	return &StepError{
		Chain:    r.chain,
		Step:     step,
		Action:   action,
		Deployed: maps.Clone(r.deployed),
		Err:      err,
	}
}

// preflight logs the signer, its balance and the configured owner before the first transaction.
func preflight(ctx context.Context, client chain.Client, owner common.Address, log *slog.Logger) {
	balance, err := client.Balance(ctx)
	if err != nil {
		log.With("err", err.Error()).Warn("could not read deployer balance")
	} else {
		log.With("from", client.From().Hex()).With("balance_wei", balance.String()).Info("deployer wallet")
	}

	if owner != client.From() {
		log.With("owner", owner.Hex()).With("from", client.From().Hex()).Info("contracts will be owned by a different account than the deployer")
	}
}
