package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/bridge-deployer/internal/chain"
	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/compose-network/bridge-deployer/internal/metrics"
	"github.com/compose-network/bridge-deployer/internal/record"
)

// SenderReceiverField is the Sender field that holds the native chain's Receiver address.
const SenderReceiverField = "cctpReceiver"

var senderReceiverBinding = record.Binding{
	Chain:          record.ChainLocal,
	Contract:       record.ContractSender,
	Field:          SenderReceiverField,
	Placeholder:    record.Placeholder,
	SourceChain:    record.ChainNative,
	SourceContract: record.ContractReceiver,
}

// SenderReceiverBinding returns the deferred reference the local run leaves open.
func SenderReceiverBinding() record.Binding {
	return senderReceiverBinding
}

// LocalDeployer deploys and wires the Sender, Bridge and JobContract on the local chain.
type LocalDeployer struct {
	env     Environment
	set     contracts.Set
	store   record.Store
	dialer  chain.Dialer
	metrics *metrics.Recorder
	logger  *slog.Logger
}

func NewLocalDeployer(env Environment, set contracts.Set, store record.Store, dialer chain.Dialer, rec *metrics.Recorder) *LocalDeployer {
	return &LocalDeployer{
		env:     env,
		set:     set,
		store:   store,
		dialer:  dialer,
		metrics: rec,
		logger:  logger.Named("local_deployer"),
	}
}

// Deploy runs the local chain steps and persists the "local" entry. The entry is written only
// once every step has confirmed; re-running replaces a previous entry.
func (d *LocalDeployer) Deploy(ctx context.Context) (record.ChainEntry, error) {
	current, err := d.store.Load(ctx)
	switch {
	case errors.Is(err, record.ErrCorrupt):
		return record.ChainEntry{}, &PreconditionError{
			Chain: record.ChainLocal,
			Err:   fmt.Errorf("refusing to overwrite unreadable record at %s: %w", d.store.Location(), err),
		}
	case errors.Is(err, record.ErrNotFound):
		current = record.New()
	case err != nil:
		return record.ChainEntry{}, fmt.Errorf("failed to load deployment record: %w", err)
	}

	if err := d.set.Require(contracts.LocalChainContracts...); err != nil {
		return record.ChainEntry{}, &PreconditionError{Chain: record.ChainLocal, Err: err}
	}

	d.logger.With("url", d.env.Local.RPCURL).With("endpoint_id", d.env.Local.EndpointID).Info("starting local chain deployment")

	client, err := d.dialer.Dial(ctx, d.env.Local.RPCURL)
	if err != nil {
		return record.ChainEntry{}, fmt.Errorf("failed to connect to local chain: %w", err)
	}
	defer client.Close()

	preflight(ctx, client, d.env.Owner, d.logger)

	entry, err := d.run(ctx, newRunner(record.ChainLocal, client, d.set, d.metrics, d.logger))
	if err != nil {
		return record.ChainEntry{}, err
	}

	updated := record.UpsertChainEntry(current, record.ChainLocal, entry)
	updated = record.OpenBinding(updated, senderReceiverBinding)

	if err := d.store.Save(ctx, updated); err != nil {
		return entry, &PersistError{Chain: record.ChainLocal, Entry: entry, Err: err}
	}
	d.metrics.SetPendingBindings(len(updated.PendingBindings))

	d.logger.With("location", d.store.Location()).Info("local chain deployment recorded")

	return entry, nil
}

func (d *LocalDeployer) run(ctx context.Context, r *runner) (record.ChainEntry, error) {
	env := d.env

	sender, err := r.deploy(ctx, 1, record.ContractSender, contracts.NameSender)
	if err != nil {
		return record.ChainEntry{}, err
	}

	bridge, err := r.deploy(ctx, 2, record.ContractBridge, contracts.NameBridge,
		env.Local.LayerZeroEndpoint, env.Owner, env.Native.EndpointID, env.MainEndpointID, env.Local.EndpointID)
	if err != nil {
		return record.ChainEntry{}, err
	}

	job, err := r.deploy(ctx, 3, record.ContractJob, contracts.NameJob)
	if err != nil {
		return record.ChainEntry{}, err
	}

	err = r.transact(ctx, 4, contracts.NameSender, sender, contracts.MethodInitialize,
		env.Owner, env.Local.Token, env.Local.TokenMessenger, job, record.Placeholder, env.MaxFee, env.FinalityThreshold)
	if err != nil {
		return record.ChainEntry{}, err
	}

	err = r.transact(ctx, 5, contracts.NameJob, job, contracts.MethodInitialize,
		env.Owner, env.Local.Token, env.Local.EndpointID, bridge, sender)
	if err != nil {
		return record.ChainEntry{}, err
	}

	if err := r.transact(ctx, 6, contracts.NameBridge, bridge, contracts.MethodAuthorizeContract, job, true); err != nil {
		return record.ChainEntry{}, err
	}

	return record.NewChainEntry(env.Local.EndpointID, r.deployed), nil
}
