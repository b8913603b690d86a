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

// NativeDeployer deploys the Receiver, NativeBridge and NativeJobContract, then patches the
// local Sender with the new Receiver address.
type NativeDeployer struct {
	env     Environment
	set     contracts.Set
	store   record.Store
	dialer  chain.Dialer
	patcher *Patcher
	metrics *metrics.Recorder
	logger  *slog.Logger
}

func NewNativeDeployer(env Environment, set contracts.Set, store record.Store, dialer chain.Dialer, rec *metrics.Recorder) *NativeDeployer {
	return &NativeDeployer{
		env:     env,
		set:     set,
		store:   store,
		dialer:  dialer,
		patcher: NewPatcher(env, set, store, dialer, rec),
		metrics: rec,
		logger:  logger.Named("native_deployer"),
	}
}

// Deploy requires a recorded local entry. If the native steps succeed but the patch fails, the
// native entry is still persisted with the binding left open and a *PatchError is returned.
func (d *NativeDeployer) Deploy(ctx context.Context) (record.ChainEntry, error) {
	current, err := d.loadPrecondition(ctx)
	if err != nil {
		return record.ChainEntry{}, err
	}

	d.logger.With("url", d.env.Native.RPCURL).With("endpoint_id", d.env.Native.EndpointID).Info("starting native chain deployment")

	entry, err := d.deployNative(ctx)
	if err != nil {
		return record.ChainEntry{}, err
	}

	updated := record.UpsertChainEntry(current, record.ChainNative, entry)
	// the previous receiver is gone, so the local Sender needs patching again
	updated = record.OpenBinding(updated, senderReceiverBinding)

	patched, patchErr := d.patcher.Apply(ctx, updated)
	if patchErr != nil {
		d.logger.With("err", patchErr.Error()).Error("cross-chain patch failed, native chain is deployed")
	}

	if err := d.store.Save(ctx, patched); err != nil {
		return entry, errors.Join(patchErr, &PersistError{Chain: record.ChainNative, Entry: entry, Err: err})
	}
	d.metrics.SetPendingBindings(len(patched.PendingBindings))

	if patchErr != nil {
		return entry, patchErr
	}

	d.logger.With("location", d.store.Location()).Info("native chain deployment recorded")

	return entry, nil
}

// loadPrecondition checks everything that must hold before the first native transaction.
func (d *NativeDeployer) loadPrecondition(ctx context.Context) (record.Record, error) {
	current, err := d.store.Load(ctx)
	if errors.Is(err, record.ErrNotFound) {
		return record.Record{}, &PreconditionError{
			Chain: record.ChainNative,
			Err:   fmt.Errorf("no deployment record at %s, deploy the local chain first: %w", d.store.Location(), err),
		}
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("failed to load deployment record: %w", err)
	}

	local, ok := current.Entry(record.ChainLocal)
	if !ok {
		return record.Record{}, &PreconditionError{
			Chain: record.ChainNative,
			Err:   fmt.Errorf("record at %s has no local chain entry, deploy the local chain first", d.store.Location()),
		}
	}
	if _, ok := local.Address(record.ContractSender); !ok {
		return record.Record{}, &PreconditionError{Chain: record.ChainNative, Err: errors.New("local chain entry has no sender address")}
	}
	if local.ChainID != d.env.Local.EndpointID {
		return record.Record{}, &PreconditionError{
			Chain: record.ChainNative,
			Err:   fmt.Errorf("recorded local endpoint id %d does not match configured %d", local.ChainID, d.env.Local.EndpointID),
		}
	}

	required := append([]contracts.Name{contracts.NameSender}, contracts.NativeChainContracts...)
	if err := d.set.Require(required...); err != nil {
		return record.Record{}, &PreconditionError{Chain: record.ChainNative, Err: err}
	}

	return current, nil
}

func (d *NativeDeployer) deployNative(ctx context.Context) (record.ChainEntry, error) {
	client, err := d.dialer.Dial(ctx, d.env.Native.RPCURL)
	if err != nil {
		return record.ChainEntry{}, fmt.Errorf("failed to connect to native chain: %w", err)
	}
	defer client.Close()

	preflight(ctx, client, d.env.Owner, d.logger)

	return d.run(ctx, newRunner(record.ChainNative, client, d.set, d.metrics, d.logger))
}

func (d *NativeDeployer) run(ctx context.Context, r *runner) (record.ChainEntry, error) {
	env := d.env

	receiver, err := r.deploy(ctx, 1, record.ContractReceiver, contracts.NameReceiver)
	if err != nil {
		return record.ChainEntry{}, err
	}

	bridge, err := r.deploy(ctx, 2, record.ContractBridge, contracts.NameNativeBridge,
		env.Native.LayerZeroEndpoint, env.Owner, env.MainEndpointID)
	if err != nil {
		return record.ChainEntry{}, err
	}

	job, err := r.deploy(ctx, 3, record.ContractJob, contracts.NameNativeJob)
	if err != nil {
		return record.ChainEntry{}, err
	}

	err = r.transact(ctx, 4, contracts.NameReceiver, receiver, contracts.MethodInitialize,
		env.Owner, env.Native.Token, env.Native.MessageTransmitter, job)
	if err != nil {
		return record.ChainEntry{}, err
	}

	// genesis and rewards may still be placeholders
	err = r.transact(ctx, 5, contracts.NameNativeJob, job, contracts.MethodInitialize,
		env.Owner, bridge, env.Native.Genesis, env.Native.Rewards, env.Native.Token, receiver)
	if err != nil {
		return record.ChainEntry{}, err
	}

	if err := r.transact(ctx, 6, contracts.NameNativeBridge, bridge, contracts.MethodAuthorizeContract, job, true); err != nil {
		return record.ChainEntry{}, err
	}
	if err := r.transact(ctx, 6, contracts.NameNativeBridge, bridge, contracts.MethodSetNativeJobContract, job); err != nil {
		return record.ChainEntry{}, err
	}
	if err := r.transact(ctx, 6, contracts.NameNativeBridge, bridge, contracts.MethodAddLocalChain, env.Local.EndpointID); err != nil {
		return record.ChainEntry{}, err
	}

	return record.NewChainEntry(env.Native.EndpointID, r.deployed), nil
}
