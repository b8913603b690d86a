package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/bridge-deployer/internal/chain"
	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/compose-network/bridge-deployer/internal/metrics"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
)

// Patcher closes the deferred bindings of a record by writing the real source address into the
// field that still holds a placeholder.
type Patcher struct {
	env     Environment
	set     contracts.Set
	store   record.Store
	dialer  chain.Dialer
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// cctpConfig is the Sender's transfer configuration, replaced as a whole by setCCTPConfig.
type cctpConfig struct {
	messenger common.Address
	receiver  common.Address
	maxFee    *big.Int
	finality  uint32
}

func NewPatcher(env Environment, set contracts.Set, store record.Store, dialer chain.Dialer, rec *metrics.Recorder) *Patcher {
	return &Patcher{
		env:     env,
		set:     set,
		store:   store,
		dialer:  dialer,
		metrics: rec,
		logger:  logger.Named("patcher"),
	}
}

// Run loads the record, closes every open binding and saves the result. A record without open
// bindings is left untouched.
func (p *Patcher) Run(ctx context.Context) (record.Record, error) {
	current, err := p.store.Load(ctx)
	if errors.Is(err, record.ErrNotFound) {
		return record.Record{}, &PreconditionError{
			Chain: record.ChainLocal,
			Err:   fmt.Errorf("no deployment record at %s: %w", p.store.Location(), err),
		}
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("failed to load deployment record: %w", err)
	}

	if len(current.PendingBindings) == 0 {
		p.logger.Info("no pending bindings, nothing to patch")
		return current, nil
	}

	patched, patchErr := p.Apply(ctx, current)
	if len(patched.PendingBindings) != len(current.PendingBindings) {
		if err := p.store.Save(ctx, patched); err != nil {
			return patched, errors.Join(patchErr, &PersistError{Chain: record.ChainLocal, Entry: patched.Chains[record.ChainLocal], Err: err})
		}
	}
	p.metrics.SetPendingBindings(len(patched.PendingBindings))

	return patched, patchErr
}

// Apply patches every open binding of r on chain and returns r with the patched bindings
// closed. It stops at the first failure; the failed binding stays open.
func (p *Patcher) Apply(ctx context.Context, r record.Record) (record.Record, error) {
	out := r.Clone()

	for _, b := range r.PendingBindings {
		if err := p.patch(ctx, r, b); err != nil {
			return out, err
		}
		out = record.CloseBinding(out, b)
		p.logger.With("binding", b.String()).Info("binding closed")
	}

	return out, nil
}

func (p *Patcher) patch(ctx context.Context, r record.Record, b record.Binding) error {
	source, ok := r.Entry(b.SourceChain)
	if !ok {
		return &PreconditionError{Chain: b.SourceChain, Err: fmt.Errorf("binding %s needs the %s chain entry", b, b.SourceChain)}
	}
	fail := func(err error) error {
		return &PatchError{Binding: b, Deployed: source, Err: err}
	}

	if b.Chain != senderReceiverBinding.Chain || b.Contract != senderReceiverBinding.Contract || b.Field != senderReceiverBinding.Field {
		return fail(errors.New("unsupported binding"))
	}

	target, ok := r.Entry(b.Chain)
	if !ok {
		return fail(fmt.Errorf("no %s chain entry in the record", b.Chain))
	}
	senderAddr, ok := target.Address(b.Contract)
	if !ok {
		return fail(fmt.Errorf("%s chain entry has no %s address", b.Chain, b.Contract))
	}
	receiverAddr, ok := source.Address(b.SourceContract)
	if !ok {
		return fail(fmt.Errorf("%s chain entry has no %s address", b.SourceChain, b.SourceContract))
	}
	sender, err := p.set.Get(contracts.NameSender)
	if err != nil {
		return fail(err)
	}
	rpcURL, err := p.env.RPCURL(b.Chain)
	if err != nil {
		return fail(err)
	}

	log := p.logger.With("binding", b.String()).With("sender", senderAddr.Hex()).With("receiver", receiverAddr.Hex())
	log.Info("patching cross-chain binding")

	// a second connection, released when the patch returns
	client, err := p.dialer.Dial(ctx, rpcURL)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to %s chain: %w", b.Chain, err))
	}
	defer client.Close()

	onchain, err := readCCTPConfig(ctx, client, sender, senderAddr)
	if err != nil {
		return fail(err)
	}
	if onchain.receiver == receiverAddr {
		log.Info("receiver already set, skipping patch transaction")
		return nil
	}
	if onchain.receiver != b.Placeholder {
		log.With("current", onchain.receiver.Hex()).Warn("sender receiver is neither the placeholder nor the target, overwriting")
	}

	next := p.nextConfig(onchain, receiverAddr, log)

	start := time.Now()
	txHash, err := client.Transact(ctx, sender, senderAddr, contracts.MethodSetCCTPConfig, next.messenger, next.receiver, next.maxFee, next.finality)
	p.metrics.ObserveTx(string(b.Chain), contracts.MethodSetCCTPConfig, time.Since(start), err)
	if err != nil {
		return fail(err)
	}
	log.With("tx_hash", txHash.Hex()).Info("patch transaction confirmed")

	got, err := callAddress(ctx, client, sender, senderAddr, contracts.MethodCCTPReceiver)
	if err != nil {
		return fail(fmt.Errorf("failed to verify patch: %w", err))
	}
	if got != receiverAddr {
		return fail(fmt.Errorf("verification failed: sender reports receiver %s, want %s", got.Hex(), receiverAddr.Hex()))
	}

	return nil
}

// nextConfig keeps every field but the receiver. With preserve-onchain-values off, the
// configured values are sent instead of the ones read from the chain.
func (p *Patcher) nextConfig(onchain cctpConfig, receiver common.Address, log *slog.Logger) cctpConfig {
	configured := cctpConfig{
		messenger: p.env.Local.TokenMessenger,
		maxFee:    p.env.MaxFee,
		finality:  p.env.FinalityThreshold,
	}

	if onchain.messenger != configured.messenger {
		log.With("onchain", onchain.messenger.Hex()).With("configured", configured.messenger.Hex()).Warn("token messenger drift")
	}
	if onchain.maxFee.Cmp(configured.maxFee) != 0 {
		log.With("onchain", onchain.maxFee.String()).With("configured", configured.maxFee.String()).Warn("max fee drift")
	}
	if onchain.finality != configured.finality {
		log.With("onchain", onchain.finality).With("configured", configured.finality).Warn("finality threshold drift")
	}

	next := configured
	if p.env.PreserveOnchainValues {
		next = onchain
	}
	next.receiver = receiver

	return next
}

func readCCTPConfig(ctx context.Context, client chain.Client, sender contracts.Contract, at common.Address) (cctpConfig, error) {
	var (
		cfg cctpConfig
		err error
	)

	if cfg.messenger, err = callAddress(ctx, client, sender, at, contracts.MethodCCTPTokenMessenger); err != nil {
		return cctpConfig{}, err
	}
	if cfg.receiver, err = callAddress(ctx, client, sender, at, contracts.MethodCCTPReceiver); err != nil {
		return cctpConfig{}, err
	}

	out, err := callOne(ctx, client, sender, at, contracts.MethodDefaultMaxFee)
	if err != nil {
		return cctpConfig{}, err
	}
	maxFee, ok := out.(*big.Int)
	if !ok {
		return cctpConfig{}, fmt.Errorf("%s returned %T, want *big.Int", contracts.MethodDefaultMaxFee, out)
	}
	cfg.maxFee = maxFee

	out, err = callOne(ctx, client, sender, at, contracts.MethodDefaultFinalityThreshold)
	if err != nil {
		return cctpConfig{}, err
	}
	finality, ok := out.(uint32)
	if !ok {
		return cctpConfig{}, fmt.Errorf("%s returned %T, want uint32", contracts.MethodDefaultFinalityThreshold, out)
	}
	cfg.finality = finality

	return cfg, nil
}

func callAddress(ctx context.Context, client chain.Client, contract contracts.Contract, at common.Address, method string) (common.Address, error) {
	out, err := callOne(ctx, client, contract, at, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T, want address", method, out)
	}
	return addr, nil
}

func callOne(ctx context.Context, client chain.Client, contract contracts.Contract, at common.Address, method string) (any, error) {
	out, err := client.Call(ctx, contract, at, method)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values, want 1", method, len(out))
	}
	return out[0], nil
}
