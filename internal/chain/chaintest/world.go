// Package chaintest is an in-memory stand-in for a set of EVM chains. It records every call,
// assigns deterministic contract addresses and can be told to fail a given operation.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/compose-network/bridge-deployer/internal/chain"
	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	Kind string

	// Op is one recorded interaction with a chain.
	Op struct {
		Kind     Kind
		Contract contracts.Name
		Address  common.Address
		Method   string
		Args     []any
	}

	// Instance is a deployed contract and its observable state.
	Instance struct {
		Name        contracts.Name
		Initialized bool
		State       map[string]any
	}

	Chain struct {
		URL       string
		ID        *big.Int
		Balance   *big.Int
		Ops       []Op
		Instances map[common.Address]*Instance
		Dials     int
		Closes    int
		nonce     uint64
	}

	failure struct {
		url      string
		kind     Kind
		contract contracts.Name
		method   string
		err      error
	}

	// World is a set of chains addressed by RPC URL. It implements chain.Dialer.
	World struct {
		mu       sync.Mutex
		from     common.Address
		chains   map[string]*Chain
		failures []failure
		dialErrs map[string]error
	}

	client struct {
		world *World
		chain *Chain
	}
)

const (
	KindDeploy   Kind = "deploy"
	KindTransact Kind = "transact"
	KindCall     Kind = "call"
)

var ErrInjected = errors.New("injected failure")

var _ chain.Dialer = (*World)(nil)

// NewWorld creates a world in which from signs every transaction.
func NewWorld(from common.Address) *World {
	return &World{
		from:     from,
		chains:   make(map[string]*Chain),
		dialErrs: make(map[string]error),
	}
}

// AddChain registers a chain reachable at url.
func (w *World) AddChain(url string, chainID int64) *Chain {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := &Chain{
		URL:       url,
		ID:        big.NewInt(chainID),
		Balance:   new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		Instances: make(map[common.Address]*Instance),
	}
	w.chains[url] = c

	return c
}

func (w *World) Chain(url string) *Chain {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.chains[url]
}

// FailDial makes every dial of url fail with err.
func (w *World) FailDial(url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dialErrs[url] = err
}

// Fail makes the next matching operation on url fail with err. An empty method matches deploys.
func (w *World) Fail(url string, kind Kind, contract contracts.Name, method string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.failures = append(w.failures, failure{url: url, kind: kind, contract: contract, method: method, err: err})
}

func (w *World) Dial(_ context.Context, rpcURL string) (chain.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.dialErrs[rpcURL]; err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}
	c, ok := w.chains[rpcURL]
	if !ok {
		return nil, fmt.Errorf("failed to connect to %s: no such chain", rpcURL)
	}
	c.Dials++

	return &client{world: w, chain: c}, nil
}

// takeFailure pops the first injected failure matching the operation.
func (w *World) takeFailure(url string, kind Kind, contract contracts.Name, method string) error {
	for i, f := range w.failures {
		if f.url == url && f.kind == kind && f.contract == contract && f.method == method {
			w.failures = slices.Delete(w.failures, i, i+1)
			return f.err
		}
	}
	return nil
}

// Transactions returns the deploys and transactions sent to the chain, in order.
func (c *Chain) Transactions() []Op {
	var out []Op
	for _, op := range c.Ops {
		if op.Kind != KindCall {
			out = append(out, op)
		}
	}
	return out
}

// Find returns the address of the most recent instance of name.
func (c *Chain) Find(name contracts.Name) (common.Address, *Instance, bool) {
	for i := len(c.Ops) - 1; i >= 0; i-- {
		op := c.Ops[i]
		if op.Kind == KindDeploy && op.Contract == name {
			inst, ok := c.Instances[op.Address]
			return op.Address, inst, ok
		}
	}
	return common.Address{}, nil, false
}

func (c *client) ChainID() *big.Int {
	return new(big.Int).Set(c.chain.ID)
}

func (c *client) From() common.Address {
	return c.world.from
}

func (c *client) Balance(context.Context) (*big.Int, error) {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()

	return new(big.Int).Set(c.chain.Balance), nil
}

func (c *client) Deploy(_ context.Context, contract contracts.Contract, args ...any) (common.Address, common.Hash, error) {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()

	if _, err := contract.ABI.Pack("", args...); err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("failed to deploy %s: %w", contract.Name, err)
	}

	addr := crypto.CreateAddress(c.world.from, c.chain.nonce)
	hash := c.txHash()
	c.chain.Ops = append(c.chain.Ops, Op{Kind: KindDeploy, Contract: contract.Name, Address: addr, Args: args})

	if err := c.world.takeFailure(c.chain.URL, KindDeploy, contract.Name, ""); err != nil {
		return common.Address{}, hash, fmt.Errorf("deployment of %s: %w", contract.Name, err)
	}

	c.chain.Instances[addr] = &Instance{Name: contract.Name, State: make(map[string]any)}

	return addr, hash, nil
}

func (c *client) Transact(_ context.Context, contract contracts.Contract, at common.Address, method string, args ...any) (common.Hash, error) {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()

	if _, err := contract.ABI.Pack(method, args...); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s.%s: %w", contract.Name, method, err)
	}

	hash := c.txHash()
	c.chain.Ops = append(c.chain.Ops, Op{Kind: KindTransact, Contract: contract.Name, Address: at, Method: method, Args: args})

	if err := c.world.takeFailure(c.chain.URL, KindTransact, contract.Name, method); err != nil {
		return hash, fmt.Errorf("%s.%s: %w", contract.Name, method, err)
	}

	inst, ok := c.chain.Instances[at]
	if !ok || inst.Name != contract.Name {
		return hash, fmt.Errorf("%s.%s: %w: no %s at %s", contract.Name, method, chain.ErrTxReverted, contract.Name, at.Hex())
	}
	if method == contracts.MethodInitialize {
		if inst.Initialized {
			return hash, fmt.Errorf("%s.%s: %w: already initialized", contract.Name, method, chain.ErrTxReverted)
		}
		inst.Initialized = true
	}
	applyState(inst, method, args)

	return hash, nil
}

func (c *client) Call(_ context.Context, contract contracts.Contract, at common.Address, method string, args ...any) ([]any, error) {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()

	c.chain.Ops = append(c.chain.Ops, Op{Kind: KindCall, Contract: contract.Name, Address: at, Method: method, Args: args})

	if err := c.world.takeFailure(c.chain.URL, KindCall, contract.Name, method); err != nil {
		return nil, fmt.Errorf("failed to call %s.%s: %w", contract.Name, method, err)
	}

	inst, ok := c.chain.Instances[at]
	if !ok {
		return nil, fmt.Errorf("failed to call %s.%s: no contract code at %s", contract.Name, method, at.Hex())
	}
	value, ok := inst.State[method]
	if !ok {
		return nil, fmt.Errorf("failed to call %s.%s: execution reverted", contract.Name, method)
	}

	return []any{value}, nil
}

func (c *client) Close() {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()

	c.chain.Closes++
}

// txHash stands in for a transaction hash and advances the signer nonce.
func (c *client) txHash() common.Hash {
	hash := crypto.Keccak256Hash(c.chain.ID.Bytes(), new(big.Int).SetUint64(c.chain.nonce).Bytes())
	c.chain.nonce++
	return hash
}

// applyState mirrors the Sender's CCTP configuration so views return what was last written.
func applyState(inst *Instance, method string, args []any) {
	if inst.Name != contracts.NameSender {
		return
	}

	switch method {
	case contracts.MethodInitialize:
		inst.State[contracts.MethodCCTPTokenMessenger] = args[2]
		inst.State[contracts.MethodCCTPReceiver] = args[4]
		inst.State[contracts.MethodDefaultMaxFee] = args[5]
		inst.State[contracts.MethodDefaultFinalityThreshold] = args[6]
	case contracts.MethodSetCCTPConfig:
		inst.State[contracts.MethodCCTPTokenMessenger] = args[0]
		inst.State[contracts.MethodCCTPReceiver] = args[1]
		inst.State[contracts.MethodDefaultMaxFee] = args[2]
		inst.State[contracts.MethodDefaultFinalityThreshold] = args[3]
	}
}
