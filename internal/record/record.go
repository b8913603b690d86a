// Package record holds the deployment record shared between the local and native chain runs.
package record

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

type (
	ChainRole    string
	ContractRole string

	// ChainEntry is what a completed chain run leaves behind: its contract addresses and the
	// chain's messaging endpoint id. It serializes as a flat object, e.g.
	// {"sender": "0x..", "bridge": "0x..", "job": "0x..", "chainId": 40231}.
	ChainEntry struct {
		Contracts map[ContractRole]common.Address
		ChainID   uint32
	}

	// Binding is a deferred cross-chain reference: a field of a deployed contract that was set
	// to Placeholder because its real value lives on a chain deployed later. It stays in the
	// record until a patch writes the source address into the field.
	Binding struct {
		Chain          ChainRole      `json:"chain"`
		Contract       ContractRole   `json:"contract"`
		Field          string         `json:"field"`
		Placeholder    common.Address `json:"placeholder"`
		SourceChain    ChainRole      `json:"sourceChain"`
		SourceContract ContractRole   `json:"sourceContract"`
	}

	Record struct {
		Chains          map[ChainRole]ChainEntry `json:"chains"`
		PendingBindings []Binding                `json:"pendingBindings,omitempty"`
	}
)

const (
	ChainLocal  ChainRole = "local"
	ChainNative ChainRole = "native"

	ContractSender   ContractRole = "sender"
	ContractReceiver ContractRole = "receiver"
	ContractBridge   ContractRole = "bridge"
	ContractJob      ContractRole = "job"

	chainIDKey = "chainId"
)

// Placeholder marks an address that is not known yet.
var Placeholder = common.Address{}

func New() Record {
	return Record{Chains: map[ChainRole]ChainEntry{}}
}

func NewChainEntry(chainID uint32, contracts map[ContractRole]common.Address) ChainEntry {
	return ChainEntry{Contracts: maps.Clone(contracts), ChainID: chainID}
}

// Address returns the address recorded for role.
func (e ChainEntry) Address(role ContractRole) (common.Address, bool) {
	addr, ok := e.Contracts[role]
	return addr, ok
}

func (e ChainEntry) clone() ChainEntry {
	return ChainEntry{Contracts: maps.Clone(e.Contracts), ChainID: e.ChainID}
}

func (e ChainEntry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Contracts)+1)
	for role, addr := range e.Contracts {
		if string(role) == chainIDKey {
			return nil, fmt.Errorf("contract role '%s' collides with the chain id key", role)
		}
		flat[string(role)] = addr.Hex()
	}
	flat[chainIDKey] = e.ChainID

	return json.Marshal(flat)
}

func (e *ChainEntry) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	rawID, ok := flat[chainIDKey]
	if !ok {
		return fmt.Errorf("chain entry is missing '%s'", chainIDKey)
	}
	var chainID uint32
	if err := json.Unmarshal(rawID, &chainID); err != nil {
		return fmt.Errorf("invalid '%s': %w", chainIDKey, err)
	}

	contracts := make(map[ContractRole]common.Address, len(flat)-1)
	for key, raw := range flat {
		if key == chainIDKey {
			continue
		}
		var hex string
		if err := json.Unmarshal(raw, &hex); err != nil {
			return fmt.Errorf("invalid address for '%s': %w", key, err)
		}
		if !common.IsHexAddress(hex) {
			return fmt.Errorf("invalid address for '%s': '%s'", key, hex)
		}
		contracts[ContractRole(key)] = common.HexToAddress(hex)
	}

	e.ChainID = chainID
	e.Contracts = contracts

	return nil
}

// Entry returns the entry for role, if that chain's run has completed.
func (r Record) Entry(role ChainRole) (ChainEntry, bool) {
	entry, ok := r.Chains[role]
	return entry, ok
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := Record{Chains: make(map[ChainRole]ChainEntry, len(r.Chains))}
	for role, entry := range r.Chains {
		out.Chains[role] = entry.clone()
	}
	if r.PendingBindings != nil {
		out.PendingBindings = slices.Clone(r.PendingBindings)
	}
	return out
}

// UpsertChainEntry returns a copy of r in which role maps to entry. Entries for other roles
// are preserved.
func UpsertChainEntry(r Record, role ChainRole, entry ChainEntry) Record {
	out := r.Clone()
	out.Chains[role] = entry.clone()
	return out
}

// OpenBinding returns a copy of r tracking b as pending. An existing binding for the same
// contract field is replaced.
func OpenBinding(r Record, b Binding) Record {
	out := CloseBinding(r, b)
	out.PendingBindings = append(out.PendingBindings, b)
	return out
}

// CloseBinding returns a copy of r without the binding for b's contract field.
func CloseBinding(r Record, b Binding) Record {
	out := r.Clone()
	out.PendingBindings = slices.DeleteFunc(out.PendingBindings, b.sameSlot)
	if len(out.PendingBindings) == 0 {
		out.PendingBindings = nil
	}
	return out
}

// Complete reports whether both chains are deployed and no deferred binding is left open.
func (r Record) Complete() bool {
	_, local := r.Chains[ChainLocal]
	_, native := r.Chains[ChainNative]
	return local && native && len(r.PendingBindings) == 0
}

func (b Binding) sameSlot(other Binding) bool {
	return b.Chain == other.Chain && b.Contract == other.Contract && b.Field == other.Field
}

func (b Binding) String() string {
	return fmt.Sprintf("%s.%s.%s <- %s.%s", b.Chain, b.Contract, b.Field, b.SourceChain, b.SourceContract)
}
