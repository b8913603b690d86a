package deploy

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// PreconditionError means the run was refused before any transaction was sent.
	PreconditionError struct {
		Chain record.ChainRole
		Err   error
	}

	// StepError is a failed deploy or transaction. Deployed lists the contracts the aborted run
	// had already deployed; they are orphaned and never reused.
	StepError struct {
		Chain    record.ChainRole
		Step     int
		Action   string
		Deployed map[record.ContractRole]common.Address
		Err      error
	}

	// PatchError is a failed cross-chain patch after the native chain was fully deployed. The
	// binding is still open and the patch can be re-run on its own.
	PatchError struct {
		Binding  record.Binding
		Deployed record.ChainEntry
		Err      error
	}

	// PersistError means every transaction confirmed but the record could not be saved.
	PersistError struct {
		Chain record.ChainRole
		Entry record.ChainEntry
		Err   error
	}
)

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s chain precondition failed: %v", e.Chain, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s chain step %d (%s) failed: %v", e.Chain, e.Step, e.Action, e.Err)
	if len(e.Deployed) > 0 {
		msg += "; orphaned contracts: " + formatAddresses(e.Deployed)
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("cross-chain patch %s failed: %v", e.Binding, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist %s chain entry (%s): %v", e.Chain, formatAddresses(e.Entry.Contracts), e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func formatAddresses(addrs map[record.ContractRole]common.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, role := range slices.Sorted(maps.Keys(addrs)) {
		parts = append(parts, fmt.Sprintf("%s=%s", role, addrs[role].Hex()))
	}
	return strings.Join(parts, " ")
}
