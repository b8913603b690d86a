// Package output renders a deployment record for operators: an output.yaml report for tooling
// and a summary table for the terminal.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/compose-network/bridge-deployer/internal/deploy"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// contractNames maps a role on a chain to the contract deployed for it.
var contractNames = map[record.ChainRole]map[record.ContractRole]contracts.Name{
	record.ChainLocal: {
		record.ContractSender: contracts.NameSender,
		record.ContractBridge: contracts.NameBridge,
		record.ContractJob:    contracts.NameJob,
	},
	record.ChainNative: {
		record.ContractReceiver: contracts.NameReceiver,
		record.ContractBridge:   contracts.NameNativeBridge,
		record.ContractJob:      contracts.NameNativeJob,
	},
}

type Generator struct {
	env deploy.Environment
	set contracts.Set
}

// NewGenerator creates a generator. set may be nil, in which case ABIs are omitted.
func NewGenerator(env deploy.Environment, set contracts.Set) *Generator {
	return &Generator{env: env, set: set}
}

// Build assembles the report model for r.
func (g *Generator) Build(runID string, r record.Record) Model {
	chains := make(map[record.ChainRole]ChainConfig, len(r.Chains))
	for role, entry := range r.Chains {
		chains[role] = g.chainConfig(role, entry)
	}

	var pending []string
	for _, b := range r.PendingBindings {
		pending = append(pending, b.String())
	}

	return Model{
		Deployment: Deployment{
			RunID:           runID,
			Complete:        r.Complete(),
			Owner:           Address(g.env.Owner),
			Chains:          chains,
			PendingBindings: pending,
			NextSteps:       g.NextSteps(r),
		},
	}
}

// NextSteps lists the manual follow-ups the deployment still needs.
func (g *Generator) NextSteps(r record.Record) []string {
	var steps []string

	if _, ok := r.Entry(record.ChainLocal); !ok {
		steps = append(steps, "deploy the local chain: bridgedeploy local")
	}
	if _, ok := r.Entry(record.ChainNative); !ok {
		steps = append(steps, "deploy the native chain: bridgedeploy native")
	} else if len(r.PendingBindings) > 0 {
		steps = append(steps, "close pending bindings: bridgedeploy patch")
	}

	if _, ok := r.Entry(record.ChainNative); ok {
		steps = append(steps,
			fmt.Sprintf("replace the genesis contract placeholder %s on NativeOpenWorkJobContract", g.env.Native.Genesis.Hex()),
			fmt.Sprintf("replace the rewards contract placeholder %s on NativeOpenWorkJobContract", g.env.Native.Rewards.Hex()),
		)
	}
	if len(r.Chains) == 2 {
		steps = append(steps, "configure LayerZero peers between LayerZeroBridge and NativeChainBridge")
	}

	return steps
}

func (g *Generator) chainConfig(role record.ChainRole, entry record.ChainEntry) ChainConfig {
	cfg := ChainConfig{
		EndpointID: entry.ChainID,
		Contracts:  make(map[record.ContractRole]ContractConfig, len(entry.Contracts)),
	}
	switch role {
	case record.ChainLocal:
		cfg.RPCURL, cfg.Token, cfg.CCTP = g.env.Local.RPCURL, Address(g.env.Local.Token), Address(g.env.Local.TokenMessenger)
	case record.ChainNative:
		cfg.RPCURL, cfg.Token, cfg.CCTP = g.env.Native.RPCURL, Address(g.env.Native.Token), Address(g.env.Native.MessageTransmitter)
	}

	for contractRole, addr := range entry.Contracts {
		name := contractNames[role][contractRole]
		contract := ContractConfig{Name: string(name), Address: Address(addr)}
		if c, ok := g.set[name]; ok {
			contract.ABI = SingleQuotedString(compactJSON(c.RawABI))
		}
		cfg.Contracts[contractRole] = contract
	}

	return cfg
}

// Write stores the report for r at path.
func (g *Generator) Write(path, runID string, r record.Record) error {
	data, err := yaml.Marshal(g.Build(runID, r))
	if err != nil {
		return fmt.Errorf("could not marshal output model: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}

	return nil
}

// Summary prints the recorded addresses and open bindings as tables.
func (g *Generator) Summary(w io.Writer, r record.Record) error {
	table := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Chain", "Endpoint ID", "Role", "Contract", "Address"}))
	for _, role := range slices.Sorted(maps.Keys(r.Chains)) {
		entry := r.Chains[role]
		for _, contractRole := range slices.Sorted(maps.Keys(entry.Contracts)) {
			row := []string{
				string(role),
				fmt.Sprint(entry.ChainID),
				string(contractRole),
				string(contractNames[role][contractRole]),
				entry.Contracts[contractRole].Hex(),
			}
			if err := table.Append(row); err != nil {
				return fmt.Errorf("could not render summary: %w", err)
			}
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("could not render summary: %w", err)
	}

	status := "complete"
	if !r.Complete() {
		status = "incomplete"
	}
	if _, err := fmt.Fprintf(w, "\nDeployment %s. Owner: %s\n", status, g.env.Owner.Hex()); err != nil {
		return err
	}
	for _, b := range r.PendingBindings {
		if _, err := fmt.Fprintf(w, "  pending: %s (still %s)\n", b, placeholderText(b.Placeholder)); err != nil {
			return err
		}
	}
	if steps := g.NextSteps(r); len(steps) > 0 {
		if _, err := fmt.Fprintln(w, "\nNext steps:"); err != nil {
			return err
		}
		for i, step := range steps {
			if _, err := fmt.Fprintf(w, "  %d. %s\n", i+1, step); err != nil {
				return err
			}
		}
	}

	return nil
}

func placeholderText(addr common.Address) string {
	if addr == record.Placeholder {
		return "the zero address"
	}
	return addr.Hex()
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
