package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// BundleFileName is the file written by the compiler and read by Load.
const BundleFileName = "contracts.json"

type bundleEntry struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}

// Load reads a compiled contracts bundle from path.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compiled contracts: %w", err)
	}

	return parseContracts(data)
}

// parseContracts parses bundle JSON into a Set, keeping only the contracts this deployment uses.
func parseContracts(data []byte) (Set, error) {
	var result map[string]bundleEntry
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse compiled contracts: %w", err)
	}

	known := make(map[Name]struct{})
	for _, name := range All() {
		known[name] = struct{}{}
	}

	loaded := make(Set)
	for name, contract := range result {
		if _, ok := known[Name(name)]; !ok {
			continue
		}

		parsedABI, err := abi.JSON(strings.NewReader(string(contract.ABI)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
		}

		loaded[Name(name)] = Contract{
			Name:     Name(name),
			ABI:      parsedABI,
			RawABI:   string(contract.ABI),
			Bytecode: common.FromHex(contract.Bytecode),
		}
	}

	return loaded, nil
}
