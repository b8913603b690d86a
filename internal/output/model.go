package output

import (
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Deployment Deployment `yaml:"deployment"`
	}

	Deployment struct {
		RunID           string                           `yaml:"run-id"`
		Complete        bool                             `yaml:"complete"`
		Owner           Address                          `yaml:"owner"`
		Chains          map[record.ChainRole]ChainConfig `yaml:"chains"`
		PendingBindings []string                         `yaml:"pending-bindings,omitempty"`
		NextSteps       []string                         `yaml:"next-steps,omitempty"`
	}

	ChainConfig struct {
		EndpointID uint32                                 `yaml:"endpoint-id"`
		RPCURL     string                                 `yaml:"rpc-url"`
		Token      Address                                `yaml:"token"`
		CCTP       Address                                `yaml:"cctp"`
		Contracts  map[record.ContractRole]ContractConfig `yaml:"contracts"`
	}

	ContractConfig struct {
		Name    string             `yaml:"name"`
		Address Address            `yaml:"address"`
		ABI     SingleQuotedString `yaml:"abi,omitempty"`
	}

	SingleQuotedString string

	// Address renders in checksummed form.
	Address common.Address
)

func (a Address) MarshalYAML() (any, error) {
	return common.Address(a).Hex(), nil
}

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
