package deploy

import (
	"fmt"
	"math/big"

	"github.com/compose-network/bridge-deployer/configs"
	"github.com/compose-network/bridge-deployer/internal/chain"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// Environment is the parsed, chain-facing view of the configuration.
	Environment struct {
		Owner                 common.Address
		MainEndpointID        uint32
		Local                 LocalChain
		Native                NativeChain
		MaxFee                *big.Int
		FinalityThreshold     uint32
		PreserveOnchainValues bool
	}

	Chain struct {
		RPCURL            string
		EndpointID        uint32
		LayerZeroEndpoint common.Address
		Token             common.Address
	}

	LocalChain struct {
		Chain
		TokenMessenger common.Address
	}

	NativeChain struct {
		Chain
		MessageTransmitter common.Address
		Genesis            common.Address
		Rewards            common.Address
	}
)

// NewEnvironment parses cfg. The owner defaults to the deployer account.
func NewEnvironment(cfg configs.Config) (Environment, error) {
	maxFee, err := cfg.Transfer.MaxFeeInt()
	if err != nil {
		return Environment{}, err
	}

	owner := common.HexToAddress(cfg.Wallet.Owner)
	if cfg.Wallet.Owner == "" {
		owner, err = chain.AddressFromPrivateKey(cfg.Wallet.PrivateKey)
		if err != nil {
			return Environment{}, err
		}
	}

	return Environment{
		Owner:          owner,
		MainEndpointID: cfg.MainChainEndpointID,
		Local: LocalChain{
			Chain:          parseChain(cfg.Chains.Local.Chain),
			TokenMessenger: common.HexToAddress(cfg.Chains.Local.CCTPTokenMessenger),
		},
		Native: NativeChain{
			Chain:              parseChain(cfg.Chains.Native.Chain),
			MessageTransmitter: common.HexToAddress(cfg.Chains.Native.CCTPMessageTransmitter),
			Genesis:            common.HexToAddress(cfg.Chains.Native.Genesis),
			Rewards:            common.HexToAddress(cfg.Chains.Native.Rewards),
		},
		MaxFee:                maxFee,
		FinalityThreshold:     cfg.Transfer.FinalityThreshold,
		PreserveOnchainValues: cfg.Patch.PreserveOnchainValues,
	}, nil
}

func parseChain(c configs.Chain) Chain {
	return Chain{
		RPCURL:            c.RPCURL,
		EndpointID:        c.EndpointID,
		LayerZeroEndpoint: common.HexToAddress(c.LayerZeroEndpoint),
		Token:             common.HexToAddress(c.Token),
	}
}

// RPCURL returns the endpoint of the chain playing role.
func (e Environment) RPCURL(role record.ChainRole) (string, error) {
	switch role {
	case record.ChainLocal:
		return e.Local.RPCURL, nil
	case record.ChainNative:
		return e.Native.RPCURL, nil
	default:
		return "", fmt.Errorf("unknown chain role '%s'", role)
	}
}
