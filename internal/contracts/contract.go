// Package contracts names the six contracts of the bridge deployment and loads their compiled
// artifacts.
//
// The orchestration relies on these ABI members:
//
//	CCTPSender                          initialize(address,address,address,address,address,uint256,uint32)
//	                                    setCCTPConfig(address,address,uint256,uint32)
//	                                    cctpTokenMessenger(), cctpReceiver(), defaultMaxFee(), defaultFinalityThreshold()
//	LayerZeroBridge                     constructor(address,address,uint32,uint32,uint32), authorizeContract(address,bool)
//	CrossChainLocalOpenWorkJobContract  initialize(address,address,uint32,address,address)
//	CCTPReceiver                        initialize(address,address,address,address)
//	NativeChainBridge                   constructor(address,address,uint32), authorizeContract(address,bool),
//	                                    setNativeOpenWorkJobContract(address), addLocalChain(uint32)
//	NativeOpenWorkJobContract           initialize(address,address,address,address,address,address)
package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	Name string

	Contract struct {
		Name     Name
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
	}

	Set map[Name]Contract
)

const (
	NameSender       Name = "CCTPSender"
	NameBridge       Name = "LayerZeroBridge"
	NameJob          Name = "CrossChainLocalOpenWorkJobContract"
	NameReceiver     Name = "CCTPReceiver"
	NameNativeBridge Name = "NativeChainBridge"
	NameNativeJob    Name = "NativeOpenWorkJobContract"
)

const (
	MethodInitialize               = "initialize"
	MethodAuthorizeContract        = "authorizeContract"
	MethodSetNativeJobContract     = "setNativeOpenWorkJobContract"
	MethodAddLocalChain            = "addLocalChain"
	MethodSetCCTPConfig            = "setCCTPConfig"
	MethodCCTPTokenMessenger       = "cctpTokenMessenger"
	MethodCCTPReceiver             = "cctpReceiver"
	MethodDefaultMaxFee            = "defaultMaxFee"
	MethodDefaultFinalityThreshold = "defaultFinalityThreshold"
)

var (
	LocalChainContracts  = []Name{NameSender, NameBridge, NameJob}
	NativeChainContracts = []Name{NameReceiver, NameNativeBridge, NameNativeJob}
)

// All lists every contract the deployment needs, in deployment order.
func All() []Name {
	return append(append([]Name{}, LocalChainContracts...), NativeChainContracts...)
}

func (s Set) Get(name Name) (Contract, error) {
	contract, ok := s[name]
	if !ok {
		return Contract{}, fmt.Errorf("contract '%s' is missing from the compiled contracts", name)
	}
	return contract, nil
}

// Require fails when any of names is missing or has no deployable bytecode.
func (s Set) Require(names ...Name) error {
	for _, name := range names {
		contract, err := s.Get(name)
		if err != nil {
			return err
		}
		if len(contract.Bytecode) == 0 {
			return fmt.Errorf("contract '%s' has no bytecode", name)
		}
	}
	return nil
}
