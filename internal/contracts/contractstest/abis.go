// Package contractstest provides a compiled contract set with the real ABIs and stub bytecode.
package contractstest

import (
	"strings"

	"github.com/compose-network/bridge-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	senderABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
			{"name":"_owner","type":"address"},{"name":"_usdtToken","type":"address"},
			{"name":"_cctpTokenMessenger","type":"address"},{"name":"_lowjcContract","type":"address"},
			{"name":"_cctpReceiver","type":"address"},{"name":"_defaultMaxFee","type":"uint256"},
			{"name":"_defaultFinalityThreshold","type":"uint32"}],"outputs":[]},
		{"type":"function","name":"setCCTPConfig","stateMutability":"nonpayable","inputs":[
			{"name":"_tokenMessenger","type":"address"},{"name":"_receiver","type":"address"},
			{"name":"_maxFee","type":"uint256"},{"name":"_finalityThreshold","type":"uint32"}],"outputs":[]},
		{"type":"function","name":"cctpTokenMessenger","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"cctpReceiver","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"defaultMaxFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"defaultFinalityThreshold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]}
	]`

	bridgeABI = `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[
			{"name":"_endpoint","type":"address"},{"name":"_owner","type":"address"},
			{"name":"_nativeChainEid","type":"uint32"},{"name":"_mainChainEid","type":"uint32"},
			{"name":"_thisLocalChainEid","type":"uint32"}]},
		{"type":"function","name":"authorizeContract","stateMutability":"nonpayable","inputs":[
			{"name":"contractAddress","type":"address"},{"name":"authorized","type":"bool"}],"outputs":[]}
	]`

	jobABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
			{"name":"_owner","type":"address"},{"name":"_usdtToken","type":"address"},
			{"name":"_chainId","type":"uint32"},{"name":"_bridge","type":"address"},
			{"name":"_cctpSender","type":"address"}],"outputs":[]}
	]`

	receiverABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
			{"name":"_owner","type":"address"},{"name":"_usdtToken","type":"address"},
			{"name":"_messageTransmitter","type":"address"},{"name":"_nowjcContract","type":"address"}],"outputs":[]}
	]`

	nativeBridgeABI = `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[
			{"name":"_endpoint","type":"address"},{"name":"_owner","type":"address"},
			{"name":"_mainChainEid","type":"uint32"}]},
		{"type":"function","name":"authorizeContract","stateMutability":"nonpayable","inputs":[
			{"name":"contractAddress","type":"address"},{"name":"authorized","type":"bool"}],"outputs":[]},
		{"type":"function","name":"setNativeOpenWorkJobContract","stateMutability":"nonpayable","inputs":[
			{"name":"_nativeOpenWorkJobContract","type":"address"}],"outputs":[]},
		{"type":"function","name":"addLocalChain","stateMutability":"nonpayable","inputs":[
			{"name":"_localChainEid","type":"uint32"}],"outputs":[]}
	]`

	nativeJobABI = `[
		{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[
			{"name":"_owner","type":"address"},{"name":"_bridge","type":"address"},
			{"name":"_genesis","type":"address"},{"name":"_rewardsContract","type":"address"},
			{"name":"_usdtToken","type":"address"},{"name":"_cctpReceiver","type":"address"}],"outputs":[]}
	]`
)

// ABIs maps every contract name to its ABI JSON.
var ABIs = map[contracts.Name]string{
	contracts.NameSender:       senderABI,
	contracts.NameBridge:       bridgeABI,
	contracts.NameJob:          jobABI,
	contracts.NameReceiver:     receiverABI,
	contracts.NameNativeBridge: nativeBridgeABI,
	contracts.NameNativeJob:    nativeJobABI,
}

// Set returns all six contracts with a one-byte stub bytecode each.
func Set() contracts.Set {
	set := make(contracts.Set, len(ABIs))
	for name, raw := range ABIs {
		parsed, err := abi.JSON(strings.NewReader(raw))
		if err != nil {
			panic(err)
		}
		set[name] = contracts.Contract{Name: name, ABI: parsed, RawABI: raw, Bytecode: []byte{0x60}}
	}
	return set
}
