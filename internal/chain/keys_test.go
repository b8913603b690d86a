package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anvilKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestAddressFromPrivateKey(t *testing.T) {
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	addr, err := AddressFromPrivateKey(anvilKey)
	require.NoError(t, err)
	assert.Equal(t, want, addr)

	addr, err = AddressFromPrivateKey(anvilKey[2:])
	require.NoError(t, err)
	assert.Equal(t, want, addr)

	_, err = AddressFromPrivateKey("0xnothex")
	assert.Error(t, err)
}
