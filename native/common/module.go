package common

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"melodia/core/types"
)

// ModuleAddress derives the deterministic vault address for a native module.
// No key exists for these accounts, so funds parked there can only move
// through the owning engine's entry points.
func ModuleAddress(module string) types.Address {
	var addr types.Address
	digest := ethcrypto.Keccak256([]byte("melodia/module/"), []byte(module))
	copy(addr[:], digest[12:])
	return addr
}
