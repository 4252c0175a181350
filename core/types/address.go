package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Address is the 20-byte identity used for sellers, buyers, creators and
// module vaults throughout the engines.
type Address = [20]byte

// ZeroAddress is the null identity. Credits to it are dropped and registry
// lookups returning it are treated as nonexistence.
var ZeroAddress Address

// IsZeroAddress reports whether addr is the null identity.
func IsZeroAddress(addr Address) bool {
	return addr == ZeroAddress
}

// HexAddr renders an address in 0x-prefixed hex for events and RPC payloads.
func HexAddr(addr Address) string {
	return common.BytesToAddress(addr[:]).Hex()
}

// ParseAddress decodes a 0x-prefixed hex address.
func ParseAddress(raw string) (Address, error) {
	if !common.IsHexAddress(raw) {
		return ZeroAddress, fmt.Errorf("invalid address %q", raw)
	}
	var out Address
	copy(out[:], common.HexToAddress(raw).Bytes())
	return out, nil
}
