package merkle

import "github.com/ethereum/go-ethereum/crypto"

// Leaf = H(0x00 || data), Inner = H(0x01 || L || R), H = keccak256
func leafHash(b []byte) []byte {
	return crypto.Keccak256([]byte{0x00}, b)
}

func innerHash(l, r []byte) []byte {
	return crypto.Keccak256([]byte{0x01}, l, r)
}

// Root of an empty set is H(0x00).
func Root(leaves [][]byte) []byte {
	n := len(leaves)
	if n == 0 {
		return crypto.Keccak256([]byte{0x00})
	}
	level := make([][]byte, n)
	for i := 0; i < n; i++ {
		level[i] = leafHash(leaves[i])
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1]) // odd → duplicate last
		}
		next := make([][]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = innerHash(level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}
