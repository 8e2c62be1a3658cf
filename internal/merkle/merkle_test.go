package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestRoot_Empty(t *testing.T) {
	require.Equal(t, crypto.Keccak256([]byte{0x00}), Root(nil))
}

func TestRoot_Single(t *testing.T) {
	require.Equal(t, crypto.Keccak256([]byte{0x00}, []byte("a")), Root([][]byte{[]byte("a")}))
}

func TestRoot_OddDuplicatesLast(t *testing.T) {
	a, b, c := []byte("a"), []byte("b"), []byte("c")
	require.Equal(t, Root([][]byte{a, b, c, c}), Root([][]byte{a, b, c}))
	require.NotEqual(t, Root([][]byte{a, b}), Root([][]byte{b, a}))
}

func TestRoot_DomainSeparation(t *testing.T) {
	a, b := []byte("a"), []byte("b")
	inner := crypto.Keccak256([]byte{0x01}, leafHash(a), leafHash(b))
	require.Equal(t, inner, Root([][]byte{a, b}))
	require.NotEqual(t, leafHash(append(leafHash(a), leafHash(b)...)), inner)
}
