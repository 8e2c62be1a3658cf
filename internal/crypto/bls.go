package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Transfers are signed with BLS over BN254: signatures live in G1 so the
// aggregate fits the rollup contract's uint256[2], public keys live in G2.

var transferDST = []byte("ROLLUPD_BLS_SIG_BN254G1_XMD:SHA-256_SSWU_RO_TRANSFER_")

var (
	ErrBadSignature = errors.New("invalid bls signature")
	ErrBadPublicKey = errors.New("invalid bls public key")
	ErrNoSignatures = errors.New("nothing to aggregate")
)

const (
	SecretKeySize = fr.Bytes
	PublicKeySize = bn254.SizeOfG2AffineCompressed
	SignatureSize = bn254.SizeOfG1AffineCompressed
)

type SecretKey struct {
	s fr.Element
}

type PublicKey struct {
	p bn254.G2Affine
}

type Signature struct {
	p bn254.G1Affine
}

func GenerateBLSKey() (*SecretKey, error) {
	sk := &SecretKey{}
	if _, err := sk.s.SetRandom(); err != nil {
		return nil, fmt.Errorf("random scalar: %w", err)
	}
	return sk, nil
}

func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	if len(b) != SecretKeySize {
		return nil, fmt.Errorf("secret key: want %d bytes, got %d", SecretKeySize, len(b))
	}
	sk := &SecretKey{}
	sk.s.SetBytes(b)
	if sk.s.IsZero() {
		return nil, errors.New("secret key is zero")
	}
	return sk, nil
}

func (sk *SecretKey) Bytes() []byte {
	b := sk.s.Bytes()
	return b[:]
}

func (sk *SecretKey) scalar() *big.Int {
	return sk.s.BigInt(new(big.Int))
}

func (sk *SecretKey) PublicKey() PublicKey {
	_, _, _, g2 := bn254.Generators()
	var pk PublicKey
	pk.p.ScalarMultiplication(&g2, sk.scalar())
	return pk
}

// Sign hashes msg to G1 and multiplies by the secret scalar.
func (sk *SecretKey) Sign(msg []byte) (Signature, error) {
	h, err := bn254.HashToG1(msg, transferDST)
	if err != nil {
		return Signature{}, fmt.Errorf("hash to curve: %w", err)
	}
	var sig Signature
	sig.p.ScalarMultiplication(&h, sk.scalar())
	return sig, nil
}

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if _, err := pk.p.SetBytes(b); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrBadPublicKey, err)
	}
	if pk.p.IsInfinity() {
		return PublicKey{}, fmt.Errorf("%w: point at infinity", ErrBadPublicKey)
	}
	return pk, nil
}

func (pk PublicKey) Bytes() []byte {
	b := pk.p.Bytes()
	return b[:]
}

func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if _, err := sig.p.SetBytes(b); err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return sig, nil
}

func (s Signature) Bytes() []byte {
	b := s.p.Bytes()
	return b[:]
}

// Point returns the affine coordinates in the order the contract expects.
func (s Signature) Point() [2]*big.Int {
	return [2]*big.Int{s.p.X.BigInt(new(big.Int)), s.p.Y.BigInt(new(big.Int))}
}

// Verify checks e(sig, -g2) * e(H(msg), pk) == 1.
func Verify(pk PublicKey, msg []byte, sig Signature) error {
	return AggregateVerify([]PublicKey{pk}, [][]byte{msg}, sig)
}

// Aggregate adds signatures together.
func Aggregate(sigs []Signature) (Signature, error) {
	if len(sigs) == 0 {
		return Signature{}, ErrNoSignatures
	}
	var acc bn254.G1Jac
	for i := range sigs {
		acc.AddMixed(&sigs[i].p)
	}
	var out Signature
	out.p.FromJacobian(&acc)
	return out, nil
}

// AggregateVerify checks an aggregate of signatures on distinct messages,
// msgs[i] having been signed by pks[i].
func AggregateVerify(pks []PublicKey, msgs [][]byte, agg Signature) error {
	if len(pks) != len(msgs) {
		return fmt.Errorf("%d public keys for %d messages", len(pks), len(msgs))
	}
	if len(pks) == 0 {
		return ErrNoSignatures
	}
	_, _, _, g2 := bn254.Generators()
	var negG2 bn254.G2Affine
	negG2.Neg(&g2)

	p := make([]bn254.G1Affine, 0, len(msgs)+1)
	q := make([]bn254.G2Affine, 0, len(pks)+1)
	p = append(p, agg.p)
	q = append(q, negG2)
	for i, msg := range msgs {
		h, err := bn254.HashToG1(msg, transferDST)
		if err != nil {
			return fmt.Errorf("hash to curve: %w", err)
		}
		p = append(p, h)
		q = append(q, pks[i].p)
	}
	ok, err := bn254.PairingCheck(p, q)
	if err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}
