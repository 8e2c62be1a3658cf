package tx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

const (
	mantissaBits = 12
	exponentBits = 4
	maxMantissa  = 1<<mantissaBits - 1
	maxExponent  = 1<<exponentBits - 1

	// CompactSize is the length of one transfer in the settlement payload.
	CompactSize = 4 + 4 + 2 + 2
)

var (
	ErrNotCompactable = errors.New("value is not representable as float16")
	ErrCompactLength  = errors.New("compact payload length is not a multiple of transfer size")
)

var ten = big.NewInt(10)

// EncodeFloat16 packs v as mantissa*10^exponent into 16 bits, choosing the
// smallest exponent that represents v exactly.
func EncodeFloat16(v *big.Int) (uint16, error) {
	if v == nil || v.Sign() < 0 {
		return 0, ErrNotCompactable
	}
	m := new(big.Int).Set(v)
	rem := new(big.Int)
	for e := 0; e <= maxExponent; e++ {
		if m.IsUint64() && m.Uint64() <= maxMantissa {
			return uint16(e)<<mantissaBits | uint16(m.Uint64()), nil
		}
		m.QuoRem(m, ten, rem)
		if rem.Sign() != 0 {
			break
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrNotCompactable, v)
}

func DecodeFloat16(f uint16) *big.Int {
	e := int64(f >> mantissaBits)
	m := int64(f & maxMantissa)
	out := new(big.Int).Exp(ten, big.NewInt(e), nil)
	return out.Mul(out, big.NewInt(m))
}

// Compactable reports whether both amount and fee survive the float16 codec.
func (t Transfer) Compactable() error {
	if _, err := EncodeFloat16(t.Amount); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if _, err := EncodeFloat16(t.Fee); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	return nil
}

// EncodeCompact serializes transfers for submission as
// from u32 | to u32 | amount f16 | fee f16, big-endian.
func EncodeCompact(txs []Transfer) ([]byte, error) {
	out := make([]byte, 0, len(txs)*CompactSize)
	for i, t := range txs {
		amount, err := EncodeFloat16(t.Amount)
		if err != nil {
			return nil, fmt.Errorf("tx %d amount: %w", i, err)
		}
		fee, err := EncodeFloat16(t.Fee)
		if err != nil {
			return nil, fmt.Errorf("tx %d fee: %w", i, err)
		}
		out = binary.BigEndian.AppendUint32(out, t.FromIndex)
		out = binary.BigEndian.AppendUint32(out, t.ToIndex)
		out = binary.BigEndian.AppendUint16(out, amount)
		out = binary.BigEndian.AppendUint16(out, fee)
	}
	return out, nil
}

// DecodeCompact is the inverse of EncodeCompact. Nonces are not part of the
// payload and come back as zero.
func DecodeCompact(b []byte) ([]Transfer, error) {
	if len(b)%CompactSize != 0 {
		return nil, ErrCompactLength
	}
	txs := make([]Transfer, 0, len(b)/CompactSize)
	for off := 0; off < len(b); off += CompactSize {
		rec := b[off : off+CompactSize]
		txs = append(txs, Transfer{
			FromIndex: binary.BigEndian.Uint32(rec[0:4]),
			ToIndex:   binary.BigEndian.Uint32(rec[4:8]),
			Amount:    DecodeFloat16(binary.BigEndian.Uint16(rec[8:10])),
			Fee:       DecodeFloat16(binary.BigEndian.Uint16(rec[10:12])),
			Nonce:     new(big.Int),
		})
	}
	return txs, nil
}
