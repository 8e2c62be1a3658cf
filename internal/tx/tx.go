package tx

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TypeTransfer tags the transfer message so signatures cannot be replayed
// across transaction kinds.
const TypeTransfer byte = 1

var ErrNegativeValue = errors.New("negative value")

// Transfer moves Amount from FromIndex to ToIndex and pays Fee to the batch
// fee receiver. The token is not carried: it is implied by the fee receiver
// of the batch the transfer lands in.
type Transfer struct {
	FromIndex uint32   `json:"from_index" cbor:"from_index"`
	ToIndex   uint32   `json:"to_index"   cbor:"to_index"`
	Amount    *big.Int `json:"amount"     cbor:"amount"`
	Fee       *big.Int `json:"fee"        cbor:"fee"`
	Nonce     *big.Int `json:"nonce"      cbor:"nonce"`
}

// New copies its big.Int arguments, so callers may reuse them.
func New(from, to uint32, amount, fee, nonce *big.Int) Transfer {
	return Transfer{
		FromIndex: from,
		ToIndex:   to,
		Amount:    new(big.Int).Set(amount),
		Fee:       new(big.Int).Set(fee),
		Nonce:     new(big.Int).Set(nonce),
	}
}

// Normalize replaces missing numeric fields with zero and rejects negatives.
func (t *Transfer) Normalize() error {
	for _, v := range []**big.Int{&t.Amount, &t.Fee, &t.Nonce} {
		if *v == nil {
			*v = new(big.Int)
		}
		if (*v).Sign() < 0 {
			return ErrNegativeValue
		}
	}
	return nil
}

// Message is the byte string a sender signs:
// type | from u32 | to u32 | amount u256 | fee u256 | nonce u256.
func (t Transfer) Message() []byte {
	buf := make([]byte, 0, 1+4+4+32*3)
	buf = append(buf, TypeTransfer)
	buf = binary.BigEndian.AppendUint32(buf, t.FromIndex)
	buf = binary.BigEndian.AppendUint32(buf, t.ToIndex)
	buf = append(buf, word(t.Amount)...)
	buf = append(buf, word(t.Fee)...)
	buf = append(buf, word(t.Nonce)...)
	return buf
}

// Hash is the hex blake3 digest of the signed message.
func (t Transfer) Hash() string {
	return hex.EncodeToString(hashBytes(t.Message()))
}

func (t Transfer) String() string {
	return fmt.Sprintf("<Transfer %d->%d amount=%v fee=%v nonce=%v>",
		t.FromIndex, t.ToIndex, t.Amount, t.Fee, t.Nonce)
}

func word(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}

// Signed is a transfer together with its author's BLS signature
// (compressed BN254 G1 point).
type Signed struct {
	Transfer
	Signature []byte `json:"signature,omitempty" cbor:"signature,omitempty"`
}

// Fees sums the fee of every transfer.
func Fees(txs []Transfer) *big.Int {
	sum := new(big.Int)
	for _, t := range txs {
		if t.Fee != nil {
			sum.Add(sum, t.Fee)
		}
	}
	return sum
}
