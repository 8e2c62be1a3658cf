package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account is one ledger entry. Values are treated as immutable: transition
// functions return modified copies and the ledger's Update is the only
// mutation point.
type Account struct {
	PubkeyID uint32   `json:"pubkey_id" cbor:"pubkey_id"`
	TokenID  uint32   `json:"token_id"  cbor:"token_id"`
	Balance  *big.Int `json:"balance"   cbor:"balance"`
	Nonce    *big.Int `json:"nonce"     cbor:"nonce"`
}

func NewAccount(pubkeyID, tokenID uint32, balance, nonce *big.Int) Account {
	acc := Account{PubkeyID: pubkeyID, TokenID: tokenID, Balance: new(big.Int), Nonce: new(big.Int)}
	if balance != nil {
		acc.Balance.Set(balance)
	}
	if nonce != nil {
		acc.Nonce.Set(nonce)
	}
	return acc
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	return NewAccount(a.PubkeyID, a.TokenID, a.Balance, a.Nonce)
}

func (a Account) Equal(b Account) bool {
	return a.PubkeyID == b.PubkeyID && a.TokenID == b.TokenID &&
		cmpInt(a.Balance, b.Balance) == 0 && cmpInt(a.Nonce, b.Nonce) == 0
}

func (a Account) String() string {
	return fmt.Sprintf("<Account pubkey=%d token=%d balance=%v nonce=%v>",
		a.PubkeyID, a.TokenID, a.Balance, a.Nonce)
}

// leaf is the fixed-width encoding hashed into the state root:
// index u32 | pubkey u32 | token u32 | balance u256 | nonce u256.
func (a Account) leaf(idx uint32) []byte {
	buf := make([]byte, 0, 12+64)
	buf = binary.BigEndian.AppendUint32(buf, idx)
	buf = binary.BigEndian.AppendUint32(buf, a.PubkeyID)
	buf = binary.BigEndian.AppendUint32(buf, a.TokenID)
	buf = append(buf, common.LeftPadBytes(orZero(a.Balance).Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(orZero(a.Nonce).Bytes(), 32)...)
	return buf
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func cmpInt(a, b *big.Int) int {
	return orZero(a).Cmp(orZero(b))
}
