package state

import (
	"math/big"

	"rollupd/internal/tx"
)

// ValidateSender checks that acc can pay amount+fee in tokenID.
func ValidateSender(acc Account, tokenID uint32, amount, fee *big.Int) error {
	if orZero(amount).Sign() == 0 {
		return newTxError(KindZeroAmount, "")
	}
	if orZero(amount).Sign() < 0 || orZero(fee).Sign() < 0 {
		return newTxError(KindNegativeValue, "tx amount: %v, fee: %v", orZero(amount), orZero(fee))
	}
	decrement := new(big.Int).Add(orZero(amount), orZero(fee))
	if orZero(acc.Balance).Cmp(decrement) < 0 {
		return newTxError(KindInsufficientFund, "balance: %v, tx amount+fee: %v", orZero(acc.Balance), decrement)
	}
	if acc.TokenID != tokenID {
		return newTxError(KindWrongTokenID, "tx tokenID: %d, state tokenID: %d", tokenID, acc.TokenID)
	}
	return nil
}

// ApplySender returns a copy of acc debited by decrement with its nonce bumped.
func ApplySender(acc Account, decrement *big.Int) Account {
	out := acc.Clone()
	out.Balance.Sub(out.Balance, decrement)
	out.Nonce.Add(out.Nonce, big.NewInt(1))
	return out
}

func ValidateReceiver(acc Account, tokenID uint32) error {
	if acc.TokenID != tokenID {
		return newTxError(KindWrongTokenID, "tx tokenID: %d, state tokenID: %d", tokenID, acc.TokenID)
	}
	return nil
}

// ApplyReceiver returns a copy of acc credited by increment.
func ApplyReceiver(acc Account, increment *big.Int) Account {
	out := acc.Clone()
	out.Balance.Add(out.Balance, increment)
	return out
}

// ProcessSender reads, validates, debits and writes back the sender.
func ProcessSender(l Ledger, idx, tokenID uint32, amount, fee *big.Int) error {
	return processSender(l, idx, tokenID, amount, fee, nil)
}

func processSender(l Ledger, idx, tokenID uint32, amount, fee, nonce *big.Int) error {
	acc, err := l.Get(idx)
	if err != nil {
		return err
	}
	if err := ValidateSender(acc, tokenID, amount, fee); err != nil {
		return err
	}
	if nonce != nil && orZero(acc.Nonce).Cmp(nonce) != 0 {
		return newTxError(KindBadNonce, "tx nonce: %v, state nonce: %v", nonce, orZero(acc.Nonce))
	}
	decrement := new(big.Int).Add(orZero(amount), orZero(fee))
	return l.Update(idx, ApplySender(acc, decrement))
}

// ProcessReceiver reads, validates, credits and writes back the receiver.
func ProcessReceiver(l Ledger, idx uint32, increment *big.Int, tokenID uint32) error {
	if orZero(increment).Sign() < 0 {
		return newTxError(KindNegativeValue, "increment: %v", increment)
	}
	acc, err := l.Get(idx)
	if err != nil {
		return err
	}
	if err := ValidateReceiver(acc, tokenID); err != nil {
		return err
	}
	return l.Update(idx, ApplyReceiver(acc, orZero(increment)))
}

// ProcessTransfer applies the sender side, then the receiver side. It leaves
// partial writes behind on failure; callers wrap it in a checkpoint.
func ProcessTransfer(l Ledger, t tx.Transfer, tokenID uint32) error {
	return processTransfer(l, t, tokenID, false)
}

func processTransfer(l Ledger, t tx.Transfer, tokenID uint32, strictNonce bool) error {
	var nonce *big.Int
	if strictNonce {
		nonce = orZero(t.Nonce)
	}
	if err := processSender(l, t.FromIndex, tokenID, t.Amount, t.Fee, nonce); err != nil {
		return err
	}
	return ProcessReceiver(l, t.ToIndex, t.Amount, tokenID)
}
