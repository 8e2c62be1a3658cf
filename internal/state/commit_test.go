package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rollupd/internal/tx"
)

const feeReceiver = 100

func newBatchLedger(t *testing.T) *countingLedger {
	t.Helper()
	l := newCountingLedger()
	require.NoError(t, l.DB.Create(feeReceiver, acct(1, 0)))
	require.NoError(t, l.DB.Create(1, acct(1, 100)))
	require.NoError(t, l.DB.Create(2, acct(1, 100)))
	require.NoError(t, l.DB.Create(3, acct(2, 100)))
	require.NoError(t, l.DB.Create(4, acct(1, 0)))
	return l
}

func TestProcessTransferCommit_WrongTokenScenario(t *testing.T) {
	l := newBatchLedger(t)
	txs := []tx.Transfer{
		transfer(1, 4, 10, 1),
		transfer(3, 4, 10, 2), // sender holds token 2
		transfer(2, 4, 10, 3),
	}
	p := NewProcessor(WithLogger(zaptest.NewLogger(t)))
	res, err := p.ProcessTransferCommit(l, txs, feeReceiver)
	require.NoError(t, err)

	require.Equal(t, []tx.Transfer{txs[0], txs[2]}, res.Accepted)
	require.Len(t, res.Dropped, 1)
	require.Equal(t, txs[1], res.Dropped[0].Tx)
	require.ErrorIs(t, res.Dropped[0].Err, ErrWrongTokenID)
	require.Equal(t, uint32(1), res.TokenID)
	require.Equal(t, int64(4), res.Fees.Int64())

	fee, err := l.DB.Get(feeReceiver)
	require.NoError(t, err)
	require.Equal(t, int64(4), fee.Balance.Int64())
	// one read for the token, one for the credit; a single write
	require.Equal(t, 2, l.reads[feeReceiver])
	require.Len(t, l.writes[feeReceiver], 1)

	dropped, err := l.DB.Get(3)
	require.NoError(t, err)
	require.Equal(t, int64(100), dropped.Balance.Int64())
	require.Zero(t, dropped.Nonce.Sign())
	require.Zero(t, l.Depth())
}

func TestProcessTransferCommit_SuccessiveStates(t *testing.T) {
	// sender 1 can afford the first two transfers only
	l := newBatchLedger(t)
	txs := []tx.Transfer{
		transfer(1, 4, 40, 5),
		transfer(1, 4, 40, 5),
		transfer(1, 4, 40, 5),
		transfer(4, 2, 79, 1), // funded by the accepted ones
		transfer(4, 2, 0, 1),
	}
	res, err := ProcessTransferCommit(l, txs, feeReceiver)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 3)
	require.Len(t, res.Dropped, 2)
	require.ErrorIs(t, res.Dropped[0].Err, ErrInsufficientFund)
	require.ErrorIs(t, res.Dropped[1].Err, ErrZeroAmount)

	snap := l.Snapshot()
	require.Equal(t, int64(10), snap[1].Balance.Int64())
	require.Equal(t, int64(2), snap[1].Nonce.Int64())
	require.Equal(t, int64(179), snap[2].Balance.Int64())
	require.Zero(t, snap[4].Balance.Sign())
	require.Equal(t, int64(11), snap[feeReceiver].Balance.Int64())
}

func TestProcessTransferCommit_FeesEqualSumOfAccepted(t *testing.T) {
	l := newBatchLedger(t)
	var txs []tx.Transfer
	for i := int64(1); i <= 6; i++ {
		from := uint32(1 + i%3) // 2, 3, 1, 2, 3, 1; account 3 is the wrong token
		txs = append(txs, transfer(from, 4, 5, i))
	}
	res, err := ProcessTransferCommit(l, txs, feeReceiver)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 4)
	require.Equal(t, tx.Fees(res.Accepted), res.Fees)
	require.Equal(t, int64(1+3+4+6), res.Fees.Int64())

	fee, _ := l.DB.Get(feeReceiver)
	require.Equal(t, res.Fees.Int64(), fee.Balance.Int64())
}

func TestProcessTransferCommit_NegativeValuesDropped(t *testing.T) {
	db := NewDB()
	require.NoError(t, db.Create(0, acct(1, 0)))
	require.NoError(t, db.Create(1, acct(1, 10)))
	require.NoError(t, db.Create(2, acct(1, 3)))
	before := db.Snapshot()

	txs := []tx.Transfer{transfer(1, 2, -50, 0), transfer(1, 2, 5, -7)}
	res, err := ProcessTransferCommit(db, txs, 0)
	require.NoError(t, err)
	require.Empty(t, res.Accepted)
	require.Len(t, res.Dropped, 2)
	for _, d := range res.Dropped {
		require.Equal(t, KindNegativeValue, KindOf(d.Err))
	}
	requireSameLedger(t, before, db.Snapshot())
	for idx, acc := range db.Snapshot() {
		require.GreaterOrEqual(t, acc.Balance.Sign(), 0, "account %d", idx)
	}
}

func TestProcessTransferCommit_Empty(t *testing.T) {
	l := newBatchLedger(t)
	res, err := ProcessTransferCommit(l, nil, feeReceiver)
	require.NoError(t, err)
	require.Empty(t, res.Accepted)
	require.Zero(t, res.Fees.Sign())
}

func TestProcessTransferCommit_MissingFeeReceiver(t *testing.T) {
	l := newBatchLedger(t)
	before := l.Snapshot()
	_, err := ProcessTransferCommit(l, []tx.Transfer{transfer(1, 4, 10, 1)}, 999)
	require.ErrorIs(t, err, ErrAccountNotFound)
	requireSameLedger(t, before, l.Snapshot())
}

// flippingLedger lets a test break the fee receiver between the token lookup and
// the final credit.
type flippingLedger struct {
	*DB
	gets int
}

func (f *flippingLedger) Get(idx uint32) (Account, error) {
	acc, err := f.DB.Get(idx)
	if idx == feeReceiver {
		f.gets++
		if f.gets > 1 {
			acc.TokenID = 42
		}
	}
	return acc, err
}

func TestProcessTransferCommit_FeeCreditFailureIsFatal(t *testing.T) {
	db := NewDB()
	require.NoError(t, db.Create(feeReceiver, acct(1, 0)))
	require.NoError(t, db.Create(1, acct(1, 100)))
	require.NoError(t, db.Create(2, acct(1, 0)))

	_, err := ProcessTransferCommit(&flippingLedger{DB: db}, []tx.Transfer{transfer(1, 2, 10, 1)}, feeReceiver)
	require.ErrorIs(t, err, ErrWrongTokenID)
}

func TestProcessTransferCommit_StrictNonce(t *testing.T) {
	l := newBatchLedger(t)
	txs := []tx.Transfer{
		tx.New(1, 4, big.NewInt(1), big.NewInt(1), big.NewInt(0)),
		tx.New(1, 4, big.NewInt(1), big.NewInt(1), big.NewInt(0)), // replay
		tx.New(1, 4, big.NewInt(1), big.NewInt(1), big.NewInt(1)),
	}
	res, err := NewProcessor(WithStrictNonce(true)).ProcessTransferCommit(l, txs, feeReceiver)
	require.NoError(t, err)
	require.Equal(t, []tx.Transfer{txs[0], txs[2]}, res.Accepted)
	require.ErrorIs(t, res.Dropped[0].Err, ErrBadNonce)
}

func TestProcessTransferCommit_InsideOuterCheckpoint(t *testing.T) {
	l := newBatchLedger(t)
	before := l.Snapshot()
	outer := l.Checkpoint()
	res, err := ProcessTransferCommit(l, []tx.Transfer{transfer(1, 4, 10, 1), transfer(1, 4, 0, 1)}, feeReceiver)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	require.Equal(t, 1, l.Depth())

	require.NoError(t, l.Revert(outer))
	requireSameLedger(t, before, l.Snapshot())
}
