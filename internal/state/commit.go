package state

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"rollupd/internal/tx"
)

// Dropped is a candidate transfer that was rejected and rolled back.
type Dropped struct {
	Tx  tx.Transfer
	Err error
}

// CommitResult is the outcome of one ProcessTransferCommit call.
type CommitResult struct {
	Accepted []tx.Transfer
	Dropped  []Dropped
	TokenID  uint32
	Fees     *big.Int
}

// Opt configures a Processor.
type Opt func(*Processor)

func WithLogger(logger *zap.Logger) Opt {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithStrictNonce makes the processor reject transfers whose nonce differs
// from the sender's ledger nonce.
func WithStrictNonce(strict bool) Opt {
	return func(p *Processor) {
		p.strictNonce = strict
	}
}

// Processor builds batches against a ledger.
type Processor struct {
	logger      *zap.Logger
	strictNonce bool
}

func NewProcessor(opts ...Opt) *Processor {
	p := &Processor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessTransferCommit applies txs in order, each inside its own
// checkpoint, and credits the fees of the accepted ones to feeReceiver in a
// single final write. The batch token is the fee receiver's token.
//
// Rejected transfers are reverted, logged and reported in Dropped. An error
// is returned only when the fee receiver cannot be read or credited, or when
// the ledger itself fails.
func (p *Processor) ProcessTransferCommit(l Ledger, txs []tx.Transfer, feeReceiver uint32) (*CommitResult, error) {
	receiver, err := l.Get(feeReceiver)
	if err != nil {
		return nil, fmt.Errorf("fee receiver %d: %w", feeReceiver, err)
	}
	res := &CommitResult{TokenID: receiver.TokenID}
	for _, t := range txs {
		cp := l.Checkpoint()
		if err := processTransfer(l, t, res.TokenID, p.strictNonce); err != nil {
			if rerr := l.Revert(cp); rerr != nil {
				return nil, fmt.Errorf("revert after %v: %w", err, rerr)
			}
			kind := KindOf(err)
			droppedTransfers.WithLabelValues(kind.String()).Inc()
			p.logger.Info("drop tx",
				zap.String("tx", t.Hash()),
				zap.Uint32("from", t.FromIndex),
				zap.Uint32("to", t.ToIndex),
				zap.Stringer("reason", kind),
				zap.Error(err),
			)
			res.Dropped = append(res.Dropped, Dropped{Tx: t, Err: err})
			continue
		}
		if err := l.Commit(); err != nil {
			return nil, fmt.Errorf("commit tx %s: %w", t.Hash(), err)
		}
		res.Accepted = append(res.Accepted, t)
	}
	acceptedTransfers.Add(float64(len(res.Accepted)))

	res.Fees = tx.Fees(res.Accepted)
	if err := ProcessReceiver(l, feeReceiver, res.Fees, res.TokenID); err != nil {
		return nil, fmt.Errorf("credit fees to %d: %w", feeReceiver, err)
	}
	return res, nil
}

// ProcessTransferCommit runs a default Processor.
func ProcessTransferCommit(l Ledger, txs []tx.Transfer, feeReceiver uint32) (*CommitResult, error) {
	return NewProcessor().ProcessTransferCommit(l, txs, feeReceiver)
}
