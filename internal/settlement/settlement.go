// Package settlement hands packed batches to the settlement layer and
// reports when they are confirmed.
package settlement

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrReverted = errors.New("settlement transaction reverted")
	ErrReorged  = errors.New("settlement transaction dropped by reorg")
)

// Commitment is what the operator posts for one batch.
type Commitment struct {
	BatchID     uint64
	StateRoot   common.Hash
	TxRoot      common.Hash
	Signature   [2]*big.Int // aggregate BLS signature as an affine G1 point
	FeeReceiver uint32
	Txs         []byte // compact transfers, back to back
}

type Submitter interface {
	Submit(ctx context.Context, c Commitment) (Handle, error)
}

// Handle tracks one submitted commitment.
type Handle interface {
	TxHash() common.Hash
	// Wait blocks until the commitment is buried under the given number of
	// blocks (1 means included) and returns the block that included it.
	Wait(ctx context.Context, confirmations uint64) (uint64, error)
}
