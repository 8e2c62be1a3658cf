package settlement

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSubmitter settles batches in memory. Every submission lands in its
// own block, starting right after the block given to NewLocalSubmitter.
type LocalSubmitter struct {
	mu        sync.Mutex
	block     uint64
	submitted []Commitment
}

func NewLocalSubmitter(block uint64) *LocalSubmitter {
	return &LocalSubmitter{block: block}
}

func (l *LocalSubmitter) Submit(ctx context.Context, c Commitment) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block++
	l.submitted = append(l.submitted, c)
	return &localHandle{
		hash:  crypto.Keccak256Hash(binary.BigEndian.AppendUint64(c.StateRoot.Bytes(), c.BatchID), c.TxRoot[:]),
		block: l.block,
	}, nil
}

// Resume moves the local head up to block. Used after a restart so block
// numbers keep increasing across runs.
func (l *LocalSubmitter) Resume(block uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if block > l.block {
		l.block = block
	}
}

// Submitted returns every commitment seen so far.
func (l *LocalSubmitter) Submitted() []Commitment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Commitment(nil), l.submitted...)
}

type localHandle struct {
	hash  common.Hash
	block uint64
}

func (h *localHandle) TxHash() common.Hash { return h.hash }

func (h *localHandle) Wait(ctx context.Context, _ uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return h.block, nil
}
