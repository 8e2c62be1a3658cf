package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rollupd/internal/crypto"
	"rollupd/internal/merkle"
	"rollupd/internal/packer"
	"rollupd/internal/settlement"
	"rollupd/internal/state"
	"rollupd/internal/tx"
	"rollupd/internal/types"
)

// PackAndSubmit drains the pool into a batch, applies it to the ledger
// under a batch checkpoint and submits the commitment. The checkpoint stays
// open until the returned submission is waited on: confirmation commits it,
// failure reverts it and puts the drained transfers back in the pool.
func (e *Engine) PackAndSubmit(ctx context.Context) (packer.Submission, error) {
	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		return nil, ErrBatchPending
	}
	batchID := e.lastBatch + 1
	e.mu.Unlock()

	drained := e.pool.Drain(e.cfg.MaxBatchSize)
	if len(drained) == 0 {
		return nil, ErrNothingToPack
	}
	candidates := make([]tx.Signed, 0, len(drained))
	for _, s := range drained {
		if err := s.Compactable(); err != nil {
			e.drop(s.Transfer, err)
			continue
		}
		candidates = append(candidates, s)
	}

	cp := e.db.Checkpoint()
	fail := func(err error) (packer.Submission, error) {
		if rerr := e.db.Revert(cp); rerr != nil {
			err = errors.Join(err, fmt.Errorf("revert batch: %w", rerr))
		}
		e.pool.Requeue(candidates)
		return nil, err
	}

	txs := make([]tx.Transfer, len(candidates))
	for i, s := range candidates {
		txs[i] = s.Transfer
	}
	res, err := e.proc.ProcessTransferCommit(e.db, txs, e.cfg.FeeReceiver)
	if err != nil {
		return fail(fmt.Errorf("batch %d: %w", batchID, err))
	}
	if len(res.Accepted) == 0 {
		if err := e.db.Revert(cp); err != nil {
			return nil, fmt.Errorf("revert empty batch: %w", err)
		}
		e.dropAll(res.Dropped)
		return nil, ErrNothingToPack
	}

	accepted := signedOf(candidates, res.Accepted)
	sig := e.aggregate(accepted)
	payload, err := tx.EncodeCompact(res.Accepted)
	if err != nil {
		return fail(fmt.Errorf("encode batch %d: %w", batchID, err))
	}
	stateRoot := common.BytesToHash(e.db.Root())
	txRoot := common.BytesToHash(txRootOf(res.Accepted))

	handle, err := e.submitter.Submit(ctx, settlement.Commitment{
		BatchID:     batchID,
		StateRoot:   stateRoot,
		TxRoot:      txRoot,
		Signature:   sig.Point(),
		FeeReceiver: e.cfg.FeeReceiver,
		Txs:         payload,
	})
	if err != nil {
		submitFailures.Inc()
		return fail(err)
	}

	e.dropAll(res.Dropped)
	hdr := types.BatchHeader{
		BatchID:     batchID,
		StateRoot:   hex.EncodeToString(stateRoot[:]),
		TxRoot:      hex.EncodeToString(txRoot[:]),
		TxCount:     uint64(len(res.Accepted)),
		FeeReceiver: e.cfg.FeeReceiver,
		TokenID:     res.TokenID,
		TotalFees:   res.Fees.String(),
		Signature:   hex.EncodeToString(sig.Bytes()),
		TxHash:      handle.TxHash().Hex(),
	}
	for _, t := range res.Accepted {
		e.putReceipt(e.receipt(t, types.StatusSubmitted, batchID))
	}
	batchSize.Observe(float64(len(res.Accepted)))
	e.logger.Info("batch packed",
		zap.Uint64("batch_id", batchID),
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("dropped", len(res.Dropped)),
		zap.Stringer("fees", res.Fees),
		zap.String("state_root", hdr.StateRoot),
		zap.String("settlement_tx", hdr.TxHash),
	)

	sub := &submission{e: e, cp: cp, txs: accepted, header: hdr, handle: handle}
	e.mu.Lock()
	e.pending = sub
	e.mu.Unlock()
	return sub, nil
}

// aggregate sums the signatures that decode. Transfers admitted without a
// signature contribute nothing.
func (e *Engine) aggregate(txs []tx.Signed) crypto.Signature {
	sigs := make([]crypto.Signature, 0, len(txs))
	for _, s := range txs {
		if len(s.Signature) == 0 {
			continue
		}
		sig, err := crypto.SignatureFromBytes(s.Signature)
		if err != nil {
			e.logger.Warn("skip undecodable signature", zap.String("tx", s.Hash()), zap.Error(err))
			continue
		}
		sigs = append(sigs, sig)
	}
	agg, err := crypto.Aggregate(sigs)
	if err != nil {
		return crypto.Signature{}
	}
	return agg
}

func (e *Engine) drop(t tx.Transfer, err error) {
	reason := state.KindOf(err).String()
	if errors.Is(err, tx.ErrNotCompactable) {
		reason = "not_compactable"
	}
	r := e.receipt(t, types.DroppedStatus(reason), 0)
	e.putReceipt(r)
	e.broadcastAsync("tx", r)
}

func (e *Engine) dropAll(dropped []state.Dropped) {
	for _, d := range dropped {
		e.drop(d.Tx, d.Err)
	}
}

func signedOf(candidates []tx.Signed, accepted []tx.Transfer) []tx.Signed {
	byHash := make(map[string]tx.Signed, len(candidates))
	for _, s := range candidates {
		byHash[s.Hash()] = s
	}
	out := make([]tx.Signed, 0, len(accepted))
	for _, t := range accepted {
		out = append(out, byHash[t.Hash()])
	}
	return out
}

func txRootOf(txs []tx.Transfer) []byte {
	leaves := make([][]byte, len(txs))
	for i, t := range txs {
		leaves[i] = t.Message()
	}
	return merkle.Root(leaves)
}

func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return new(big.Int), true
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

type submission struct {
	e      *Engine
	cp     state.Checkpoint
	txs    []tx.Signed
	header types.BatchHeader
	handle settlement.Handle

	done bool
	conf packer.Confirmation
	err  error
}

// Wait settles the batch once. Later calls return the first outcome.
func (s *submission) Wait(ctx context.Context, confirmations uint64) (packer.Confirmation, error) {
	if s.done {
		return s.conf, s.err
	}
	block, err := s.handle.Wait(ctx, confirmations)
	if err != nil {
		s.err = s.e.abort(s, err)
	} else {
		s.conf, s.err = s.e.finish(s, block)
	}
	s.done = true
	return s.conf, s.err
}

func (e *Engine) abort(s *submission, cause error) error {
	defer e.clearPending()
	err := fmt.Errorf("batch %d: %w", s.header.BatchID, cause)
	if rerr := e.db.Revert(s.cp); rerr != nil {
		return errors.Join(err, fmt.Errorf("revert batch: %w", rerr))
	}
	e.pool.Requeue(s.txs)
	for _, t := range s.txs {
		e.deleteReceipt(t.Hash())
	}
	confirmFailures.Inc()
	e.logger.Warn("batch reverted", zap.Uint64("batch_id", s.header.BatchID), zap.Error(cause))
	return err
}

func (e *Engine) finish(s *submission, block uint64) (packer.Confirmation, error) {
	defer e.clearPending()
	hdr := s.header
	hdr.BlockNumber = block
	hdr.TimeUTC = e.clock.Now().UTC().Unix()
	receipts := make([]types.TxReceipt, len(s.txs))
	for i, t := range s.txs {
		receipts[i] = e.receipt(t.Transfer, types.StatusAccepted, hdr.BatchID)
	}
	records, err := batchRecords(hdr, receipts)
	if err != nil {
		return packer.Confirmation{}, err
	}
	if err := e.db.CommitMeta(records); err != nil {
		return packer.Confirmation{}, fmt.Errorf("commit batch %d: %w", hdr.BatchID, err)
	}
	e.mu.Lock()
	e.lastBatch = hdr.BatchID
	e.mu.Unlock()
	batchesConfirmed.Inc()
	e.broadcastAsync("batch", hdr)
	return packer.Confirmation{BlockNumber: block}, nil
}

func (e *Engine) clearPending() {
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
}
