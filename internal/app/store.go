package app

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"rollupd/internal/codec"
	"rollupd/internal/state"
	"rollupd/internal/types"
)

var ErrBatchNotFound = errors.New("batch not found")

const (
	receiptKeyPrefix = "receipt/"
	batchKeyPrefix   = "batch/"
	latestBatchKey   = "batch/latest"
)

func (e *Engine) putReceipt(r types.TxReceipt) {
	b, err := codec.Marshal(r)
	if err == nil {
		err = e.db.PutMeta(receiptKeyPrefix+r.TxHash, b)
	}
	if err != nil {
		e.logger.Warn("store receipt", zap.String("tx", r.TxHash), zap.Error(err))
	}
}

func (e *Engine) deleteReceipt(hash string) {
	if err := e.db.DeleteMeta(receiptKeyPrefix + hash); err != nil {
		e.logger.Warn("delete receipt", zap.String("tx", hash), zap.Error(err))
	}
}

func (e *Engine) loadReceipt(hash string) (types.TxReceipt, error) {
	b, err := e.db.GetMeta(receiptKeyPrefix + hash)
	if err != nil {
		return types.TxReceipt{}, err
	}
	var r types.TxReceipt
	if err := codec.Unmarshal(b, &r); err != nil {
		return types.TxReceipt{}, fmt.Errorf("decode receipt %s: %w", hash, err)
	}
	return r, nil
}

// batchRecords encodes a confirmed batch: its header under the id and
// latest keys plus the accepted receipts.
func batchRecords(hdr types.BatchHeader, receipts []types.TxReceipt) (map[string][]byte, error) {
	b, err := codec.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("encode batch %d: %w", hdr.BatchID, err)
	}
	records := make(map[string][]byte, len(receipts)+2)
	records[batchKeyPrefix+strconv.FormatUint(hdr.BatchID, 10)] = b
	records[latestBatchKey] = b
	for _, r := range receipts {
		rb, err := codec.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode receipt %s: %w", r.TxHash, err)
		}
		records[receiptKeyPrefix+r.TxHash] = rb
	}
	return records, nil
}

func (e *Engine) Batch(id uint64) (types.BatchHeader, error) {
	return e.loadBatch(batchKeyPrefix + strconv.FormatUint(id, 10))
}

func (e *Engine) LatestBatch() (types.BatchHeader, error) {
	return e.loadBatch(latestBatchKey)
}

func (e *Engine) loadBatch(key string) (types.BatchHeader, error) {
	b, err := e.db.GetMeta(key)
	if errors.Is(err, state.ErrMetaNotFound) {
		return types.BatchHeader{}, ErrBatchNotFound
	}
	if err != nil {
		return types.BatchHeader{}, err
	}
	var hdr types.BatchHeader
	if err := codec.Unmarshal(b, &hdr); err != nil {
		return types.BatchHeader{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return hdr, nil
}
