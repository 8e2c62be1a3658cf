package packer

import (
	"fmt"
	"sync"
)

// Point is the last batch the operator saw confirmed on the settlement
// layer, together with the block that confirmed it.
type Point struct {
	BatchID     uint64 `json:"batch_id"     cbor:"batch_id"`
	BlockNumber uint64 `json:"block_number" cbor:"block_number"`
}

func (p Point) String() string {
	return fmt.Sprintf("batch %d @ block %d", p.BatchID, p.BlockNumber)
}

// SyncPoint owns the current Point. Only the packer advances it; anyone may
// read it.
type SyncPoint struct {
	mu    sync.RWMutex
	point Point
}

func NewSyncPoint(initial Point) *SyncPoint {
	syncBatchID.Set(float64(initial.BatchID))
	syncBlockNumber.Set(float64(initial.BlockNumber))
	return &SyncPoint{point: initial}
}

func (s *SyncPoint) Get() Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.point
}

// Advance records one more confirmed batch at block and returns the new
// point.
func (s *SyncPoint) Advance(block uint64) Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.point.BatchID++
	s.point.BlockNumber = block
	syncBatchID.Set(float64(s.point.BatchID))
	syncBlockNumber.Set(float64(s.point.BlockNumber))
	return s.point
}
