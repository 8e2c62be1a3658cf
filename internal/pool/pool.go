// Package pool holds signed transfers waiting to be packed into a batch.
package pool

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"rollupd/internal/tx"
)

const (
	DefaultCapacity  = 4096
	DefaultDedupSize = 1 << 16
)

var (
	ErrPoolFull  = errors.New("pool is full")
	ErrDuplicate = errors.New("transfer already seen")
)

// Pool is a FIFO queue of signed transfers. Recently admitted hashes are
// remembered so the same transfer is not queued twice.
type Pool struct {
	mu       sync.Mutex
	queue    []tx.Signed
	capacity int
	seen     *lru.Cache[string, struct{}]
}

func New(capacity, dedupSize int) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if dedupSize <= 0 {
		dedupSize = DefaultDedupSize
	}
	seen, err := lru.New[string, struct{}](dedupSize)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &Pool{capacity: capacity, seen: seen}, nil
}

// Add appends s to the tail of the queue.
func (p *Pool) Add(s tx.Signed) error {
	h := s.Hash()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen.Contains(h) {
		return ErrDuplicate
	}
	if len(p.queue) >= p.capacity {
		return ErrPoolFull
	}
	p.seen.Add(h, struct{}{})
	p.queue = append(p.queue, s)
	poolSize.Set(float64(len(p.queue)))
	return nil
}

func (p *Pool) Empty() bool {
	return p.Len() == 0
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Drain removes and returns up to max transfers from the head of the queue.
// max <= 0 drains everything.
func (p *Pool) Drain(max int) []tx.Signed {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	if max > 0 && max < n {
		n = max
	}
	out := make([]tx.Signed, n)
	copy(out, p.queue[:n])
	p.queue = append(p.queue[:0:0], p.queue[n:]...)
	poolSize.Set(float64(len(p.queue)))
	return out
}

// Requeue puts previously drained transfers back at the head of the queue,
// keeping their order. Capacity is not enforced here.
func (p *Pool) Requeue(txs []tx.Signed) {
	if len(txs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	q := make([]tx.Signed, 0, len(txs)+len(p.queue))
	q = append(q, txs...)
	p.queue = append(q, p.queue...)
	poolSize.Set(float64(len(p.queue)))
}

// Pending reports whether a transfer with the given hash is queued.
func (p *Pool) Pending(hash string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.queue {
		if s.Hash() == hash {
			return true
		}
	}
	return false
}
