// Package app wires the ledger, the pool and the settlement client into
// the operator engine the packer and the HTTP API drive.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"rollupd/internal/packer"
	"rollupd/internal/pool"
	"rollupd/internal/settlement"
	"rollupd/internal/state"
	"rollupd/internal/tx"
	"rollupd/internal/types"
)

var (
	ErrNothingToPack = errors.New("no transfer accepted into the batch")
	ErrBatchPending  = errors.New("previous batch is not settled yet")
)

type Config struct {
	FeeReceiver  uint32 `mapstructure:"fee-receiver"`
	MaxBatchSize int    `mapstructure:"max-batch-size"`
}

func DefaultConfig() Config {
	return Config{MaxBatchSize: 512}
}

type Opt func(*Engine)

func WithLogger(logger *zap.Logger) Opt {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithConfig(cfg Config) Opt {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithProcessor(p *state.Processor) Opt {
	return func(e *Engine) {
		e.proc = p
	}
}

type Engine struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	cfg       Config
	db        *state.DB
	pool      *pool.Pool
	proc      *state.Processor
	submitter settlement.Submitter

	mu        sync.Mutex
	lastBatch uint64
	pending   *submission
	subs      map[chan []byte]struct{}
}

var _ packer.PackingCommand = (*Engine)(nil)

func NewEngine(db *state.DB, p *pool.Pool, submitter settlement.Submitter, opts ...Opt) (*Engine, error) {
	e := &Engine{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		cfg:       DefaultConfig(),
		db:        db,
		pool:      p,
		submitter: submitter,
		subs:      make(map[chan []byte]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.proc == nil {
		e.proc = state.NewProcessor(state.WithLogger(e.logger))
	}
	hdr, err := e.LatestBatch()
	switch {
	case errors.Is(err, ErrBatchNotFound):
	case err != nil:
		return nil, err
	default:
		e.lastBatch = hdr.BatchID
	}
	return e, nil
}

// GenesisAccount is one account created on an empty ledger.
type GenesisAccount struct {
	Index    uint32 `json:"index"     mapstructure:"index"`
	PubkeyID uint32 `json:"pubkey_id" mapstructure:"pubkey_id"`
	TokenID  uint32 `json:"token_id"  mapstructure:"token_id"`
	Balance  string `json:"balance"   mapstructure:"balance"`
}

// InitGenesis creates accounts when the ledger is empty and is a no-op
// otherwise.
func (e *Engine) InitGenesis(accounts []GenesisAccount) error {
	if e.db.Len() > 0 {
		return nil
	}
	for _, g := range accounts {
		balance, ok := parseAmount(g.Balance)
		if !ok {
			return fmt.Errorf("genesis account %d: bad balance %q", g.Index, g.Balance)
		}
		if err := e.db.Create(g.Index, state.NewAccount(g.PubkeyID, g.TokenID, balance, nil)); err != nil {
			return fmt.Errorf("genesis account %d: %w", g.Index, err)
		}
	}
	e.logger.Info("genesis created", zap.Int("accounts", len(accounts)))
	return nil
}

// LastSyncPoint is the sync point implied by the latest stored batch.
func (e *Engine) LastSyncPoint() packer.Point {
	hdr, err := e.LatestBatch()
	if err != nil {
		return packer.Point{}
	}
	return packer.Point{BatchID: hdr.BatchID, BlockNumber: hdr.BlockNumber}
}

// AddTransfer queues a signed transfer for the next batch.
func (e *Engine) AddTransfer(s tx.Signed) (types.TxReceipt, error) {
	if err := e.pool.Add(s); err != nil {
		return types.TxReceipt{}, err
	}
	r := e.receipt(s.Transfer, types.StatusPending, 0)
	e.broadcastAsync("tx", r)
	return r, nil
}

func (e *Engine) Account(idx uint32) (state.Account, error) {
	return e.db.Get(idx)
}

func (e *Engine) StateRoot() []byte {
	return e.db.Root()
}

func (e *Engine) PoolSize() int {
	return e.pool.Len()
}

func (e *Engine) FeeReceiver() uint32 {
	return e.cfg.FeeReceiver
}

// Receipt reports the stored receipt for hash, or a pending one when the
// transfer still waits in the pool.
func (e *Engine) Receipt(hash string) (types.TxReceipt, bool) {
	r, err := e.loadReceipt(hash)
	if err == nil {
		return r, true
	}
	if e.pool.Pending(hash) {
		return types.TxReceipt{TxHash: hash, Status: types.StatusPending}, true
	}
	return types.TxReceipt{}, false
}

func (e *Engine) receipt(t tx.Transfer, status string, batch uint64) types.TxReceipt {
	return types.TxReceipt{
		TxHash:  t.Hash(),
		From:    t.FromIndex,
		To:      t.ToIndex,
		Amount:  t.Amount.String(),
		Fee:     t.Fee.String(),
		Nonce:   t.Nonce.String(),
		Status:  status,
		BatchID: batch,
		TimeUTC: e.clock.Now().UTC().Unix(),
	}
}

func (e *Engine) SubscribeForSSE() chan []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan []byte, 32)
	e.subs[ch] = struct{}{}
	return ch
}

func (e *Engine) UnsubscribeForSSE(ch chan []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[ch]; ok {
		delete(e.subs, ch)
		close(ch)
	}
}

// broadcastAsync fans an event out to subscribers without blocking the
// caller. Slow subscribers miss events.
func (e *Engine) broadcastAsync(kind string, payload any) {
	go func() {
		b, err := json.Marshal(map[string]any{"type": kind, "data": payload})
		if err != nil {
			e.logger.Warn("marshal event", zap.String("type", kind), zap.Error(err))
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		for ch := range e.subs {
			select {
			case ch <- b:
			default:
			}
		}
	}()
}
