// Package packer runs the operator's packing loop: while the pool has
// transfers it packs a batch, submits it, waits for confirmation and
// advances the sync point.
package packer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("packer is already running")

type Config struct {
	// IdleDelay is how long the packer sleeps when the pool is empty.
	IdleDelay time.Duration `mapstructure:"idle-delay"`

	// Confirmations is the settlement depth a batch must reach before the
	// sync point moves.
	Confirmations uint64 `mapstructure:"confirmations"`

	// ConfirmTimeout bounds the wait for confirmations. Zero waits until
	// the batch confirms or the packer stops.
	ConfirmTimeout time.Duration `mapstructure:"confirm-timeout"`

	// RetryDelay is the pause after a failed cycle.
	RetryDelay time.Duration `mapstructure:"retry-delay"`
}

func DefaultConfig() Config {
	return Config{
		IdleDelay:     10 * time.Second,
		Confirmations: 1,
		RetryDelay:    time.Second,
	}
}

type Opt func(*Packer)

func WithLogger(logger *zap.Logger) Opt {
	return func(p *Packer) {
		p.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(p *Packer) {
		p.cfg = cfg
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(p *Packer) {
		p.clock = clock
	}
}

type Packer struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	cfg     Config
	pool    Pool
	cmd     PackingCommand
	sync    *SyncPoint
	running atomic.Bool
}

func New(pool Pool, cmd PackingCommand, sp *SyncPoint, opts ...Opt) *Packer {
	p := &Packer{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		cfg:    DefaultConfig(),
		pool:   pool,
		cmd:    cmd,
		sync:   sp,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes packing cycles one after another until ctx is cancelled.
func (p *Packer) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.logger.Info("packer started",
		zap.Stringer("sync_point", p.sync.Get()),
		zap.Duration("idle_delay", p.cfg.IdleDelay),
		zap.Uint64("confirmations", p.cfg.Confirmations),
	)
	for ctx.Err() == nil {
		p.cycle(ctx)
	}
	p.logger.Info("packer stopped", zap.Stringer("sync_point", p.sync.Get()))
	return nil
}

func (p *Packer) cycle(ctx context.Context) {
	if p.pool.Empty() {
		idleCycles.Inc()
		p.sleep(ctx, p.cfg.IdleDelay)
		return
	}

	logger := p.logger.With(zap.Stringer("cycle", uuid.New()))
	start := p.clock.Now()
	point, err := p.pack(ctx)
	if err != nil {
		failedCycles.Inc()
		if ctx.Err() != nil {
			logger.Info("packing interrupted", zap.Error(err))
			return
		}
		logger.Warn("packing failed", zap.Error(err))
		p.sleep(ctx, p.cfg.RetryDelay)
		return
	}
	packedCycles.Inc()
	cycleDuration.Observe(p.clock.Since(start).Seconds())
	logger.Info("batch confirmed",
		zap.Uint64("batch_id", point.BatchID),
		zap.Uint64("block_number", point.BlockNumber),
	)
}

func (p *Packer) pack(ctx context.Context) (Point, error) {
	sub, err := p.cmd.PackAndSubmit(ctx)
	if err != nil {
		return Point{}, fmt.Errorf("pack and submit: %w", err)
	}
	waitCtx := ctx
	if p.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
		defer cancel()
	}
	conf, err := sub.Wait(waitCtx, p.cfg.Confirmations)
	if err != nil {
		return Point{}, fmt.Errorf("wait for %d confirmations: %w", p.cfg.Confirmations, err)
	}
	return p.sync.Advance(conf.BlockNumber), nil
}

func (p *Packer) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-p.clock.After(d):
	}
}
