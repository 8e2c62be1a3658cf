package packer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
)

type testPacker struct {
	*Packer
	pool  *MockPool
	cmd   *MockPackingCommand
	sync  *SyncPoint
	clock clockwork.FakeClock
	ctrl  *gomock.Controller
}

func newTestPacker(t *testing.T, start Point, cfg Config) *testPacker {
	t.Helper()
	ctrl := gomock.NewController(t)
	tp := &testPacker{
		pool:  NewMockPool(ctrl),
		cmd:   NewMockPackingCommand(ctrl),
		sync:  NewSyncPoint(start),
		clock: clockwork.NewFakeClock(),
		ctrl:  ctrl,
	}
	tp.Packer = New(tp.pool, tp.cmd, tp.sync,
		WithLogger(zaptest.NewLogger(t)),
		WithClock(tp.clock),
		WithConfig(cfg),
	)
	return tp
}

func noRetry() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 0
	return cfg
}

func (tp *testPacker) run(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tp.Run(ctx) }()
	return cancel, done
}

func TestSyncPoint_Advance(t *testing.T) {
	sp := NewSyncPoint(Point{BatchID: 5, BlockNumber: 900})
	require.Equal(t, Point{BatchID: 6, BlockNumber: 1000}, sp.Advance(1000))
	require.Equal(t, Point{BatchID: 6, BlockNumber: 1000}, sp.Get())
	require.Equal(t, "batch 6 @ block 1000", sp.Get().String())
}

func TestPacker_IdleWhenPoolEmpty(t *testing.T) {
	tp := newTestPacker(t, Point{BatchID: 5, BlockNumber: 900}, DefaultConfig())
	var checks atomic.Int32
	tp.pool.EXPECT().Empty().DoAndReturn(func() bool {
		checks.Add(1)
		return true
	}).AnyTimes()
	// no PackAndSubmit expectation: any call fails the test

	cancel, done := tp.run(t)
	tp.clock.BlockUntil(1)
	require.EqualValues(t, 1, checks.Load())

	tp.clock.Advance(9 * time.Second)
	require.EqualValues(t, 1, checks.Load())

	tp.clock.Advance(time.Second)
	tp.clock.BlockUntil(1)
	require.EqualValues(t, 2, checks.Load())

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, Point{BatchID: 5, BlockNumber: 900}, tp.sync.Get())
}

func TestPacker_ConfirmedBatchAdvancesSyncPoint(t *testing.T) {
	tp := newTestPacker(t, Point{BatchID: 5, BlockNumber: 900}, noRetry())
	sub := NewMockSubmission(tp.ctrl)
	tp.pool.EXPECT().Empty().Return(false)
	tp.cmd.EXPECT().PackAndSubmit(gomock.Any()).Return(sub, nil)
	sub.EXPECT().Wait(gomock.Any(), uint64(1)).Return(Confirmation{BlockNumber: 1000}, nil)

	tp.cycle(context.Background())
	require.Equal(t, Point{BatchID: 6, BlockNumber: 1000}, tp.sync.Get())
}

func TestPacker_SubmitFailureKeepsSyncPoint(t *testing.T) {
	tp := newTestPacker(t, Point{BatchID: 5, BlockNumber: 900}, noRetry())
	tp.pool.EXPECT().Empty().Return(false)
	tp.cmd.EXPECT().PackAndSubmit(gomock.Any()).Return(nil, errors.New("rpc down"))

	tp.cycle(context.Background())
	require.Equal(t, Point{BatchID: 5, BlockNumber: 900}, tp.sync.Get())
}

func TestPacker_WaitFailureKeepsSyncPoint(t *testing.T) {
	tp := newTestPacker(t, Point{BatchID: 5, BlockNumber: 900}, noRetry())
	sub := NewMockSubmission(tp.ctrl)
	tp.pool.EXPECT().Empty().Return(false)
	tp.cmd.EXPECT().PackAndSubmit(gomock.Any()).Return(sub, nil)
	sub.EXPECT().Wait(gomock.Any(), uint64(1)).Return(Confirmation{}, errors.New("reverted"))

	tp.cycle(context.Background())
	require.Equal(t, Point{BatchID: 5, BlockNumber: 900}, tp.sync.Get())
}

func TestPacker_ConfirmTimeout(t *testing.T) {
	cfg := noRetry()
	cfg.ConfirmTimeout = 10 * time.Millisecond
	cfg.Confirmations = 3
	tp := newTestPacker(t, Point{}, cfg)
	sub := NewMockSubmission(tp.ctrl)
	tp.pool.EXPECT().Empty().Return(false)
	tp.cmd.EXPECT().PackAndSubmit(gomock.Any()).Return(sub, nil)
	sub.EXPECT().Wait(gomock.Any(), uint64(3)).DoAndReturn(
		func(ctx context.Context, _ uint64) (Confirmation, error) {
			<-ctx.Done()
			return Confirmation{}, ctx.Err()
		})

	tp.cycle(context.Background())
	require.Equal(t, Point{}, tp.sync.Get())
}

func TestPacker_FailureWaitsRetryDelay(t *testing.T) {
	tp := newTestPacker(t, Point{}, DefaultConfig())
	gomock.InOrder(
		tp.pool.EXPECT().Empty().Return(false),
		tp.cmd.EXPECT().PackAndSubmit(gomock.Any()).Return(nil, errors.New("rpc down")),
	)
	tp.pool.EXPECT().Empty().Return(true).AnyTimes()

	cancel, done := tp.run(t)
	tp.clock.BlockUntil(1)
	tp.clock.Advance(DefaultConfig().RetryDelay)
	tp.clock.BlockUntil(1)
	cancel()
	require.NoError(t, <-done)
}

func TestPacker_CyclesDoNotOverlap(t *testing.T) {
	tp := newTestPacker(t, Point{}, noRetry())
	var inflight, maxInflight atomic.Int32
	var block atomic.Uint64
	block.Store(1000)

	tp.pool.EXPECT().Empty().Return(false).Times(3)
	tp.pool.EXPECT().Empty().Return(true).AnyTimes()
	tp.cmd.EXPECT().PackAndSubmit(gomock.Any()).DoAndReturn(
		func(context.Context) (Submission, error) {
			n := inflight.Add(1)
			if n > maxInflight.Load() {
				maxInflight.Store(n)
			}
			sub := NewMockSubmission(tp.ctrl)
			sub.EXPECT().Wait(gomock.Any(), uint64(1)).DoAndReturn(
				func(context.Context, uint64) (Confirmation, error) {
					inflight.Add(-1)
					return Confirmation{BlockNumber: block.Add(1)}, nil
				})
			return sub, nil
		}).Times(3)

	cancel, done := tp.run(t)
	tp.clock.BlockUntil(1)
	cancel()
	require.NoError(t, <-done)

	require.EqualValues(t, 1, maxInflight.Load())
	require.Equal(t, Point{BatchID: 3, BlockNumber: 1003}, tp.sync.Get())
}

func TestPacker_RunTwice(t *testing.T) {
	tp := newTestPacker(t, Point{}, DefaultConfig())
	tp.pool.EXPECT().Empty().Return(true).AnyTimes()

	cancel, done := tp.run(t)
	tp.clock.BlockUntil(1)
	require.ErrorIs(t, tp.Run(context.Background()), ErrAlreadyRunning)
	cancel()
	require.NoError(t, <-done)
}
