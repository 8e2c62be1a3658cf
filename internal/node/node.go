// Package node assembles the operator from its configuration: ledger, pool,
// engine, settlement client, packer and HTTP API.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rollupd/internal/app"
	"rollupd/internal/config"
	"rollupd/internal/crypto"
	"rollupd/internal/packer"
	"rollupd/internal/pool"
	"rollupd/internal/rpc"
	"rollupd/internal/settlement"
	"rollupd/internal/state"
)

const shutdownTimeout = 5 * time.Second

type Opt func(*Node)

func WithLogger(logger *zap.Logger) Opt {
	return func(n *Node) {
		n.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(n *Node) {
		n.clock = clock
	}
}

// WithFs sets the filesystem key and registry files are read from.
func WithFs(fs afero.Fs) Opt {
	return func(n *Node) {
		n.fs = fs
	}
}

// WithBackend skips dialing settlement.endpoint.
func WithBackend(b settlement.Backend) Opt {
	return func(n *Node) {
		n.backend = b
	}
}

type Node struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   clockwork.Clock
	fs      afero.Fs
	backend settlement.Backend

	db       *state.DB
	pool     *pool.Pool
	engine   *app.Engine
	sync     *packer.SyncPoint
	packer   *packer.Packer
	handler  http.Handler
	operator string
	closers  []func()
}

func New(ctx context.Context, cfg config.Config, opts ...Opt) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Node{
		cfg:    cfg,
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := n.init(ctx); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func (n *Node) init(ctx context.Context) error {
	cfg := n.cfg
	if err := n.openLedger(); err != nil {
		return err
	}
	var err error
	n.pool, err = pool.New(cfg.Pool.Capacity, cfg.Pool.DedupSize)
	if err != nil {
		return err
	}
	submitter, err := n.newSubmitter(ctx)
	if err != nil {
		return err
	}
	n.engine, err = app.NewEngine(n.db, n.pool, submitter,
		app.WithLogger(n.logger.Named("engine")),
		app.WithClock(n.clock),
		app.WithConfig(cfg.Batch),
		app.WithProcessor(state.NewProcessor(
			state.WithLogger(n.logger.Named("state")),
			state.WithStrictNonce(cfg.Ledger.StrictNonce),
		)),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if err := n.engine.InitGenesis(cfg.Genesis); err != nil {
		return err
	}
	// batches credit their fees to this account
	if _, err := n.engine.Account(cfg.Batch.FeeReceiver); err != nil {
		return fmt.Errorf("%w: batch.fee-receiver %d: %w", config.ErrInvalid, cfg.Batch.FeeReceiver, err)
	}
	last := n.engine.LastSyncPoint()
	if local, ok := submitter.(*settlement.LocalSubmitter); ok {
		local.Resume(last.BlockNumber)
	}
	if eth, ok := submitter.(*settlement.EthSubmitter); ok {
		n.reconcile(ctx, eth, last)
	}

	n.sync = packer.NewSyncPoint(last)
	n.packer = packer.New(n.pool, n.engine, n.sync,
		packer.WithLogger(n.logger.Named("packer")),
		packer.WithClock(n.clock),
		packer.WithConfig(cfg.Packer),
	)

	rpcOpts := []rpc.Opt{
		rpc.WithLogger(n.logger.Named("rpc")),
		rpc.WithConfig(cfg.RPC),
		rpc.WithOperator(n.operator),
	}
	if cfg.RPC.VerifySignatures {
		reg, err := rpc.LoadRegistry(n.fs, cfg.RPC.PubkeyFile)
		if err != nil {
			return err
		}
		n.logger.Info("signature verification on", zap.Int("pubkeys", reg.Len()))
		rpcOpts = append(rpcOpts, rpc.WithRegistry(reg))
	}
	n.handler = rpc.NewRouter(n.engine, n.sync, rpcOpts...)
	return nil
}

func (n *Node) openLedger() error {
	if n.cfg.Ledger.InMemory {
		n.db = state.NewDB()
		return nil
	}
	db, err := state.Open(filepath.Join(n.cfg.DataDir, "ledger"))
	if err != nil {
		return err
	}
	n.db = db
	n.closers = append(n.closers, func() {
		if err := db.Close(); err != nil {
			n.logger.Warn("close ledger", zap.Error(err))
		}
	})
	return nil
}

func (n *Node) newSubmitter(ctx context.Context) (settlement.Submitter, error) {
	sc := n.cfg.Settlement
	if sc.Local() && n.backend == nil {
		n.logger.Info("settling batches locally", zap.Uint64("start_block", sc.LocalStartBlock))
		return settlement.NewLocalSubmitter(sc.LocalStartBlock), nil
	}
	if n.backend == nil {
		client, err := ethclient.DialContext(ctx, sc.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", sc.Endpoint, err)
		}
		n.backend = client
		n.closers = append(n.closers, client.Close)
	}
	key, err := crypto.LoadOrCreateOperatorKey(n.fs, n.dataPath(sc.KeyFile))
	if err != nil {
		return nil, err
	}
	eth, err := settlement.NewEthSubmitter(
		n.backend,
		common.HexToAddress(sc.RollupAddress),
		key,
		big.NewInt(sc.ChainID),
		sc.StakeWei,
		settlement.WithLogger(n.logger.Named("settlement")),
		settlement.WithClock(n.clock),
		settlement.WithPollInterval(sc.PollInterval),
	)
	if err != nil {
		return nil, err
	}
	n.operator = eth.Operator().Hex()
	n.logger.Info("settling batches on chain",
		zap.String("rollup", sc.RollupAddress),
		zap.String("operator", n.operator),
		zap.Int64("chain_id", sc.ChainID),
	)
	return eth, nil
}

// reconcile warns when the contract and the local ledger disagree on the
// next batch id. The ledger is not rewound.
func (n *Node) reconcile(ctx context.Context, eth *settlement.EthSubmitter, last packer.Point) {
	next, err := eth.NextBatchID(ctx)
	if err != nil {
		n.logger.Warn("query next batch id", zap.Error(err))
		return
	}
	if next != last.BatchID+1 {
		n.logger.Warn("settlement contract is ahead of or behind the ledger",
			zap.Uint64("contract_next_batch", next),
			zap.Stringer("sync_point", last),
		)
	}
}

func (n *Node) dataPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(n.cfg.DataDir, p)
}

func (n *Node) Handler() http.Handler { return n.handler }

func (n *Node) SyncPoint() packer.Point { return n.sync.Get() }

func (n *Node) Engine() *app.Engine { return n.engine }

// Run listens on the configured address and serves until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.cfg.Listen, err)
	}
	return n.Serve(ctx, ln)
}

// Serve runs the packer and the HTTP API on ln. A failure of either stops
// both.
func (n *Node) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           n.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	eg, ctx := errgroup.WithContext(ctx)
	// event streams end with ctx instead of holding up Shutdown
	srv.BaseContext = func(net.Listener) context.Context { return ctx }
	eg.Go(func() error {
		return n.packer.Run(ctx)
	})
	eg.Go(func() error {
		n.logger.Info("api listening", zap.Stringer("addr", ln.Addr()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return eg.Wait()
}

// Close releases the ledger and the settlement connection.
func (n *Node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
	n.closers = nil
}
