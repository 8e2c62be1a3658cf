package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const DefaultPollInterval = 2 * time.Second

// Backend is what EthSubmitter needs from a node connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Opt func(*EthSubmitter)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *EthSubmitter) {
		s.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(s *EthSubmitter) {
		s.clock = clock
	}
}

// WithPollInterval sets how often the chain head is checked while waiting
// for confirmations.
func WithPollInterval(d time.Duration) Opt {
	return func(s *EthSubmitter) {
		s.poll = d
	}
}

// EthSubmitter posts commitments to the rollup contract with
// submitTransfer, paying the configured stake with every call.
type EthSubmitter struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	poll     time.Duration
	backend  Backend
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	stake    *big.Int
}

func NewEthSubmitter(
	backend Backend,
	rollup common.Address,
	key *ecdsa.PrivateKey,
	chainID, stake *big.Int,
	opts ...Opt,
) (*EthSubmitter, error) {
	parsed, err := RollupMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("parse rollup abi: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	if stake == nil {
		stake = new(big.Int)
	}
	s := &EthSubmitter{
		logger:   zap.NewNop(),
		clock:    clockwork.NewRealClock(),
		poll:     DefaultPollInterval,
		backend:  backend,
		contract: bind.NewBoundContract(rollup, *parsed, backend, backend, backend),
		auth:     auth,
		stake:    new(big.Int).Set(stake),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Operator is the address paying for submissions.
func (s *EthSubmitter) Operator() common.Address { return s.auth.From }

// NextBatchID asks the contract for the id it will assign to the next batch.
func (s *EthSubmitter) NextBatchID(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := s.contract.Call(&bind.CallOpts{Context: ctx}, &out, "nextBatchID"); err != nil {
		return 0, fmt.Errorf("call nextBatchID: %w", err)
	}
	id, ok := out[0].(*big.Int)
	if !ok || !id.IsUint64() {
		return 0, fmt.Errorf("unexpected nextBatchID result %v", out[0])
	}
	return id.Uint64(), nil
}

func (s *EthSubmitter) Submit(ctx context.Context, c Commitment) (Handle, error) {
	opts := *s.auth
	opts.Context = ctx
	opts.Value = new(big.Int).Set(s.stake)

	sig := c.Signature
	for i := range sig {
		if sig[i] == nil {
			sig[i] = new(big.Int)
		}
	}
	tx, err := s.contract.Transact(&opts, submitTransferMethod,
		[][32]byte{c.StateRoot},
		[][2]*big.Int{sig},
		[]*big.Int{new(big.Int).SetUint64(uint64(c.FeeReceiver))},
		[][]byte{c.Txs},
	)
	if err != nil {
		return nil, fmt.Errorf("submit batch %d: %w", c.BatchID, err)
	}
	s.logger.Info("batch submitted",
		zap.Uint64("batch_id", c.BatchID),
		zap.Stringer("tx", tx.Hash()),
		zap.Stringer("state_root", c.StateRoot),
		zap.Int("payload", len(c.Txs)),
	)
	return &ethHandle{s: s, tx: tx}, nil
}

type ethHandle struct {
	s  *EthSubmitter
	tx *types.Transaction
}

func (h *ethHandle) TxHash() common.Hash { return h.tx.Hash() }

func (h *ethHandle) Wait(ctx context.Context, confirmations uint64) (uint64, error) {
	receipt, err := bind.WaitMined(ctx, h.s.backend, h.tx)
	if err != nil {
		return 0, fmt.Errorf("wait for %s: %w", h.tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return 0, fmt.Errorf("%w: %s", ErrReverted, h.tx.Hash())
	}
	block := receipt.BlockNumber.Uint64()
	if confirmations <= 1 {
		return block, nil
	}

	target := block + confirmations - 1
	for {
		head, err := h.s.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("read head: %w", err)
		}
		if head.Number.Uint64() >= target {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-h.s.clock.After(h.s.poll):
		}
	}

	again, err := h.s.backend.TransactionReceipt(ctx, h.tx.Hash())
	switch {
	case errors.Is(err, ethereum.NotFound):
		return 0, fmt.Errorf("%w: %s", ErrReorged, h.tx.Hash())
	case err != nil:
		return 0, fmt.Errorf("recheck receipt: %w", err)
	case again.BlockHash != receipt.BlockHash:
		return 0, fmt.Errorf("%w: %s moved to block %d", ErrReorged, h.tx.Hash(), again.BlockNumber)
	}
	return block, nil
}
