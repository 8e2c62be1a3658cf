package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	chainID = big.NewInt(1337)
	rollup  = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

// chain is a minimal in-memory node: it mines every sent transaction at
// the current head.
type chain struct {
	mu       sync.Mutex
	head     uint64
	revert   bool
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	nonce    uint64
}

func newChain(head uint64) *chain {
	return &chain{head: head, receipts: map[common.Hash]*types.Receipt{}}
}

func (c *chain) setHead(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = n
}

func (c *chain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x00}, nil
}

func (c *chain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := RollupMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return parsed.Methods["nextBatchID"].Outputs.Pack(big.NewInt(7))
}

func (c *chain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(c.head), BaseFee: big.NewInt(1e9)}, nil
}

func (c *chain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x00}, nil
}

func (c *chain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *chain) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(2e9), nil }

func (c *chain) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }

func (c *chain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 200_000, nil }

func (c *chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := types.ReceiptStatusSuccessful
	if c.revert {
		status = types.ReceiptStatusFailed
	}
	c.nonce++
	c.sent = append(c.sent, tx)
	c.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(c.head),
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(c.head)),
	}
	return nil
}

func (c *chain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *chain) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (c *chain) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func newTestSubmitter(t *testing.T, c *chain, clock clockwork.Clock) *EthSubmitter {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := NewEthSubmitter(c, rollup, key, chainID, big.NewInt(1000),
		WithLogger(zaptest.NewLogger(t)),
		WithClock(clock),
		WithPollInterval(time.Second),
	)
	require.NoError(t, err)
	return s
}

func commitment() Commitment {
	return Commitment{
		BatchID:     3,
		StateRoot:   common.HexToHash("0x01"),
		TxRoot:      common.HexToHash("0x02"),
		Signature:   [2]*big.Int{big.NewInt(11), big.NewInt(12)},
		FeeReceiver: 100,
		Txs:         []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}
}

func TestEthSubmitter_SubmitEncodesCall(t *testing.T) {
	c := newChain(10)
	s := newTestSubmitter(t, c, clockwork.NewFakeClock())
	h, err := s.Submit(context.Background(), commitment())
	require.NoError(t, err)

	require.Len(t, c.sent, 1)
	sent := c.sent[0]
	require.Equal(t, h.TxHash(), sent.Hash())
	require.Equal(t, rollup, *sent.To())
	require.Equal(t, int64(1000), sent.Value().Int64())

	from, err := types.Sender(types.LatestSignerForChainID(chainID), sent)
	require.NoError(t, err)
	require.Equal(t, s.Operator(), from)

	parsed, err := RollupMetaData.GetAbi()
	require.NoError(t, err)
	method, err := parsed.MethodById(sent.Data()[:4])
	require.NoError(t, err)
	require.Equal(t, submitTransferMethod, method.Name)
	args, err := method.Inputs.Unpack(sent.Data()[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)

	roots := args[0].([][32]byte)
	require.Equal(t, [][32]byte{common.HexToHash("0x01")}, roots)
	sigs := args[1].([][2]*big.Int)
	require.Len(t, sigs, 1)
	require.Equal(t, int64(11), sigs[0][0].Int64())
	require.Equal(t, int64(12), sigs[0][1].Int64())
	receivers := args[2].([]*big.Int)
	require.Equal(t, int64(100), receivers[0].Int64())
	txss := args[3].([][]byte)
	require.Equal(t, commitment().Txs, txss[0])
}

func TestEthSubmitter_WaitIncluded(t *testing.T) {
	c := newChain(10)
	s := newTestSubmitter(t, c, clockwork.NewFakeClock())
	h, err := s.Submit(context.Background(), commitment())
	require.NoError(t, err)

	block, err := h.Wait(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(10), block)
}

func TestEthSubmitter_WaitConfirmations(t *testing.T) {
	c := newChain(10)
	clock := clockwork.NewFakeClock()
	s := newTestSubmitter(t, c, clock)
	h, err := s.Submit(context.Background(), commitment())
	require.NoError(t, err)

	type result struct {
		block uint64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		block, err := h.Wait(context.Background(), 3)
		done <- result{block, err}
	}()

	clock.BlockUntil(1)
	c.setHead(11)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	select {
	case <-done:
		t.Fatal("returned before reaching depth")
	default:
	}
	c.setHead(12)
	clock.Advance(time.Second)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, uint64(10), res.block)
}

func TestEthSubmitter_Reverted(t *testing.T) {
	c := newChain(10)
	c.revert = true
	s := newTestSubmitter(t, c, clockwork.NewFakeClock())
	h, err := s.Submit(context.Background(), commitment())
	require.NoError(t, err)

	_, err = h.Wait(context.Background(), 1)
	require.ErrorIs(t, err, ErrReverted)
}

func TestEthSubmitter_WaitCancelled(t *testing.T) {
	c := newChain(10)
	s := newTestSubmitter(t, c, clockwork.NewFakeClock())
	h, err := s.Submit(context.Background(), commitment())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Wait(ctx, 5)
	require.Error(t, err)
}

func TestEthSubmitter_NextBatchID(t *testing.T) {
	s := newTestSubmitter(t, newChain(1), clockwork.NewFakeClock())
	id, err := s.NextBatchID(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(7), id)
}

func TestLocalSubmitter(t *testing.T) {
	l := NewLocalSubmitter(900)
	h1, err := l.Submit(context.Background(), commitment())
	require.NoError(t, err)
	c2 := commitment()
	c2.BatchID = 4
	h2, err := l.Submit(context.Background(), c2)
	require.NoError(t, err)
	require.NotEqual(t, h1.TxHash(), h2.TxHash())

	b1, err := h1.Wait(context.Background(), 1)
	require.NoError(t, err)
	b2, err := h2.Wait(context.Background(), 6)
	require.NoError(t, err)
	require.Equal(t, uint64(901), b1)
	require.Equal(t, uint64(902), b2)
	require.Len(t, l.Submitted(), 2)
}

func TestLocalSubmitter_Resume(t *testing.T) {
	l := NewLocalSubmitter(10)
	l.Resume(900)
	l.Resume(5)
	h, err := l.Submit(context.Background(), commitment())
	require.NoError(t, err)
	b, err := h.Wait(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(901), b)
}
