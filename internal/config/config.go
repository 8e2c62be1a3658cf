// Package config holds the operator configuration and loads it with viper.
package config

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"rollupd/internal/app"
	"rollupd/internal/packer"
	"rollupd/internal/pool"
	"rollupd/internal/rpc"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	DataDir    string `mapstructure:"data-dir"`
	Listen     string `mapstructure:"listen"`
	LogLevel   string `mapstructure:"log-level"`
	LogEncoder string `mapstructure:"log-encoder"`

	// Genesis accounts are created only when the ledger is empty.
	Genesis []app.GenesisAccount `mapstructure:"genesis"`

	Batch      app.Config       `mapstructure:"batch"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Packer     packer.Config    `mapstructure:"packer"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	RPC        rpc.Config       `mapstructure:"rpc"`
}

type LedgerConfig struct {
	// StrictNonce rejects transfers whose nonce is not the sender's next one.
	StrictNonce bool `mapstructure:"strict-nonce"`
	// InMemory keeps the ledger out of data-dir. Everything is lost on exit.
	InMemory bool `mapstructure:"in-memory"`
}

type PoolConfig struct {
	Capacity  int `mapstructure:"capacity"`
	DedupSize int `mapstructure:"dedup-size"`
}

// SettlementConfig selects the settlement client. With an empty Endpoint
// batches are confirmed locally starting at LocalStartBlock.
type SettlementConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	RollupAddress   string        `mapstructure:"rollup-address"`
	ChainID         int64         `mapstructure:"chain-id"`
	KeyFile         string        `mapstructure:"key-file"`
	StakeWei        *big.Int      `mapstructure:"stake-wei"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`
	LocalStartBlock uint64        `mapstructure:"local-start-block"`
}

func (s SettlementConfig) Local() bool { return s.Endpoint == "" }

func DefaultConfig() Config {
	return Config{
		DataDir:    "./data",
		Listen:     "127.0.0.1:8080",
		LogLevel:   zapcore.InfoLevel.String(),
		LogEncoder: JSONLogEncoder,
		Batch:      app.DefaultConfig(),
		Pool: PoolConfig{
			Capacity:  pool.DefaultCapacity,
			DedupSize: pool.DefaultDedupSize,
		},
		Packer: packer.DefaultConfig(),
		Settlement: SettlementConfig{
			ChainID:      1337,
			KeyFile:      "operator.key",
			StakeWei:     new(big.Int),
			PollInterval: 2 * time.Second,
		},
		RPC: rpc.DefaultConfig(),
	}
}

// Load overlays the file at path, when given, on top of DefaultConfig.
// Unknown keys are an error.
func Load(path string, v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		BigIntDecodeFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		withErrorUnused(),
	}
	if err := v.Unmarshal(&cfg, opts...); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

func withErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}

var (
	bigIntType    = reflect.TypeOf(big.Int{})
	bigIntPtrType = reflect.TypeOf(&big.Int{})
)

// BigIntDecodeFunc decodes decimal strings and integers into *big.Int.
// mapstructure hands the hook either the pointer or, when the target already
// holds a value, the element type.
func BigIntDecodeFunc() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != bigIntType && to != bigIntPtrType {
			return data, nil
		}
		var n *big.Int
		switch v := data.(type) {
		case string:
			var ok bool
			n, ok = new(big.Int).SetString(strings.TrimSpace(v), 10)
			if !ok {
				return nil, fmt.Errorf("not an integer: %q", v)
			}
		case int:
			n = big.NewInt(int64(v))
		case int64:
			n = big.NewInt(v)
		case uint64:
			n = new(big.Int).SetUint64(v)
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("not an integer: %v", v)
			}
			f := new(big.Float).SetFloat64(v)
			if !f.IsInt() {
				return nil, fmt.Errorf("not an integer: %v", v)
			}
			n, _ = f.Int(nil)
		default:
			return data, nil
		}
		if to == bigIntType {
			return *n, nil
		}
		return n, nil
	}
}

func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log-level: %v", ErrInvalid, err)
	}
	if c.LogEncoder != JSONLogEncoder && c.LogEncoder != ConsoleLogEncoder {
		return fmt.Errorf("%w: log-encoder %q", ErrInvalid, c.LogEncoder)
	}
	if c.Packer.IdleDelay <= 0 {
		return fmt.Errorf("%w: packer.idle-delay must be positive", ErrInvalid)
	}
	if c.Packer.RetryDelay < 0 || c.Packer.ConfirmTimeout < 0 {
		return fmt.Errorf("%w: packer delays must not be negative", ErrInvalid)
	}
	if c.Batch.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: batch.max-batch-size must be positive", ErrInvalid)
	}
	if c.Pool.Capacity <= 0 {
		return fmt.Errorf("%w: pool.capacity must be positive", ErrInvalid)
	}
	if c.Settlement.StakeWei == nil || c.Settlement.StakeWei.Sign() < 0 {
		return fmt.Errorf("%w: settlement.stake-wei must not be negative", ErrInvalid)
	}
	if !c.Settlement.Local() {
		if !common.IsHexAddress(c.Settlement.RollupAddress) {
			return fmt.Errorf("%w: settlement.rollup-address %q", ErrInvalid, c.Settlement.RollupAddress)
		}
		if c.Settlement.ChainID <= 0 {
			return fmt.Errorf("%w: settlement.chain-id must be positive", ErrInvalid)
		}
		if c.Settlement.PollInterval <= 0 {
			return fmt.Errorf("%w: settlement.poll-interval must be positive", ErrInvalid)
		}
	}
	if c.RPC.VerifySignatures && c.RPC.PubkeyFile == "" {
		return fmt.Errorf("%w: rpc.verify-signatures needs rpc.pubkey-file", ErrInvalid)
	}
	if c.RPC.TxRate < 0 {
		return fmt.Errorf("%w: rpc.tx-rate must not be negative", ErrInvalid)
	}
	seen := make(map[uint32]struct{}, len(c.Genesis))
	for _, g := range c.Genesis {
		if _, ok := seen[g.Index]; ok {
			return fmt.Errorf("%w: genesis account %d listed twice", ErrInvalid, g.Index)
		}
		seen[g.Index] = struct{}{}
	}
	return nil
}
