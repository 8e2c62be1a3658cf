package config

import (
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"rollupd/internal/app"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.Settlement.Local())
	require.Equal(t, 10*time.Second, cfg.Packer.IdleDelay)
	require.Equal(t, uint64(1), cfg.Packer.Confirmations)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", viper.New())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Listen, cfg.Listen)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "rollupd.toml", `
listen = "0.0.0.0:9000"
log-level = "debug"
log-encoder = "console"

[batch]
fee-receiver = 100
max-batch-size = 64

[ledger]
strict-nonce = true

[packer]
idle-delay = "3s"
confirmations = 6
confirm-timeout = "10m"

[settlement]
endpoint = "http://127.0.0.1:8545"
rollup-address = "0x000000000000000000000000000000000000beef"
chain-id = 31337
stake-wei = "100000000000000000000"

[rpc]
verify-signatures = true
pubkey-file = "pubkeys.json"
tx-rate = 5.5
token-decimals = 6

[[genesis]]
index = 100
token_id = 1
balance = 0

[[genesis]]
index = 1
pubkey_id = 7
token_id = 1
balance = "1000"
`)
	cfg, err := Load(path, viper.New())
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, ConsoleLogEncoder, cfg.LogEncoder)
	require.Equal(t, app.Config{FeeReceiver: 100, MaxBatchSize: 64}, cfg.Batch)
	require.True(t, cfg.Ledger.StrictNonce)
	require.Equal(t, 3*time.Second, cfg.Packer.IdleDelay)
	require.Equal(t, uint64(6), cfg.Packer.Confirmations)
	require.Equal(t, 10*time.Minute, cfg.Packer.ConfirmTimeout)
	require.Equal(t, time.Second, cfg.Packer.RetryDelay, "unset keys keep defaults")
	require.False(t, cfg.Settlement.Local())
	require.Equal(t, int64(31337), cfg.Settlement.ChainID)
	want, _ := new(big.Int).SetString("100000000000000000000", 10)
	require.Zero(t, want.Cmp(cfg.Settlement.StakeWei))
	require.Equal(t, 5.5, cfg.RPC.TxRate)
	require.Equal(t, int32(6), cfg.RPC.TokenDecimals)
	require.Equal(t, []app.GenesisAccount{
		{Index: 100, TokenID: 1, Balance: "0"},
		{Index: 1, PubkeyID: 7, TokenID: 1, Balance: "1000"},
	}, cfg.Genesis)
}

func TestLoad_YAMLIntegerStake(t *testing.T) {
	path := writeConfig(t, "rollupd.yaml", "settlement:\n  stake-wei: 42\n")
	cfg, err := Load(path, viper.New())
	require.NoError(t, err)
	require.Equal(t, int64(42), cfg.Settlement.StakeWei.Int64())
}

func TestLoad_IntegerStakeFormats(t *testing.T) {
	for name, body := range map[string]string{
		"rollupd.toml": "[settlement]\nstake-wei = 1000000000000000000\n",
		"rollupd.json": `{"settlement": {"stake-wei": 1000000000000000000}}`,
		"big.yaml":     "settlement:\n  stake-wei: \"123456789012345678901234567890\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, name, body), viper.New())
			require.NoError(t, err)
			want := "1000000000000000000"
			if name == "big.yaml" {
				want = "123456789012345678901234567890"
			}
			require.Equal(t, want, cfg.Settlement.StakeWei.String())
		})
	}
}

func TestBigIntDecodeFunc(t *testing.T) {
	hook := BigIntDecodeFunc()
	intType := reflect.TypeOf(0)
	strType := reflect.TypeOf("")

	out, err := hook(intType, reflect.TypeOf(big.Int{}), 42)
	require.NoError(t, err)
	v, ok := out.(big.Int)
	require.True(t, ok, "element target gets a value, got %T", out)
	require.Equal(t, int64(42), v.Int64())

	out, err = hook(strType, reflect.TypeOf(&big.Int{}), " 7 ")
	require.NoError(t, err)
	require.Equal(t, int64(7), out.(*big.Int).Int64())

	out, err = hook(reflect.TypeOf(0.0), reflect.TypeOf(&big.Int{}), 3.0)
	require.NoError(t, err)
	require.Equal(t, int64(3), out.(*big.Int).Int64())

	_, err = hook(reflect.TypeOf(0.0), reflect.TypeOf(&big.Int{}), 3.5)
	require.Error(t, err)
	_, err = hook(strType, reflect.TypeOf(big.Int{}), "lots")
	require.Error(t, err)

	out, err = hook(strType, strType, "untouched")
	require.NoError(t, err)
	require.Equal(t, "untouched", out)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), viper.New())
	require.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "unknown.toml", "no-such-key = 1\n"), viper.New())
	require.ErrorContains(t, err, "unmarshal config")

	_, err = Load(writeConfig(t, "stake.toml", "[settlement]\nstake-wei = \"lots\"\n"), viper.New())
	require.ErrorContains(t, err, "unmarshal config")

	_, err = Load(writeConfig(t, "idle.toml", "[packer]\nidle-delay = \"0s\"\n"), viper.New())
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"log encoder", func(c *Config) { c.LogEncoder = "xml" }},
		{"idle delay", func(c *Config) { c.Packer.IdleDelay = 0 }},
		{"retry delay", func(c *Config) { c.Packer.RetryDelay = -time.Second }},
		{"batch size", func(c *Config) { c.Batch.MaxBatchSize = 0 }},
		{"pool capacity", func(c *Config) { c.Pool.Capacity = 0 }},
		{"negative stake", func(c *Config) { c.Settlement.StakeWei = big.NewInt(-1) }},
		{"rollup address", func(c *Config) {
			c.Settlement.Endpoint = "http://localhost:8545"
			c.Settlement.RollupAddress = "beef"
		}},
		{"chain id", func(c *Config) {
			c.Settlement.Endpoint = "http://localhost:8545"
			c.Settlement.RollupAddress = "0x000000000000000000000000000000000000beef"
			c.Settlement.ChainID = 0
		}},
		{"pubkey file", func(c *Config) { c.RPC.VerifySignatures = true }},
		{"tx rate", func(c *Config) { c.RPC.TxRate = -1 }},
		{"duplicate genesis", func(c *Config) {
			c.Genesis = []app.GenesisAccount{{Index: 1}, {Index: 1}}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	cfg.LogEncoder = ConsoleLogEncoder
	cfg.LogLevel = "debug"
	logger, err = cfg.NewLogger()
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1))
}
