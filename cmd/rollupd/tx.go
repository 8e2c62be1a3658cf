package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"rollupd/internal/codec"
	"rollupd/internal/crypto"
	"rollupd/internal/tx"
)

func newTxCmd(fs afero.Fs) *cobra.Command {
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "build transfers for POST /tx",
	}

	var (
		from, to             uint32
		amount, fee, nonce   string
		keyPath, out, format string
	)
	encode := &cobra.Command{
		Use:   "encode",
		Short: "build, sign and write a transfer",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			vals := make([]*big.Int, 3)
			for i, s := range []string{amount, fee, nonce} {
				v, ok := new(big.Int).SetString(s, 10)
				if !ok || v.Sign() < 0 {
					return fmt.Errorf("not a non-negative integer: %q", s)
				}
				vals[i] = v
			}
			signed := tx.Signed{Transfer: tx.New(from, to, vals[0], vals[1], vals[2])}
			if err := signed.Compactable(); err != nil {
				return err
			}
			if keyPath != "" {
				sk, err := crypto.LoadBLSKey(fs, keyPath)
				if err != nil {
					return err
				}
				sig, err := sk.Sign(signed.Message())
				if err != nil {
					return err
				}
				signed.Signature = sig.Bytes()
			}

			var (
				b   []byte
				err error
			)
			switch format {
			case "cbor":
				b, err = codec.Marshal(signed)
			case "json":
				b, err = json.Marshal(signed)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = c.OutOrStdout().Write(b)
				return err
			}
			if err := afero.WriteFile(fs, out, b, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), signed.Hash())
			return err
		},
	}
	flags := encode.Flags()
	flags.Uint32Var(&from, "from", 0, "sender account index")
	flags.Uint32Var(&to, "to", 0, "receiver account index")
	flags.StringVar(&amount, "amount", "10", "amount in base units")
	flags.StringVar(&fee, "fee", "1", "fee in base units")
	flags.StringVar(&nonce, "nonce", "0", "sender nonce")
	flags.StringVar(&keyPath, "key", "", "BLS key file to sign with, unsigned when empty")
	flags.StringVar(&format, "format", "cbor", "cbor or json")
	flags.StringVarP(&out, "out", "o", "tx.cbor", "output file, - for stdout")
	_ = encode.MarkFlagRequired("from")
	_ = encode.MarkFlagRequired("to")

	txCmd.AddCommand(encode)
	return txCmd
}
