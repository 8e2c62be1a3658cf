package main

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"rollupd/internal/crypto"
)

func newKeysCmd(fs afero.Fs) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "manage operator and transfer signing keys",
	}

	var (
		algo  string
		force bool
	)
	gen := &cobra.Command{
		Use:   "gen <path>",
		Short: "generate a key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := args[0]
			if ok, err := afero.Exists(fs, path); err != nil {
				return err
			} else if ok && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			var kf crypto.KeyFile
			switch algo {
			case crypto.AlgoBN254:
				sk, err := crypto.GenerateBLSKey()
				if err != nil {
					return err
				}
				kf = crypto.BLSKeyFile(sk)
			case crypto.AlgoSecp256k1:
				key, err := ethcrypto.GenerateKey()
				if err != nil {
					return err
				}
				kf = crypto.OperatorKeyFile(key)
			default:
				return fmt.Errorf("unknown algo %q", algo)
			}
			if err := crypto.WriteKeyFile(fs, path, kf); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.OutOrStdout(), "%s %s\n", kf.Algo, kf.Pub)
			return err
		},
	}
	gen.Flags().StringVar(&algo, "algo", crypto.AlgoBN254,
		fmt.Sprintf("%s for transfer signing, %s for the settlement account", crypto.AlgoBN254, crypto.AlgoSecp256k1))
	gen.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:   "show <path>",
		Short: "print the public part of a key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			kf, err := crypto.ReadKeyFile(fs, args[0])
			if err != nil {
				return err
			}
			if kf.Pub == "" {
				return errors.New("key file has no public part")
			}
			_, err = fmt.Fprintf(c.OutOrStdout(), "%s %s\n", kf.Algo, kf.Pub)
			return err
		},
	}

	keys.AddCommand(gen, show)
	return keys
}
