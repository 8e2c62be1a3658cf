package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"rollupd/internal/buildinfo"
)

func newRootCmd(fs afero.Fs) *cobra.Command {
	root := &cobra.Command{
		Use:          "rollupd",
		Short:        "rollup operator: packs transfers into batches and settles them on chain",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRunCmd(),
		newKeysCmd(fs),
		newTxCmd(fs),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print build information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(c.OutOrStdout(), buildinfo.String())
			return err
		},
	}
}
