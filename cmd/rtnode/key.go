package main

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/rtcore/keystore"
	"github.com/blockberries/rtcore/types"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Session key utilities",
	}
	cmd.AddCommand(newKeyGenerateCmd())
	return cmd
}

func newKeyGenerateCmd() *cobra.Command {
	var phrase string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a mnemonic and print its session keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if phrase == "" {
				var err error
				if phrase, err = keystore.NewMnemonic(); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mnemonic: %s\n", phrase)
			for _, kt := range []types.KeyTypeID{types.KeyTypeBabe, types.KeyTypeGrandpa} {
				var id types.AccountID
				copy(id[:], keystore.Derive(kt, []byte(phrase)).Public().(ed25519.PublicKey))
				fmt.Fprintf(out, "%s: %s (%s)\n", kt, id, id.Hex())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&phrase, "mnemonic", "", "derive from this phrase instead of a fresh one")
	return cmd
}
