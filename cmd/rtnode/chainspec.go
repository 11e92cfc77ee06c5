package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/rtcore/example/tester"
)

func newChainSpecCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "chain-spec",
		Short: "Print the dev chain genesis as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := tester.DevGenesis().Marshal()
			if err != nil {
				return err
			}
			if out != "" {
				return os.WriteFile(out, data, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
