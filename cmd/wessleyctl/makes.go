package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-diagnose/pkg/vehiclenlp"
)

func newMakesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "makes",
		Short: "List the vehicle makes recognised in queries",
		Run: func(cmd *cobra.Command, args []string) {
			for _, m := range vehiclenlp.Makes() {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
		},
	}
}
