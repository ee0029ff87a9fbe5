// Command wessleyctl runs diagnoses and loads bulletins from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // overwritten at build time

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	config  string
	natsURL string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:   "wessleyctl",
		Short: "Evidence-grounded vehicle diagnosis",
		Long: `wessleyctl diagnoses vehicle symptoms against the bulletin store and
loads new bulletins into it. It runs the engine in-process, or talks to a
running service over NATS with --nats.`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	def := os.Getenv("WESSLEY_CONFIG")
	if def == "" {
		def = "wessley.yaml"
	}
	root.PersistentFlags().StringVar(&rf.config, "config", def, "Path to YAML config")
	root.PersistentFlags().StringVar(&rf.natsURL, "nats", "", "Use the NATS service at this URL instead of an in-process engine")

	root.AddCommand(
		newDiagnoseCmd(&rf),
		newIngestCmd(&rf),
		newMakesCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wessleyctl version %s\n", version)
		},
	}
}
