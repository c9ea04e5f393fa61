package main

import (
	"fmt"
	"os"

	"omicpath/domain/reduction"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "omicpath",
		Short: "Multi-omic pathway association and stability testing",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newMethodsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the per-omic reduction methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, m := range reduction.Methods() {
				fmt.Fprintf(out, "%-9s topology=%t\n", m, m.UsesTopology())
			}
			return nil
		},
	}
}
