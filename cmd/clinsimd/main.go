package main

import (
	"fmt"
	"os"

	"github.com/clinsim-ai/clinsim/internal/cli"
	"github.com/clinsim-ai/clinsim/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinsimd",
		Short: "Clinsim daemon",
		Long:  "Clinsim daemon for running the adaptive clinical simulator API server",
	}

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	cli.CheckHelpJSON(rootCmd)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
