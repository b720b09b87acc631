package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "talos",
		Short:         "Talos is a minimal IndieAuth authorization server",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(commandServe())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
