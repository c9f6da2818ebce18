package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/voxmap/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "voxmap",
		Short:   "voxmap - turn live speech into a mind map",
		Version: version.String(),
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
