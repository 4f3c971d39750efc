package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "studyspace",
		Short:         "Study documents alongside an AI assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(
		serveCmd(&cfgPath),
		studyCmd(&cfgPath),
		recentCmd(&cfgPath),
		tokenCmd(&cfgPath),
		scanCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
