package main

import (
	"github.com/spf13/cobra"

	"github.com/staryears/sleepplus/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "sleepplus",
		Short:         "Skip the night once enough players are asleep",
		Long:          "sleepplus runs a game server whose worlds skip to morning when a share of the players sleep, or when one player has slept long enough.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "path of the YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(&cfgPath),
		newConfigCmd(&cfgPath),
		newStatusCmd(),
		newBotsCmd(),
	)

	return rootCmd
}
