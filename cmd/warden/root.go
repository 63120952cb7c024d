package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Meeting host warden for wiremeet conference rooms",
	Long: `warden follows conference rooms through the room server's webhooks,
elects a meeting host for each room, and tears down rooms that never
get one.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
}
