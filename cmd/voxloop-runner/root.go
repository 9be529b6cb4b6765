package main

import (
	"github.com/spf13/cobra"
)

var (
	configName  string
	configPaths []string
)

var rootCmd = &cobra.Command{
	Use:   "voxloop-runner",
	Short: "voxloop-runner drives outbound voice-bot campaigns",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config-name", "voxloop", "config file name (without extension), searched via viper")
	rootCmd.PersistentFlags().StringSliceVar(&configPaths, "config-path", []string{".", "/etc/voxloop"}, "directories searched for the config file")

	rootCmd.AddCommand(serveCmd)
}
