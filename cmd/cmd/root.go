package cmd

import (
	"os"

	"github.com/fat32tools/fatdefrag/internal/env"
	"github.com/fat32tools/fatdefrag/internal/logger"
	"github.com/spf13/cobra"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   env.AppName,
		Short: env.AppName + " - FAT32 defragmentation toolkit",
	}

	rootCmd.PersistentFlags().String("log-level", "INFO", "minimum log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(DefineCheckCommand())
	rootCmd.AddCommand(DefineDefragmentCommand())
	rootCmd.AddCommand(DefineFragmentCommand())

	return rootCmd.Execute()
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(os.Stdout, logger.ParseLevel(level))
}
