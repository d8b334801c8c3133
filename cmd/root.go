/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/config"
	"github.com/bayanihan-data/povassess/internal/logger"
)

const serviceName = "povassess"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "povassess",
	Short: "Household poverty assessment API",
	Long: `povassess records household assessments, scores their poverty risk,
tracks referrals to assistance programs and reports risk by barangay.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
}
