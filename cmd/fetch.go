package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riverbasin-labs/ejindex-cli/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the EJSCREEN and USALEEP source files",
	Long:  "Downloads the configured source files into the data directory, extracting ZIP archives. Existing downloads are reused.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		f := fetcher.New(fetcher.Options{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
			RatePerSec: cfg.Fetch.RatePerSec,
		})
		log := zap.L().With(zap.String("command", "fetch"))

		if cfg.Fetch.EJScreenURL != "" {
			path, err := f.FetchSource(ctx, cfg.Fetch.EJScreenURL, cfg.Fetch.DestDir)
			if err != nil {
				return err
			}
			log.Info("ejscreen source ready", zap.String("path", path))
			cmd.Println(path)
		}

		if cfg.Fetch.LifeURL != "" {
			path, err := f.FetchSource(ctx, cfg.Fetch.LifeURL, cfg.Fetch.DestDir)
			if err != nil {
				return err
			}
			log.Info("life expectancy source ready", zap.String("path", path))
			cmd.Println(path)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
