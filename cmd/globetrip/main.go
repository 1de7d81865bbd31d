package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	globecli "github.com/yubzen/globetrip/internal/cli"
	"github.com/yubzen/globetrip/internal/config"
)

func main() {
	opts := &globecli.Options{}
	chatCmd := globecli.NewChatCmd(opts)

	rootCmd := &cobra.Command{
		Use:           "globetrip",
		Short:         "Plan group trips with a team of LLM agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return chatCmd.RunE(cmd, nil)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.GetConfigPath(), "Path to config.toml")
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Override the session database path")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadFile(opts.ConfigPath)
			if err != nil {
				return err
			}
			if err := cfg.Save(opts.ConfigPath); err != nil {
				return err
			}
			fmt.Println("Wrote", opts.ConfigPath)
			return nil
		},
	}

	rootCmd.AddCommand(
		configCmd,
		chatCmd,
		globecli.NewPlanCmd(opts),
		globecli.NewSessionCmd(opts),
		globecli.NewCostsCmd(opts),
		globecli.NewAirportsCmd(opts),
		globecli.NewCalendarCmd(opts),
		globecli.NewAuthCmd(opts),
		globecli.NewModelsCmd(opts),
		globecli.NewStatsCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
