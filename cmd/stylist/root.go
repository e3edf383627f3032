package main

import (
	"fmt"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/ali-stylist-agent/pkg/config"
	logx "github.com/tanpawarit/ali-stylist-agent/pkg/logger"
)

type rootOptions struct {
	envFile  string
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "stylist",
		Short: "Multi-agent fashion stylist",
		Long: `stylist routes each message through an orchestrator that either answers
directly or delegates to a styling specialist (occasion, item, color,
temperature) and composes the final reply.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env", "", "env file to load (default ./.env when present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	flags.BoolVar(&opts.pretty, "pretty", false, "human-readable console logs")

	cmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newMemoryCmd(),
	)
	return cmd
}

func (o *rootOptions) init() error {
	configx.SetEnvFile(o.envFile)

	logCfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return fmt.Errorf("load log config: %w", err)
	}
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	if o.pretty {
		logCfg.PrettyFormat = true
	}
	logx.Init(*logCfg)
	return nil
}
