package main

import (
	"context"

	"github.com/spf13/cobra"

	"guardian-trend/internal/pipeline"
)

// commandContext はサブコマンド間で共有する設定の読み込み状態
type commandContext struct {
	configPath *string
	cfg        *pipeline.Config
	loadedFrom string
}

// config は設定を一度だけ読み込んで返す
func (c *commandContext) config() (*pipeline.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, err := pipeline.LoadConfig(*c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.loadedFrom = path
	return cfg, nil
}

// job は設定からJobを組み立てる
func (c *commandContext) job(ctx context.Context, withEmail bool) (*pipeline.Job, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return pipeline.NewJobFromConfig(ctx, cfg, withEmail)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configPath: &configFlag}

	var noEmail bool
	rootCmd := &cobra.Command{
		Use:           "guardiantrend",
		Short:         "Daily Guardian article trend job",
		Long:          "guardiantrend fetches Guardian articles for a fixed query, keeps a daily per-section count table, renders a trend chart and emails it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, ctx, noEmail)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ./"+pipeline.DefaultConfigFile+" if present)")
	rootCmd.Flags().BoolVar(&noEmail, "no-email", false, "Update the table and chart without sending email")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
