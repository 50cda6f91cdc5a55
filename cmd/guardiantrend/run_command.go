// =============================================================================
// run_command.go - ジョブ実行・再描画・送信コマンド
// =============================================================================
package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"guardian-trend/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noEmail bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch new articles, update the table, render the chart and email it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, ctx, noEmail)
		},
	}
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "Update the table and chart without sending email")
	return cmd
}

// runJob はジョブを1回実行して結果を表示する
func runJob(cmd *cobra.Command, ctx *commandContext, noEmail bool) error {
	cfg, err := ctx.config()
	if err != nil {
		return err
	}
	// --no-email の場合はメール設定を検証しない（読み込んだ設定自体は変更しない）
	runCfg := *cfg
	if noEmail {
		runCfg.Email.Enabled = false
	}
	if err := runCfg.ValidateRun(); err != nil {
		return err
	}
	withEmail := runCfg.Email.Enabled

	job, err := ctx.job(cmd.Context(), withEmail)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, "Starting the job...")
	report, runErr := job.Run(cmd.Context(), pipeline.RunOptions{SkipEmail: !withEmail})
	printRunReport(out, report)
	return runErr
}

func printRunReport(out io.Writer, report pipeline.RunReport) {
	upd := report.Update
	fmt.Fprintln(out, "---------------------------------")
	fmt.Fprintf(out, "window:    %s\n", upd.Window)
	fmt.Fprintf(out, "fetched:   %d articles\n", upd.Fetched)
	if !upd.Updated {
		fmt.Fprintln(out, "result:    no update")
		fmt.Fprintln(out, "---------------------------------")
		return
	}
	fmt.Fprintf(out, "result:    %d new rows, %d rows total\n", len(upd.NewRows), len(upd.Table))
	if report.ChartPath != "" {
		fmt.Fprintf(out, "chart:     %s\n", report.ChartPath)
	}
	if report.Published > 0 {
		fmt.Fprintf(out, "notion:    %d pages\n", report.Published)
	}
	for _, d := range report.Deliveries {
		status := "sent"
		if d.Err != nil {
			status = "FAILED: " + d.Err.Error()
		}
		fmt.Fprintf(out, "email:     %s %s\n", d.Recipient, status)
	}
	fmt.Fprintln(out, "---------------------------------")
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Re-render the trend chart from the stored table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.job(cmd.Context(), false)
			if err != nil {
				return err
			}
			path, err := job.Render(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", path)
			return nil
		},
	}
}

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Email the existing chart to the configured recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if !cfg.Email.Enabled {
				return errors.New("email is disabled (email.enabled = false)")
			}
			if err := cfg.ValidateEmail(); err != nil {
				return err
			}
			job, err := ctx.job(cmd.Context(), true)
			if err != nil {
				return err
			}
			results, err := job.Notify(cmd.Context())
			for _, r := range results {
				status := "sent"
				if r.Err != nil {
					status = "FAILED: " + r.Err.Error()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.Recipient, status)
			}
			return err
		},
	}
}
