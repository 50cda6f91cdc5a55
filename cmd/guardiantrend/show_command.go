package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"guardian-trend/internal/pipeline"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var days int
	var totals bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the most recent days of the stored table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.job(cmd.Context(), false)
			if err != nil {
				return err
			}
			rows, err := job.Table(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "Table %s is empty\n", job.Location())
				return nil
			}

			rows = tailDays(rows, days)
			if totals {
				fmt.Fprintln(out, renderTotals(pipeline.DailyTotals(rows)))
			} else {
				fmt.Fprintln(out, renderRows(rows))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "n", 14, "Number of most recent dates to show (0 = all)")
	cmd.Flags().BoolVar(&totals, "totals", false, "Show daily totals across sections instead of per-section rows")
	return cmd
}

// tailDays は末尾 n 日分（日付の種類数）の行を返す。rows はソート済みが前提。
func tailDays(rows []pipeline.CountRow, n int) []pipeline.CountRow {
	if n <= 0 {
		return rows
	}
	seen := 0
	for i := len(rows) - 1; i >= 0; i-- {
		if i == len(rows)-1 || !rows[i].Date.Equal(rows[i+1].Date) {
			seen++
			if seen > n {
				return rows[i+1:]
			}
		}
	}
	return rows
}

func renderRows(rows []pipeline.CountRow) string {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Date.String(), r.Section, strconv.Itoa(r.Count)}
	}
	return renderTable([]string{"Date", "Section", "Articles"}, data, 2)
}

func renderTotals(totals []pipeline.DailyTotal) string {
	data := make([][]string, len(totals))
	for i, t := range totals {
		data[i] = []string{t.Date.String(), strconv.Itoa(t.Total)}
	}
	return renderTable([]string{"Date", "Articles"}, data, 1)
}
