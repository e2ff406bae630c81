package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recorded pipeline results",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(registry.For("Storage"))
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		tbl := table.NewWriter()
		tbl.SetOutputMirror(os.Stdout)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"When", "Repository", "Stage", "GitHub ITS", "Issues", "Ledger rows", "Error"})
		for _, run := range runs {
			status := run.Stage
			if !run.Success {
				status += " (failed)"
			}
			tbl.AppendRow(table.Row{
				humanize.Time(run.Timestamp),
				run.Repository,
				status,
				run.GitHubITS,
				humanize.Comma(int64(run.IssuesCount)),
				humanize.Comma(int64(run.LedgerRows)),
				runErrors(run),
			})
		}
		tbl.AppendFooter(table.Row{"", "", "", "", "", "Total", len(runs)})
		tbl.Render()
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show (0 = all)")
}
