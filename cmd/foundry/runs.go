package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		owner string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved runs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if owner == "" {
				owner = cfg.App.Owner
			}
			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			runs, err := rs.ListRuns(context.Background(), owner, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(os.Stdout, "No saved runs for %s.\n", owner)
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Title", "Phase", "Updated"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.ID, r.Title, r.Phase, humanize.Time(r.UpdatedAt)})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner to list (default app.owner)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")

	return cmd
}
