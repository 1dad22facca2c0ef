package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rahul/foundry/internal/export"
	"github.com/rahul/foundry/internal/pipeline"
)

func newExportCommand() *cobra.Command {
	var formats string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a saved run to the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("format") {
				formats = strings.Join(cfg.Export.Formats, ",")
			}
			fs, err := export.ParseFormats(formats)
			if err != nil {
				return err
			}

			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx := context.Background()
			run, err := rs.LoadRun(ctx, args[0])
			if err != nil {
				return err
			}
			var st pipeline.State
			if err := json.Unmarshal(run.State, &st); err != nil {
				return fmt.Errorf("decode run %s: %w", run.ID, err)
			}

			ex, err := newExporter(cfg)
			if err != nil {
				return err
			}
			paths, err := ex.Export(ctx, &st, fs...)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(os.Stdout, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formats, "format", "f", "html", "comma separated formats: html, pdf, yaml, txt")

	return cmd
}
