package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rahul/foundry/internal/gateway"
)

func newRunCommand() *cobra.Command {
	var solution bool

	cmd := &cobra.Command{
		Use:   "run [challenge...]",
		Short: "Start an interactive session in this terminal",
		Long: `Start an interactive session reading commands from stdin.

With arguments the session opens by running them as a challenge, or as a
solution with --solution. Send /help for the command list.`,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.serveMetrics(ctx)

			term := gateway.NewTerminalGateway(os.Stdin, os.Stdout, cfg.App.Owner)
			d := a.dispatcher(term)
			if len(args) > 0 {
				prefix := "/run "
				if solution {
					prefix = "/solve "
				}
				d.Handle(ctx, gateway.Message{ChatID: gateway.TerminalChat, Owner: cfg.App.Owner, Text: prefix + strings.Join(args, " ")})
			}
			err = term.Start(ctx, d)
			d.Wait()
			return err
		},
	}

	cmd.Flags().BoolVar(&solution, "solution", false, "treat the arguments as a solution to evaluate")

	return cmd
}
