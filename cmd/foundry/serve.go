package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahul/foundry/internal/gateway"
	"github.com/rahul/foundry/internal/observability"
	"github.com/rahul/foundry/pkg/config"
)

var errNoGateway = errors.New("no chat gateway is enabled with a token")

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the configured chat gateways",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func openGateways(cfg *config.Config) ([]gateway.Messenger, error) {
	var out []gateway.Messenger
	if gw, ok := cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(gw.Token)
		if err != nil {
			return nil, err
		}
		out = append(out, tg)
	}
	if gw, ok := cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(gw.Token)
		if err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	if len(out) == 0 {
		return nil, errNoGateway
	}
	return out, nil
}

func serve(cfg *config.Config) error {
	gateways, err := openGateways(cfg)
	if err != nil {
		return err
	}

	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	a, err := newApp(cfg, log.Writer())
	if err != nil {
		observability.CleanupTerminal()
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.serveMetrics(ctx)

	// Live dashboard, 1-second updates.
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				a.logger.LogHeartbeat()
			}
		}
	}()

	dispatchers := make([]*gateway.Dispatcher, 0, len(gateways))
	for _, gw := range gateways {
		d := a.dispatcher(gw)
		dispatchers = append(dispatchers, d)
		go func(gw gateway.Messenger) {
			if err := gw.Start(ctx, d); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}(gw)
	}

	<-ctx.Done()

	for _, gw := range gateways {
		if err := gw.Stop(); err != nil {
			log.Printf("[gateway] stop: %v", err)
		}
	}
	for _, d := range dispatchers {
		d.Wait()
	}

	observability.CleanupTerminal()
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
	return nil
}
