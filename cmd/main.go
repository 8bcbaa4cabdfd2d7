package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/ibkr_auth"
	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/inbound/trade_api"
	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/calendar"
	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/discord"
	"github.com/parthchandak02/ibkr-cloud-run/internal/adapters/outbound/ibkr_http"
	"github.com/parthchandak02/ibkr-cloud-run/internal/config"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/intent"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/journal"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/recorder"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/symbols"
	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
	"github.com/parthchandak02/ibkr-cloud-run/internal/fanout"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting trade orchestrator")

	bus := events.NewBus()

	// ── IBKR auth + client ──────────────────────────────────────
	signer, err := ibkr_auth.NewSignerFromFile(cfg.IBKRConsumerKey, cfg.IBKRAccessToken, cfg.IBKRRealm, cfg.IBKRSignatureKeyPath)
	if err != nil {
		telemetry.Errorf("IBKR auth: %v", err)
		os.Exit(1)
	}

	ibkrClient := ibkr_http.NewClient(cfg.IBKRBaseURL, signer)
	session := ibkr_http.NewSession(ibkrClient, cfg.IBKRAccountID)

	if cfg.DryRun {
		telemetry.Infof("Dry-run mode: orders are simulated, nothing is submitted")
	} else {
		if !ibkrClient.Configured() {
			telemetry.Errorf("Live trading requires IBKR credentials: set IBKR_CONSUMER_KEY and IBKR_SIGNATURE_KEY_FILE in .env")
			os.Exit(1)
		}
		telemetry.Infof("LIVE trading mode  api=%s", cfg.IBKRBaseURL)
	}
	if ibkrClient.Configured() {
		session.StartKeepalive(cfg.KeepaliveInterval)
	}

	// ── Symbol resolution ───────────────────────────────────────
	overrides := symbols.LoadVenueOverrides(cfg.VenueOverridesPath)
	resolver := symbols.NewResolver(ibkrClient, overrides)

	// ── Trade pipeline ──────────────────────────────────────────
	executor := trade.NewExecutor(resolver, session, ibkrClient, cfg.DryRun)
	notifier := discord.NewNotifier(cfg.DiscordWebhookURL)
	calendarClient := calendar.NewClient(cfg.CalendarBaseURL, cfg.CalendarToken)
	rec := recorder.New(calendarClient)

	journalStore, err := journal.OpenStore(cfg.JournalDBPath)
	if err != nil {
		telemetry.Errorf("Journal: %v", err)
		os.Exit(1)
	}

	orch := trade.NewOrchestrator(intent.NewParser(), executor, notifier, rec, journalStore, bus, cfg.DefaultQuantity)

	// ── Watch fanout + HTTP API ─────────────────────────────────
	fan := fanout.NewServer(bus)
	handler := trade_api.NewHandler(orch, session, journalStore, fan.HandleWS, calendarClient.Enabled(), notifier.Enabled())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Live batches hold the response while orders confirm.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Errorf("HTTP server: %v", err)
			os.Exit(1)
		}
	}()
	telemetry.Infof("API listening on %q", addr)

	// ── Shutdown ────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down...")
	session.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	journalStore.Close()

	telemetry.Infof("Shutdown complete  trades=%d  batches=%d  submitted=%d  simulated=%d  errors=%d",
		telemetry.Metrics.TradesRequested.Value(),
		telemetry.Metrics.BatchesRequested.Value(),
		telemetry.Metrics.OrdersSubmitted.Value(),
		telemetry.Metrics.TradesSimulated.Value(),
		telemetry.Metrics.OrderErrors.Value(),
	)
}
