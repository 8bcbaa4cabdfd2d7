package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
	"github.com/parthchandak02/ibkr-cloud-run/internal/fanout"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// tradewatch tails the orchestrator's watch WebSocket and prints trade
// outcomes and batch summaries as they happen.
func main() {
	addr := flag.String("addr", "localhost:8000", "orchestrator host:port")
	symbol := flag.String("symbol", "", "only show outcomes for this ticker")
	level := flag.String("log", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	telemetry.Init(telemetry.ParseLogLevel(*level))

	bus := events.NewBus()
	bus.Subscribe(events.EventTradeOutcome, printOutcome)
	bus.Subscribe(events.EventBatchComplete, printBatch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	filter := strings.ToUpper(strings.TrimSpace(*symbol))
	client := fanout.NewClient(*addr, filter, bus)
	go client.ConnectWithRetry(ctx)

	label := filter
	if label == "" {
		label = "all"
	}
	telemetry.Plainf("tradewatch: watching %s  symbols=%s", *addr, label)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}

func printOutcome(evt events.Event) error {
	out, ok := evt.Payload.(events.TradeOutcomeEvent)
	if !ok {
		return nil
	}
	telemetry.Plainf("[%s] %s", evt.Timestamp.Local().Format("15:04:05"), out.Message)
	return nil
}

func printBatch(evt events.Event) error {
	bc, ok := evt.Payload.(events.BatchCompleteEvent)
	if !ok {
		return nil
	}
	telemetry.Plainf("[%s] batch %s: %s (%s)", evt.Timestamp.Local().Format("15:04:05"), shortID(bc.BatchID), bc.Overall, bc.Summary)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
