// Command scanner runs the continuous scan loop at a gate. It reads
// decoded code payloads line by line from stdin (pipe a QR decoder into
// it, or type codes by hand), submits each to the validation endpoint
// and prints the outcome. While a submission is in flight or cooling
// down, further input lines are discarded, so a code held in front of
// the decoder does not pile up requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/event-ticket-scanner/internal/scanner"
)

func main() {
	_ = godotenv.Load()

	var (
		apiURL   = flag.String("api", envOr("SCANNER_API_URL", "http://localhost:8080"), "base URL of the ticket service")
		token    = flag.String("token", os.Getenv("SCANNER_TOKEN"), "operator access token")
		eventID  = flag.Uint64("event", 0, "event id to validate against")
		cooldown = flag.Duration("cooldown", 2*time.Second, "settle time after each outcome")
		history  = flag.Int("history", 10, "number of recent outcomes to keep")
		timeout  = flag.Duration("timeout", 10*time.Second, "per-request timeout")
	)
	flag.Parse()

	if *token == "" {
		log.Fatal("missing access token: pass -token or set SCANNER_TOKEN")
	}
	if *eventID == 0 {
		log.Fatal("missing event id: pass -event")
	}

	client := scanner.NewClient(*apiURL, *token, *eventID, *timeout)
	src := scanner.NewLineSource(os.Stdin)
	loop := scanner.NewLoop(src, client,
		scanner.WithCooldown(*cooldown),
		scanner.WithHistorySize(*history),
		scanner.WithNotify(printEntry),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "scanning for event %d against %s (Ctrl-C to stop)\n", *eventID, *apiURL)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("scan loop: %v", err)
	}

	// Session recap, most recent first.
	entries := loop.History().Snapshot()
	if len(entries) > 0 {
		fmt.Fprintf(os.Stderr, "\nlast %d outcomes:\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(os.Stderr, "  %s  %-16s %s\n", e.At.Format("15:04:05"), e.Outcome, e.Code)
		}
	}
}

func printEntry(e scanner.Entry) {
	switch e.Outcome {
	case scanner.OutcomeValid:
		fmt.Printf("ACCEPTED  %s\n", e.Code)
	case scanner.OutcomeAlreadyScanned:
		when := ""
		if e.ScannedAt != nil {
			when = " at " + e.ScannedAt.Format(time.RFC3339)
		}
		fmt.Printf("REJECTED  %s (already scanned%s)\n", e.Code, when)
	case scanner.OutcomeInvalid:
		fmt.Printf("REJECTED  %s (not recognized)\n", e.Code)
	default:
		fmt.Printf("ERROR     %s (%s)\n", e.Code, e.Message)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
