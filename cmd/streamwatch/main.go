// streamwatch connects to a running stockfeed and prints the price stream.
// Usage: go run ./cmd/streamwatch --url ws://localhost:3000/ws --symbols AAPL,TSLA
//
// In broadcast mode leave --symbols empty: the server closes connections that
// send anything.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/stockfeed/internal/connection"
	"github.com/rickgao/stockfeed/internal/model"
	"github.com/rickgao/stockfeed/internal/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "stream URL")
	symbols := flag.String("symbols", "", "comma-separated symbols to subscribe to (interactive mode)")
	ping := flag.Duration("ping", 0, "send an application ping at this interval (0 disables)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := connection.DefaultClientConfig()
	cfg.URL = *url

	client := connection.NewClient(cfg, logger)
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("connected", "url", *url)

	if list := splitSymbols(*symbols); len(list) > 0 {
		if err := client.Subscribe(list...); err != nil {
			logger.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
	}

	var pingC <-chan time.Time
	if *ping > 0 {
		ticker := time.NewTicker(*ping)
		defer ticker.Stop()
		pingC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingC:
			if err := client.Ping(); err != nil {
				logger.Warn("ping failed", "error", err)
			}

		case err := <-client.Errors():
			logger.Error("stream error", "error", err)
			os.Exit(1)

		case msg := <-client.Messages():
			if *verbose {
				fmt.Printf("%s %s\n", msg.ReceivedAt.Format(time.RFC3339Nano), msg.Data)
				continue
			}
			printMessage(msg)
		}
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

type envelope struct {
	Event     string                         `json:"event"`
	Symbol    string                         `json:"symbol"`
	Symbols   []string                       `json:"symbols"`
	Code      string                         `json:"code"`
	Message   string                         `json:"message"`
	Timestamp int64                          `json:"timestamp"`
	Data      *model.StockSnapshot           `json:"data"`
	Stocks    map[string]model.StockSnapshot `json:"stocks"`
}

func printMessage(msg connection.TimestampedMessage) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		fmt.Printf("unparseable message: %s\n", msg.Data)
		return
	}

	ts := msg.ReceivedAt.Format("15:04:05.000")

	switch env.Event {
	case protocol.EventUpdate:
		if env.Data != nil {
			fmt.Printf("%s UPDATE %-8s %s %s\n", ts, env.Symbol, env.Data.Price, env.Data.Currency)
		}
	case protocol.EventSubscribed, protocol.EventUnsubscribed:
		fmt.Printf("%s %s %v\n", ts, strings.ToUpper(env.Event), env.Symbols)
	case protocol.EventPong:
		lag := msg.ReceivedAt.Sub(time.UnixMilli(env.Timestamp))
		fmt.Printf("%s PONG server_time=%d lag=%s\n", ts, env.Timestamp, lag)
	case protocol.EventError:
		fmt.Printf("%s ERROR %s: %s\n", ts, env.Code, env.Message)
	case "":
		if env.Stocks != nil {
			syms := make([]string, 0, len(env.Stocks))
			for sym := range env.Stocks {
				syms = append(syms, sym)
			}
			sort.Strings(syms)
			fmt.Printf("%s SNAPSHOT %d stocks\n", ts, len(syms))
			for _, sym := range syms {
				s := env.Stocks[sym]
				fmt.Printf("    %-8s %s %s\n", sym, s.Price, s.Currency)
			}
			return
		}
		fmt.Printf("%s %s\n", ts, msg.Data)
	default:
		fmt.Printf("%s %s\n", ts, msg.Data)
	}
}
