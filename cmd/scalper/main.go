// cmd/scalper — the options scalping engine CLI.
//
// Usage:
//
//	scalper paper      run paper trading against the live feed
//	scalper live       run live trading (CLIENT_ID/ACCESS_TOKEN required)
//	scalper dryrun     evaluate signals without placing orders
//	scalper orders     list today's recorded orders
//	scalper positions  list open positions for today's session
//	scalper balance    show today's wallet
//	scalper config     print the effective configuration
//
// Flags: -c <config.yml>, -q (quiet), -t <seconds> (auto-stop), --enhanced.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/config"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/app"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/journal"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/logger"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/positions"
	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/session"
	redisstore "github.com/shubhamtaywade82/dhan-scalper-sub004/internal/store/redis"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("scalper", flag.ExitOnError)
	cfgPath := fs.String("c", "", "configuration file (YAML)")
	quiet := fs.Bool("q", false, "quiet: only warnings and errors")
	timeout := fs.Int("t", 0, "auto-stop after N seconds (0 = run until signal)")
	enhanced := fs.Bool("enhanced", false, "verbose output for inspection commands")

	if len(args) == 0 {
		fs.Usage()
		return 2
	}
	cmd := args[0]
	_ = fs.Parse(args[1:])

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	level := cfg.LogLevel
	if *quiet {
		level = "warn"
	}
	logger.Init(cmd, level, cfg.LogFormat)

	switch cmd {
	case "paper":
		return runEngine(cfg, session.ModePaper, *timeout)
	case "live":
		return runEngine(cfg, session.ModeLive, *timeout)
	case "dryrun":
		return runEngine(cfg, session.ModeDryRun, *timeout)
	case "orders":
		return showOrders(cfg, *enhanced)
	case "positions":
		return showPositions(cfg, *enhanced)
	case "balance":
		return showBalance(cfg)
	case "config":
		return showConfig(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
}

func runEngine(cfg *config.Config, mode session.Mode, timeoutSec int) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	engine, err := app.New(ctx, cfg, mode)
	if err != nil {
		slog.Error("startup failed", "err", err)
		return 1
	}
	if err := engine.Run(ctx); err != nil {
		slog.Error("engine stopped with error", "err", err)
		return 1
	}
	return 0
}

// sessionIDs returns today's candidate sessions, paper first.
func sessionIDs() []string {
	now := time.Now()
	return []string{
		session.ID(session.ModePaper, now),
		session.ID(session.ModeLive, now),
	}
}

func showOrders(cfg *config.Config, enhanced bool) int {
	j, err := journal.Open(cfg.SQLitePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer j.Close()

	shown := 0
	for _, sid := range sessionIDs() {
		rows, err := j.Recent(sid, 200)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, r := range rows {
			if enhanced {
				fmt.Printf("%-14s %-20s %-4s %-10s %-12s qty=%-6d avg=%-10s %s\n",
					r.SessionID, r.OrderID, r.Side, r.Symbol, r.SecurityID, r.Qty, r.AvgPrice, r.FilledAt)
			} else {
				fmt.Printf("%-20s %-4s %-10s qty=%-6d avg=%s\n",
					r.OrderID, r.Side, r.Symbol, r.Qty, r.AvgPrice)
			}
			shown++
		}
	}
	if shown == 0 {
		fmt.Println("no orders recorded today")
	}
	return 0
}

func showPositions(cfg *config.Config, enhanced bool) int {
	store, err := redisstore.New(redisstore.Config{URL: cfg.RedisURL})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shown := 0
	for _, sid := range sessionIDs() {
		tr := positions.NewTracker(store, sid)
		if err := tr.Load(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, p := range tr.All() {
			if enhanced {
				fmt.Printf("%-14s %-30s net=%-6d buy_avg=%-10s ltp=%-10s real=%-10s unreal=%s\n",
					sid, p.ID(), p.NetQty, p.BuyAvg.String(), p.CurrentPrice.String(),
					p.RealizedPnL.String(), p.UnrealizedPnL.String())
			} else {
				fmt.Printf("%-30s net=%-6d buy_avg=%s\n", p.ID(), p.NetQty, p.BuyAvg.String())
			}
			shown++
		}
	}
	if shown == 0 {
		fmt.Println("no open positions")
	}
	return 0
}

func showBalance(cfg *config.Config) int {
	store, err := redisstore.New(redisstore.Config{URL: cfg.RedisURL})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shown := 0
	for _, sid := range sessionIDs() {
		h, err := store.HGetAll(ctx, redisstore.Key("balance", sid))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if len(h) == 0 {
			continue
		}
		fmt.Printf("%s\n  available: %s\n  used:      %s\n  realized:  %s\n  total:     %s\n",
			sid, h["available"], h["used"], h["realized_pnl"], h["total"])
		shown++
	}
	if shown == 0 {
		fmt.Println("no session balance recorded today")
	}
	return 0
}

func showConfig(cfg *config.Config) int {
	// Credentials never reach stdout.
	redacted := *cfg
	if redacted.AccessToken != "" {
		redacted.AccessToken = "***"
	}
	if redacted.TelegramBotToken != "" {
		redacted.TelegramBotToken = "***"
	}
	out, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}
