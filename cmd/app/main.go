package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AutoEye/internal/di"
	"AutoEye/internal/usecase"
	"AutoEye/pkg/config"
	"AutoEye/pkg/util"
)

const (
	exitOK = iota
	exitFailure
	exitConfiguration
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	loop := flag.Bool("loop", false, "poll for due timeframes until interrupted")
	fullScan := flag.Bool("full-scan", false, "refetch full history for every timeframe")
	backtest := flag.Bool("backtest", false, "replay a historical window instead of the live cycle")
	startUTC := flag.String("start-utc", "", "backtest window start (ISO-8601)")
	endUTC := flag.String("end-utc", "", "backtest window end (ISO-8601, default now)")
	runID := flag.String("run-id", "", "backtest run id")
	symbols := flag.String("symbols", "", "comma separated symbols overriding the config")
	warmupBars := flag.Int("warmup-bars", 0, "backtest warmup bars (default from config)")
	serve := flag.Bool("serve", false, "serve the read API (also enabled by server.enabled)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		return exitConfiguration
	}
	if list := util.SplitList(*symbols); len(list) > 0 {
		cfg.Engine.Symbols = list
	}
	if *fullScan {
		cfg.Engine.InitialFullScan = true
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Printf("app initialization failed: %v", err)
		return exitFailure
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *backtest:
		params := usecase.BacktestParams{
			Symbols:    cfg.Engine.Symbols,
			RunID:      *runID,
			WarmupBars: cfg.Engine.WarmupBars,
		}
		if *warmupBars > 0 {
			params.WarmupBars = *warmupBars
		}
		if t, ok := util.ParseISO(*startUTC); ok {
			params.Start = t
		} else if *startUTC != "" {
			log.Printf("invalid -start-utc %q", *startUTC)
			return exitConfiguration
		}
		if t, ok := util.ParseISO(*endUTC); ok {
			params.End = t
		} else if *endUTC != "" {
			log.Printf("invalid -end-utc %q", *endUTC)
			return exitConfiguration
		}

		summary, err := app.Backtest(ctx, params)
		if err != nil {
			return fail("backtest", err)
		}
		printJSON(summary)

	case *loop || *serve || cfg.Server.Enabled:
		start := time.Now()
		if err := app.Run(ctx, *loop, *serve || cfg.Server.Enabled); err != nil {
			return fail("run", err)
		}
		log.Printf("stopped after %s", time.Since(start).Round(time.Second))

	default:
		summary, err := app.RunOnce(ctx, *fullScan)
		if err != nil {
			return fail("cycle", err)
		}
		printJSON(summary)
	}
	return exitOK
}

func fail(stage string, err error) int {
	log.Printf("%s failed: %v", stage, err)
	if usecase.IsConfigurationError(err) {
		return exitConfiguration
	}
	return exitFailure
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("encode summary: %v", err)
	}
}
