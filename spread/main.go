package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	randomSelector "scaledemo/internal/selectors/random"
	"scaledemo/internal/selectors/roundRobin"
	"scaledemo/services/spread"
)

const (
	StrategyRoundRobin = "round-robin"
	StrategyRandom     = "random"
)

func main() {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     slog.LevelWarn,
		AddSource: true,
	})
	slog.SetDefault(slog.New(logHandler))

	var (
		targets  []string
		requests int
		timeout  time.Duration
		strategy string
	)
	pflag.StringSliceVar(&targets, "url", []string{"http://localhost:5000"}, "base URL of the service, repeatable to spread over several entry points")
	pflag.IntVarP(&requests, "requests", "n", spread.DefaultRequests, "number of requests to send")
	pflag.DurationVar(&timeout, "timeout", 5*time.Second, "per request timeout")
	pflag.StringVar(&strategy, "strategy", StrategyRoundRobin, "how to pick between URLs: round-robin or random")
	pflag.Parse()

	var selector spread.Selector
	switch strategy {
	case StrategyRoundRobin:
		selector = roundRobin.New(targets...)
	case StrategyRandom:
		selector = randomSelector.New(targets...)
	default:
		fmt.Fprintf(os.Stderr, "unknown strategy %q\n", strategy)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	probe := &spread.Probe{
		// a fresh connection per request lets the Service balance each one
		Client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		Selector: selector,
		Requests: requests,
	}
	report, err := probe.Run(ctx)
	report.Print(os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
