package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"

	"scaledemo/internal/cluster"
	"scaledemo/services/info"
)

func main() {
	level := &slog.LevelVar{}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	slog.SetDefault(slog.New(logHandler))
	defer func() {
		if err := recover(); err != nil {
			slog.Error("Program exited with an unexpected error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := info.LoadConfig(ctx, os.Args[1:], envconfig.OsLookuper())
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		panic(err)
	}
	logLevel, _ := cfg.Level()
	level.Set(logLevel)

	opts := []info.Option{}
	if cfg.NodeCount {
		counter, err := cluster.NewInCluster(cfg.NodeCountTTL, cluster.DefaultListTimeout)
		if err != nil {
			slog.Warn("node count disabled", "error", err)
		} else {
			opts = append(opts, info.WithNodeCounter(counter))
		}
	}

	server, err := info.New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	go func() {
		<-ctx.Done()
		if err := server.Stop(); err != nil {
			slog.Error(err.Error())
		}
	}()
	if err := server.Run(); err != nil {
		panic(err)
	}
}
