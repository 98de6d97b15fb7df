package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/a-h/penaltysearch/search"
	"github.com/alecthomas/kong"
)

type CLI struct {
	Serve   ServeCommand   `cmd:"serve" help:"Start the penalty search web server."`
	Query   QueryCommand   `cmd:"query" help:"Ask a single question and print the answer."`
	Ask     AskCommand     `cmd:"ask" help:"Ask questions of a running penalty search server."`
	Import  ImportCommand  `cmd:"import" help:"Import the case catalog into rqlite."`
	Version VersionCommand `cmd:"version" help:"Print the version of the penalty search server."`
}

func main() {
	var cli CLI
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Vars{
			"default_store_id": search.DefaultStoreID,
			"default_model":    search.DefaultModel,
		})
	if err := kctx.Run(); err != nil {
		log := getLogger("error")
		log.Error("error", slog.Any("error", err))
		os.Exit(1)
	}
}

func getLogger(level string) *slog.Logger {
	ll := slog.LevelInfo
	switch level {
	case "debug":
		ll = slog.LevelDebug
	case "info":
		ll = slog.LevelInfo
	case "warn":
		ll = slog.LevelWarn
	case "error":
		ll = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: ll,
	}))
}
