package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

type CLI struct {
	Serve   ServeCommand   `cmd:"serve" help:"Start the MasterMechanic server."`
	Chat    ChatCommand    `cmd:"chat" help:"Chat with the MasterMechanic server."`
	Context ContextCommand `cmd:"context" help:"Get the knowledge context for a piece of text."`
	Query   QueryCommand   `cmd:"query" help:"Ask a single question."`
	Import  ImportCommand  `cmd:"import" help:"Import knowledge records into the vector index."`
	Dedupe  DedupeCommand  `cmd:"dedupe" help:"Find and remove duplicate vectors from the index."`
	Version VersionCommand `cmd:"version" help:"Print the version of the MasterMechanic server."`
}

func main() {
	// A missing .env file is fine, the environment may already be set.
	_ = godotenv.Load()

	var cli CLI
	ctx := context.Background()
	kctx := kong.Parse(&cli, kong.UsageOnError(), kong.BindTo(ctx, (*context.Context)(nil)))
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
