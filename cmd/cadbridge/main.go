package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cadbridge/cadbridge/cmd/cadbridge/commands"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	// LOG_LEVEL wins over the config file; see commands.applyLogLevel.
	zerolog.SetGlobalLevel(telemetry.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, Version, Commit, BuildDate)
	stop()
	if err != nil {
		if !commands.IsSilent(err) {
			log.Error().Err(err).Msg("cadbridge failed")
		}
		os.Exit(1)
	}
}
