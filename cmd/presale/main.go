package main

import (
	"context"

	_ "github.com/joho/godotenv/autoload"
	"github.com/presale-labs/presale-store/cmd"
	"github.com/presale-labs/presale-store/internal/logger"
	"github.com/presale-labs/presale-store/internal/shutdown"
)

func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{})

	ctx, cancel := shutdown.WithShutdownSignal(context.Background(), l)
	defer cancel()

	cmd.Execute(ctx)
}
