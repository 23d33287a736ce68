// Package main starts the Mealsmith JSON API server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/infrastructure/container"
)

func main() {
	app := fx.New(
		fx.NopLogger, // zap logs, not fx
		container.APIModule,
		fx.Invoke(printBanner),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	<-ctx.Done()

	fmt.Println("\nShutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Fatalf("Failed to stop application gracefully: %v", err)
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf(`
███╗   ███╗███████╗ █████╗ ██╗     ███████╗███╗   ███╗██╗████████╗██╗  ██╗
████╗ ████║██╔════╝██╔══██╗██║     ██╔════╝████╗ ████║██║╚══██╔══╝██║  ██║
██╔████╔██║█████╗  ███████║██║     ███████╗██╔████╔██║██║   ██║   ███████║
██║╚██╔╝██║██╔══╝  ██╔══██║██║     ╚════██║██║╚██╔╝██║██║   ██║   ██╔══██║
██║ ╚═╝ ██║███████╗██║  ██║███████╗███████║██║ ╚═╝ ██║██║   ██║   ██║  ██║
╚═╝     ╚═╝╚══════╝╚═╝  ╚═╝╚══════╝╚══════╝╚═╝     ╚═╝╚═╝   ╚═╝   ╚═╝  ╚═╝
                v%s - Meal Planning API - %s:%d
`, cfg.App.Version, cfg.APIServer.Host, cfg.APIServer.Port)
}
