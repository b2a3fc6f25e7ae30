// Command travelctl drives the messaging core from a terminal: schema setup,
// user registration, conversations and live tailing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sudwiptokm/TravelBuddy/internal/app"
	"github.com/sudwiptokm/TravelBuddy/internal/config"
	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

const description = `Reads the same environment as the API server (STORE_DRIVER, DB_URL,
SQLITE_PATH, NATS_URL, REDIS_URL). The memory store does not outlive a single command.`

type contextKey int

const (
	contextKeyApp contextKey = iota
)

func getApp(ctx *cli.Context) *app.App {
	return ctx.Context.Value(contextKeyApp).(*app.App)
}

func prepareApp(ctx *cli.Context) error {
	cfg := config.Load()
	if driver := ctx.String("store"); driver != "" {
		cfg.StoreDriver = driver
	}

	log, err := logger.Build(logger.Options{
		Level:  ctx.String("log-level"),
		Format: logger.FormatConsole,
		Output: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)

	a, err := app.Open(ctx.Context, cfg, identity.Static(ctx.String("as")), log)
	if err != nil {
		return fmt.Errorf("failed to open messaging core: %w", err)
	}
	ctx.Context = context.WithValue(ctx.Context, contextKeyApp, a)
	return nil
}

func requiresUser(ctx *cli.Context) error {
	if ctx.String("as") == "" {
		return fmt.Errorf("no user selected; pass --as USER_ID or set TRAVELBUDDY_USER")
	}
	return prepareApp(ctx)
}

func closeApp(ctx *cli.Context) error {
	if v := ctx.Context.Value(contextKeyApp); v != nil {
		v.(*app.App).Close()
	}
	return nil
}

func newApp() *cli.App {
	cliApp := &cli.App{
		Name:        "travelctl",
		Usage:       "Operate the TravelBuddy messaging core",
		Description: description,
		Version:     "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "as",
				Usage:   "Act as this user id",
				EnvVars: []string{"TRAVELBUDDY_USER"},
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Override STORE_DRIVER (postgres, sqlite, memory)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			migrateCommand,
			registerCommand,
			tokenCommand,
			usersCommand,
			resolveCommand,
			sendCommand,
			historyCommand,
			readCommand,
			inboxCommand,
			watchCommand,
			presenceCommand,
			replayCommand,
		},
	}
	for _, cmd := range cliApp.Commands {
		cmd.After = closeApp
	}
	return cliApp
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
