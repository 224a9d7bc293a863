package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/clubmanager/internal/actions"
	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/config"
	"github.com/angelmondragon/clubmanager/pkg/db"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/metrics"
	"github.com/angelmondragon/clubmanager/pkg/migrate"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	logg := logger.New(logger.Options{ServiceName: "clubmanager", Format: logger.FormatConsole})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	actor := flag.String("actor", audit.DefaultActor, "operator recorded in the audit log")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return 1
	}

	logg = logger.New(logger.Options{
		ServiceName: "clubmanager",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":   cfg.App.Env,
		"store": cfg.DB.Path,
	})

	exists, err := db.StoreExists(cfg.DB.Path)
	if err != nil {
		logg.Error(ctx, "failed to inspect store", err)
		return exitCode(err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to open store", err)
		return exitCode(err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing store", err)
		}
	}()

	if err := migrate.Initialize(ctx, cfg, logg, dbClient, !exists); err != nil {
		logg.Error(ctx, "failed to initialize schema", err)
		return exitCode(err)
	}

	registry := prometheus.NewRegistry()
	dispatcher, err := actions.Build(actions.BuildParams{
		Client:  dbClient,
		Billing: cfg.Billing,
		Logger:  logg,
		Metrics: metrics.NewActionMetrics(registry),
	})
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		return exitCode(err)
	}

	cli := &commandLine{dispatcher: dispatcher, out: os.Stdout, actor: *actor, currency: cfg.Billing.Currency}
	runErr := cli.run(ctx, flag.Args())

	if err := metrics.WriteTextfile(registry, cfg.Metrics.File); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "failed to write metrics file")
	}

	switch {
	case runErr == nil:
		return 0
	case pkgerrors.IsInformational(runErr):
		fmt.Fprintln(os.Stdout, "info:", pkgerrors.As(runErr).Message())
		return 0
	default:
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", pkgerrors.MetadataFor(pkgerrors.CodeOf(runErr)).PublicMessage, runErr)
		if details := pkgerrors.As(runErr); details != nil && details.Details() != nil {
			fmt.Fprintf(os.Stderr, "details: %v\n", details.Details())
		}
		return exitCode(runErr)
	}
}

func exitCode(err error) int {
	if pkgerrors.As(err) == nil {
		return 1
	}
	return pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).ExitCode
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: clubmanager [-actor name] <command> <subcommand> [flags]

commands:
  members  search|add|status|show
  methods  add|list
  periods  add|list|charge|close
  rules    add|list
  tx       post|list|void
  balances recompute|check|list
  reports | settings | filters | undo | redo
`)
}
