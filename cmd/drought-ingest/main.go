package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-drought-forecast/internal/app"
	"github.com/mr1hm/go-drought-forecast/internal/config"
	"github.com/mr1hm/go-drought-forecast/internal/logging"
)

type CLI struct {
	EnvFile string `name:"env-file" default:".env" help:"Optional .env file loaded before the environment is read."`

	Ingest   IngestCmd   `cmd:"" help:"Run the ingestion pipeline once for a location."`
	Forecast ForecastCmd `cmd:"" help:"Forecast drought for the months after the latest record."`
	Latest   LatestCmd   `cmd:"" help:"Print the most recent weather record."`
}

// runContext is bound into every command's Run method.
type runContext struct {
	ctx    context.Context
	cfg    *config.Config
	app    *app.App
	out    io.Writer
	status io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("drought-ingest"),
		kong.Description("Operator tool for the drought forecast store."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	_ = godotenv.Load(cli.EnvFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// stdout carries command output, so logs go to stderr.
	logging.SetupTo(stderr, cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg, clockwork.NewRealClock(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return kctx.Run(&runContext{
		ctx:    ctx,
		cfg:    cfg,
		app:    a,
		out:    stdout,
		status: stderr,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
