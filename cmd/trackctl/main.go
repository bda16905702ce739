// main.go - Admin control tool for trackly
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackly/internal"
	"trackly/internal/analytics"
	"trackly/internal/events"
	"trackly/internal/seeder"
	"trackly/internal/timeframe"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&ReportCommand{},
	&ExportCommand{},
	&CheckpointCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	if _, ok := cmd.(*HelpCommand); ok {
		_ = cmd.Execute(ctx, nil, args)
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	err = cmd.Execute(ctx, app, args)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer shutdownCancel()
	if cerr := app.Shutdown(shutdownCtx); cerr != nil {
		log.Printf("Warning: Cleanup error: %v", cerr)
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with synthetic sessions
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample sessions" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("events", 10000, "number of events to generate")
	days := fs.Int("days", 30, "spread events over this many past days")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	s := seeder.NewSeeder(app.DBManager.GetConnection(), app.Logger, *count, *days, time.Now(), *seed)
	created, err := s.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("Seeded %d events", created)
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := app.DBManager.Ping(ctx); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	db := app.DBManager.GetConnection()

	var count int64
	if err := db.WithContext(ctx).Model(&events.Event{}).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Path: %s", app.Config.DatabaseName)
	log.Printf("- Events: %d", count)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// ReportCommand prints visit statistics as JSON
type ReportCommand struct{}

func (c *ReportCommand) Name() string        { return "report" }
func (c *ReportCommand) Description() string { return "Prints visit statistics for the last N days" }

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	days := fs.Int("days", app.Config.DefaultWindowDays, "window size in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := app.Services.Engine.VisitStats(ctx, analytics.NewQueryParams(timeframe.LastDays(*days)))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// ExportCommand writes raw events as CSV, the same rows as GET /api/tracking/export.csv
type ExportCommand struct{}

func (c *ExportCommand) Name() string        { return "export" }
func (c *ExportCommand) Description() string { return "Exports events of the last N days as CSV" }

func (c *ExportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	days := fs.Int("days", app.Config.DefaultWindowDays, "window size in days")
	kind := fs.String("type", string(events.KindAll), "all, page_views or custom_events")
	out := fs.String("out", "-", "output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k, ok := events.ParseEventKind(*kind)
	if !ok {
		return fmt.Errorf("unknown event type %q", *kind)
	}
	reader := app.Services.Reader
	tf, err := timeframe.LastDays(*days).Resolve(reader.Now())
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *out, err)
		}
		defer f.Close()
		w = f
	}

	rows, err := events.ExportCSV(ctx, reader, events.Filter{From: tf.From, To: tf.To, Kind: k}, w)
	if err != nil {
		return fmt.Errorf("export stopped after %d rows: %w", rows, err)
	}
	log.Printf("Exported %d events", rows)
	return nil
}

// CheckpointCommand folds the WAL into the database file
type CheckpointCommand struct{}

func (c *CheckpointCommand) Name() string        { return "checkpoint" }
func (c *CheckpointCommand) Description() string { return "Checkpoints and truncates the SQLite WAL" }

func (c *CheckpointCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	return app.DBManager.CheckpointWAL("TRUNCATE")
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: trackctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
