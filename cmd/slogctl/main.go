// Command slogctl is an operator companion for the slograph server: it
// drives schema migrations and runs a few read-only diagnostic reports
// against a running deployment without going through the HTTP API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/lib/pq"

	"slograph/migrations"
	"slograph/pkg/config"
	"slograph/pkg/database"
	"slograph/pkg/logger"
)

var (
	RED    = "\033[0;31m"
	GREEN  = "\033[0;32m"
	YELLOW = "\033[1;33m"
	CYAN   = "\033[0;36m"
	BOLD   = "\033[1m"
	NC     = "\033[0m"
)

func init() {
	if runtime.GOOS == "windows" {
		if os.Getenv("WT_SESSION") == "" && os.Getenv("TERM_PROGRAM") != "vscode" {
			RED, GREEN, YELLOW, CYAN, BOLD, NC = "", "", "", "", "", ""
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(args)
	case "report":
		err = runReport(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "%sunknown command: %s%s\n\n", RED, cmd, NC)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%serror: %v%s\n", RED, err, NC)
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf(`%sslogctl%s - operator tool for the slograph dependency-graph server

Usage:
  slogctl migrate up|down|status [-config path]
  slogctl report stale-edges|open-cycles [-config path]

`, BOLD, NC)
}

// runMigrate drives database.Migrator against the server's own pgx pool,
// the same path cmd/sloserver takes at startup when auto-migrate is on.
func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: slogctl migrate up|down|status")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Pool(), migrations.PostgresMigrations, "postgres")

	switch fs.Arg(0) {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			return err
		}
		fmt.Printf("%smigrations applied%s\n", GREEN, NC)
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		fmt.Printf("%slast migration rolled back%s\n", YELLOW, NC)
	case "status":
		if err := migrator.Status(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migrate subcommand: %s", fs.Arg(0))
	}
	return nil
}

// runReport opens a plain database/sql connection over the lib/pq driver
// for quick ad-hoc reads. It deliberately bypasses the pgx pool the server
// uses at runtime: these are one-shot operator queries, not traffic the
// connection-pool tuning in pkg/database/postgres.go needs to account for.
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: slogctl report stale-edges|open-cycles")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	switch fs.Arg(0) {
	case "stale-edges":
		return reportStaleEdges(ctx, sqlDB)
	case "open-cycles":
		return reportOpenCycles(ctx, sqlDB)
	default:
		return fmt.Errorf("unknown report: %s", fs.Arg(0))
	}
}

func reportStaleEdges(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT source_service_id, target_service_id, discovery_source, last_observed_at
		FROM service_dependencies
		WHERE is_stale = true
		ORDER BY last_observed_at ASC
	`)
	if err != nil {
		return fmt.Errorf("query stale edges: %w", err)
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "%sSOURCE\tTARGET\tDISCOVERY\tLAST OBSERVED%s\n", BOLD, NC)
	count := 0
	for rows.Next() {
		var source, target, discovery string
		var lastObserved time.Time
		if err := rows.Scan(&source, &target, &discovery, &lastObserved); err != nil {
			return fmt.Errorf("scan stale edge: %w", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", source, target, discovery, lastObserved.Format(time.RFC3339))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Flush()
	fmt.Printf("\n%d stale edge(s)\n", count)
	return nil
}

func reportOpenCycles(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT canonical_key, path, detected_at
		FROM circular_dependency_alerts
		WHERE status = 'open'
		ORDER BY detected_at DESC
	`)
	if err != nil {
		return fmt.Errorf("query open cycles: %w", err)
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "%sCYCLE\tDETECTED%s\n", BOLD, NC)
	count := 0
	for rows.Next() {
		var canonicalKey string
		var path pq.StringArray
		var detectedAt time.Time
		if err := rows.Scan(&canonicalKey, &path, &detectedAt); err != nil {
			return fmt.Errorf("scan cycle alert: %w", err)
		}
		fmt.Fprintf(w, "%s%s%s\t%s\n", CYAN, canonicalKey, NC, detectedAt.Format(time.RFC3339))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Flush()
	fmt.Printf("\n%d open cycle(s)\n", count)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		os.Setenv("CONFIG_PATH", path)
	}
	return config.Load()
}
