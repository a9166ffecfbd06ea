package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"github.com/taxcrm/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// env carries what a command may use; db is nil for offline commands
type env struct {
	log  *zap.Logger
	dir  string
	args []string
	db   *migration.Migrator
}

type command struct {
	usage   string
	summary string
	minArgs int
	offline bool
	run     func(e *env) error
}

var errUsage = errors.New("invalid arguments")

var commands = map[string]command{
	"up":   {usage: "up", summary: "Apply all pending migrations", run: func(e *env) error { return e.db.Up() }},
	"down": {usage: "down -yes", summary: "Roll back every migration", run: runDown},
	"step": {usage: "step <n>", summary: "Apply n migrations (negative rolls back)", minArgs: 1, run: func(e *env) error {
		n, err := strconv.Atoi(e.args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("%w: step count %q", errUsage, e.args[0])
		}
		return e.db.Steps(n)
	}},
	"goto": {usage: "goto <version>", summary: "Migrate up or down to a version", minArgs: 1, run: func(e *env) error {
		v, err := strconv.ParseUint(e.args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, e.args[0])
		}
		return e.db.GoTo(uint(v))
	}},
	"force": {usage: "force <version>", summary: "Set the recorded version without migrating", minArgs: 1, run: func(e *env) error {
		v, err := strconv.Atoi(e.args[0])
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, e.args[0])
		}
		e.log.Warn("Forcing migration version; the schema is not changed", zap.Int("version", v))
		return e.db.Force(v)
	}},
	"version": {usage: "version", summary: "Show the applied version", run: runVersion},
	"status":  {usage: "status", summary: "List migrations with their applied state", run: runStatus},
	"create": {usage: "create <name> [description]", summary: "Write a new up/down migration pair", minArgs: 1, offline: true, run: runCreate},
	"list":   {usage: "list", summary: "List migration files", offline: true, run: runList},
}

var confirmDown bool

func main() {
	var migrationsPath, logLevel string
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&confirmDown, "yes", false, "Confirm destructive commands")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage()
		os.Exit(1)
	}
	if len(rest) < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: migrate %s\n", cmd.usage)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dir, err := resolveMigrationsPath(migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	log.Info("Migration CLI started", zap.String("command", name), zap.String("migrations_path", dir))

	e := &env{log: log, dir: dir, args: rest}
	if !cmd.offline {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal("Failed to load configuration", zap.Error(err))
		}
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			log.Fatal("Failed to open database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatal("Failed to reach database", zap.Error(err))
		}
		m, err := migration.New(db, dir, log)
		if err != nil {
			log.Fatal("Failed to create migrator", zap.Error(err))
		}
		defer m.Close()
		e.db = m
	}

	if err := cmd.run(e); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\nusage: migrate %s\n", err, cmd.usage)
			os.Exit(1)
		}
		log.Fatal("Command failed", zap.String("command", name), zap.Error(err))
	}
}

func runDown(e *env) error {
	if !confirmDown {
		return fmt.Errorf("%w: down drops every table; pass -yes to confirm", errUsage)
	}
	return e.db.Down()
}

func runVersion(e *env) error {
	version, dirty, err := e.db.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		e.log.Info("No migrations applied")
		return nil
	}
	e.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func runStatus(e *env) error {
	version, dirty, err := e.db.Version()
	if err != nil {
		return err
	}
	files, err := migration.ListMigrations(e.dir)
	if err != nil {
		return err
	}
	pending := 0
	for _, name := range files {
		mark := "applied"
		if fileVersion(name) > uint64(version) {
			mark = "pending"
			pending++
		}
		fmt.Printf("  %-8s %s\n", mark, name)
	}
	e.log.Info("Migration status", zap.Uint("version", version), zap.Bool("dirty", dirty), zap.Int("pending", pending))
	return nil
}

func runCreate(e *env) error {
	description := strings.Join(e.args[1:], " ")
	mf, err := migration.CreateMigration(e.dir, e.args[0], description)
	if err != nil {
		return err
	}
	e.log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(e *env) error {
	files, err := migration.ListMigrations(e.dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		e.log.Info("No migrations found")
		return nil
	}
	for _, name := range files {
		fmt.Println("  -", name)
	}
	return nil
}

// resolveMigrationsPath prefers the flag, then ./migrations, then the
// directory two levels above the binary.
func resolveMigrationsPath(flagValue string) (string, error) {
	path := flagValue
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}

// fileVersion parses the numeric prefix of a migration file name
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(filepath.Base(name), "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func printUsage() {
	names := []string{"up", "down", "step", "goto", "version", "status", "force", "create", "list"}
	var b strings.Builder
	b.WriteString("Tax CRM database migrations\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-28s %s\n", c.usage, c.summary)
	}
	b.WriteString(`
Flags:
  -path string        Path to migrations directory (default: ./migrations)
  -log-level string   debug, info, warn or error (default: info)
  -yes                Confirm destructive commands

The database is read from config.toml or TAXCRM_DATABASE_HOST, _PORT, _USER,
_PASSWORD, _DBNAME and _SSLMODE.

Examples:
  migrate up
  migrate step -1
  migrate create add_engagement_letters Engagement letters attached to tax cases
`)
	fmt.Print(b.String())
}
