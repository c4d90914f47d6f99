// Command migrate manages the ledger's postgres schema. create and list
// work on migration files only; every other command needs the database
// configured through the LEDGER_DATABASE_* variables.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/haven/ledger/internal/infrastructure/config"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `usage: migrate [-path dir] [-log-level level] <command> [args]

schema commands:
  up                    apply all pending migrations
  down                  roll back all migrations
  step <n>              apply n migrations; negative n rolls back
  goto <version>        move to version
  version               print the applied version
  force <version>       record version after a failed migration was repaired
  drop -confirm         drop every object, ledger history included

file commands:
  create <name> [desc]  write the next numbered up/down pair
  list                  list migrations (embedded unless -path is set)
`

// schemaCommand runs against a live migrator. minArgs counts the arguments
// after the command name.
type schemaCommand struct {
	minArgs int
	run     func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var schemaCommands = map[string]schemaCommand{
	"up":   {run: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() }},
	"step": {minArgs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("step count %q: %w", args[0], err)
		}
		return m.Steps(n)
	}},
	"goto": {minArgs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("version %q: %w", args[0], err)
		}
		return m.GoTo(uint(v))
	}},
	"force": {minArgs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("version %q: %w", args[0], err)
		}
		return m.Force(v)
	}},
	"drop": {run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return fmt.Errorf("drop needs -confirm")
		}
		return m.Drop()
	}},
	"version": {run: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		st, err := m.State()
		if err != nil {
			return err
		}
		if !st.Applied {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Schema version", zap.Uint("version", st.Version), zap.Bool("dirty", st.Dirty))
		return nil
	}},
}

func main() {
	path := flag.String("path", "", "migrations directory; embedded migrations when empty (create defaults to ./migrations)")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout", Service: "ledger-migrate"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		err = create(*path, rest, log)
	case "list":
		err = list(*path, log)
	default:
		sc, ok := schemaCommands[cmd]
		if !ok {
			flag.Usage()
			os.Exit(2)
		}
		if len(rest) < sc.minArgs {
			log.Fatal("Missing argument", zap.String("command", cmd))
		}
		err = withMigrator(*path, log, func(m *migration.Migrator) error {
			return sc.run(m, rest, log)
		})
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", cmd), zap.Error(err))
	}
}

func create(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("create needs a name")
	}
	if dir == "" {
		dir = "migrations"
	}
	desc := ""
	if len(args) > 1 {
		desc = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], desc)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func list(dir string, log *zap.Logger) error {
	var (
		names []string
		err   error
	)
	if dir != "" {
		names, err = migration.ListMigrations(dir)
	} else {
		names, err = migration.ListEmbedded()
	}
	if err != nil {
		return err
	}
	log.Info("Migrations", zap.Int("count", len(names)))
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func withMigrator(dir string, log *zap.Logger, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("driver %q has no managed schema; sqlite tables are created by the server", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Database.DBName, err)
	}

	var m *migration.Migrator
	if dir != "" {
		m, err = migration.NewFromDir(db, dir, log)
	} else {
		m, err = migration.New(db, log)
	}
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
