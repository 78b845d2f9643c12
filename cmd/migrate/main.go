// Command migrate manages the universal table schema.
//
// Migrations are read from the set compiled into the binary unless -path
// names a directory on disk.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/infrastructure/config"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/infrastructure/migration"
	"github.com/hera/backend/migrations"
)

// invocation is one parsed command line
type invocation struct {
	args []string
	dir  string
	log  *zap.Logger
	m    *migration.Migrator
}

type command struct {
	usage    string
	help     string
	database bool
	run      func(inv *invocation) error
}

var commandOrder = []string{"up", "down", "step", "goto", "version", "force", "drop", "create", "list"}

var commands = map[string]command{
	"up": {
		usage: "up", help: "Apply all pending migrations", database: true,
		run: func(inv *invocation) error { return inv.m.Up() },
	},
	"down": {
		usage: "down", help: "Roll back all migrations", database: true,
		run: func(inv *invocation) error { return inv.m.Down() },
	},
	"step": {
		usage: "step <n>", help: "Apply n migrations, negative n rolls back", database: true,
		run: func(inv *invocation) error {
			n, err := inv.intArg(0, "step count")
			if err != nil {
				return err
			}
			return inv.m.Steps(n)
		},
	},
	"goto": {
		usage: "goto <version>", help: "Migrate up or down to version", database: true,
		run: func(inv *invocation) error {
			v, err := inv.intArg(0, "version")
			if err != nil {
				return err
			}
			if v < 0 {
				return fmt.Errorf("version must not be negative, got %d", v)
			}
			return inv.m.GoTo(uint(v))
		},
	},
	"version": {
		usage: "version", help: "Show the applied version", database: true,
		run: func(inv *invocation) error {
			version, dirty, err := inv.m.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				inv.log.Info("No migrations applied")
				return nil
			}
			inv.log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
			return nil
		},
	},
	"force": {
		usage: "force <version>", help: "Mark version as applied without running it", database: true,
		run: func(inv *invocation) error {
			v, err := inv.intArg(0, "version")
			if err != nil {
				return err
			}
			inv.log.Warn("Forcing schema version", zap.Int("version", v))
			return inv.m.Force(v)
		},
	},
	"drop": {
		usage: "drop --confirm", help: "Drop every object in the database", database: true,
		run: func(inv *invocation) error {
			if len(inv.args) == 0 || (inv.args[0] != "--confirm" && inv.args[0] != "-confirm") {
				return errors.New("drop needs --confirm")
			}
			return inv.m.Drop()
		},
	},
	"create": {
		usage: "create <name> [desc]", help: "Write a new up/down pair under -path (default ./migrations)",
		run: func(inv *invocation) error {
			if len(inv.args) == 0 {
				return errors.New("missing migration name")
			}
			desc := ""
			if len(inv.args) > 1 {
				desc = inv.args[1]
			}
			dir := inv.dir
			if dir == "" {
				dir = "migrations"
			}
			mf, err := migration.CreateMigration(dir, inv.args[0], desc)
			if err != nil {
				return err
			}
			inv.log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up", mf.UpPath),
				zap.String("down", mf.DownPath))
			return nil
		},
	},
	"list": {
		usage: "list", help: "List available migrations",
		run: func(inv *invocation) error {
			var names []string
			var err error
			if inv.dir == "" {
				names, err = migration.ListMigrationsFS(migrations.FS)
			} else {
				names, err = migration.ListMigrations(inv.dir)
			}
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	},
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	inv := &invocation{args: args[1:], log: log}
	if *dir != "" {
		if inv.dir, err = filepath.Abs(*dir); err != nil {
			log.Fatal("Invalid migrations path", zap.Error(err))
		}
	}

	if cmd.database {
		closeAll, err := inv.open()
		if err != nil {
			log.Fatal("Failed to open migrator", zap.Error(err))
		}
		defer closeAll()
	}
	if err := cmd.run(inv); err != nil {
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

// open connects with the HERA_DATABASE_* settings and builds the migrator
func (inv *invocation) open() (func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if inv.dir == "" {
		inv.m, err = migration.NewFromFS(db, migrations.FS, inv.log)
	} else {
		inv.m, err = migration.New(db, inv.dir, inv.log)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	inv.log.Debug("Migrator ready", zap.String("source", inv.source()))
	return func() {
		_ = inv.m.Close()
		_ = db.Close()
	}, nil
}

func (inv *invocation) source() string {
	if inv.dir == "" {
		return "embedded"
	}
	return inv.dir
}

func (inv *invocation) intArg(i int, name string) (int, error) {
	if len(inv.args) <= i {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.Atoi(inv.args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, inv.args[i])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-path dir] [-log-level level] <command> [arguments]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-22s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "The database is taken from HERA_DATABASE_* or config.toml.")
}
