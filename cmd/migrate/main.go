package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/crm/docrender/internal/infrastructure/config"
	"github.com/crm/docrender/internal/infrastructure/logger"
	"github.com/crm/docrender/internal/infrastructure/migration"
	"github.com/crm/docrender/migrations"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "migrate",
		Usage: "apply the print job schema migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "migrations directory; the embedded migrations are used when empty",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file; config.toml is searched for when empty",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withMigrator(func(_ *cli.Context, m *migration.Migrator) error {
					return m.Up()
				}),
			},
			{
				Name:  "down",
				Usage: "roll back all migrations",
				Action: withMigrator(func(_ *cli.Context, m *migration.Migrator) error {
					return m.Down()
				}),
			},
			{
				Name:      "steps",
				Usage:     "apply N migrations, negative N rolls back",
				ArgsUsage: "N (use -- -N to roll back)",
				Action: withMigrator(func(c *cli.Context, m *migration.Migrator) error {
					n, err := intArg(c)
					if err != nil {
						return err
					}
					return m.Steps(n)
				}),
			},
			{
				Name:  "version",
				Usage: "print the current migration version",
				Action: withMigrator(func(c *cli.Context, m *migration.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(c.App.Writer, "version %d dirty=%t\n", version, dirty)
					return err
				}),
			},
			{
				Name:      "force",
				Usage:     "set the version without running migrations, to clear a dirty state",
				ArgsUsage: "VERSION",
				Action: withMigrator(func(c *cli.Context, m *migration.Migrator) error {
					v, err := intArg(c)
					if err != nil {
						return err
					}
					return m.Force(v)
				}),
			},
			{
				Name:  "list",
				Usage: "list the available migrations",
				Action: func(c *cli.Context) error {
					names, err := listMigrations(c.String("path"))
					if err != nil {
						return err
					}
					for _, name := range names {
						if _, err := fmt.Fprintln(c.App.Writer, name); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

// withMigrator opens the database, runs fn and closes everything again.
func withMigrator(fn func(*cli.Context, *migration.Migrator) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		log, err := logger.New(&logger.Config{
			Level:      c.String("log-level"),
			Format:     "console",
			Output:     "stdout",
			TimeFormat: "2006-01-02 15:04:05",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync(log)

		cfg, err := config.LoadFile(c.String("config"))
		if err != nil {
			return err
		}
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("migrations target postgres, database.driver is %q", cfg.Database.Driver)
		}

		path := c.String("path")
		if path != "" {
			if path, err = filepath.Abs(path); err != nil {
				return fmt.Errorf("failed to resolve migrations path: %w", err)
			}
		}
		log.Info("Migration CLI started",
			zap.String("command", c.Command.Name),
			zap.String("migrations_path", path),
			zap.String("database", cfg.Database.DBName))

		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		m, err := migration.New(db, path, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("Failed to close migrator", zap.Error(err))
			}
		}()
		return fn(c, m)
	}
}

func listMigrations(path string) ([]string, error) {
	var fsys fs.FS = migrations.FS
	if path != "" {
		fsys = os.DirFS(path)
	}
	return migration.List(fsys)
}

func intArg(c *cli.Context) (int, error) {
	if c.NArg() != 1 {
		return 0, cli.Exit(fmt.Sprintf("usage: migrate %s %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", c.Args().First(), err)
	}
	return n, nil
}
