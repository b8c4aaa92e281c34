package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"uniquery/internal/config"
	"uniquery/internal/gen"
	"uniquery/internal/introspect"
	"uniquery/internal/logging"
	"uniquery/internal/naming"
	"uniquery/internal/schema"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("uniquery error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	pflag.Bool("version", false, "Print version and exit")
	pflag.Bool("introspect", false, "Introspect the database and write the registry artifact")
	pflag.String("generate", "", "Generate typed models from the registry artifact into the given file")
	pflag.String("generate-package", "models", "Package name for generated models")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("uniquery %s (%s)\n", Version, Commit)
		return nil
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger.Logger)

	namer := naming.New(cfg.Naming, logger.Logger)

	if doIntrospect, _ := pflag.CommandLine.GetBool("introspect"); doIntrospect {
		return introspectCommand(context.Background(), cfg, namer, logger)
	}
	if target, _ := pflag.CommandLine.GetString("generate"); target != "" {
		pkg, _ := pflag.CommandLine.GetString("generate-package")
		return generateCommand(cfg, namer, target, pkg, logger)
	}

	pflag.Usage()
	return fmt.Errorf("no command given: use --introspect or --generate")
}

// introspectCommand discovers the database schema and writes the registry
// artifact consumed at runtime.
func introspectCommand(ctx context.Context, cfg *config.Config, namer *naming.Namer, logger *logging.Logger) error {
	driver, dsn := cfg.Database.Driver, cfg.Database.DSN
	if dsn == "" {
		return fmt.Errorf("database.dsn is required for introspection")
	}

	db, err := sql.Open(driverName(driver), dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var tables []schema.Table
	switch driver {
	case "mysql", "tidb":
		tables, err = introspect.MySQL(ctx, db, cfg.Database.Database)
	case "postgres", "postgresql":
		schemaName := cfg.Database.Database
		if schemaName == "" {
			schemaName = "public"
		}
		tables, err = introspect.Postgres(ctx, db, schemaName)
	case "sqlite", "sqlite3":
		tables, err = introspect.SQLite(ctx, db)
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("introspection failed: %w", err)
	}

	// Run full registry validation before persisting, so a broken artifact is
	// never written.
	registry, err := schema.NewRegistry(tables, namer)
	if err != nil {
		return fmt.Errorf("discovered schema is not mappable: %w", err)
	}
	if err := schema.SaveFile(registry, cfg.Registry); err != nil {
		return fmt.Errorf("failed to write registry artifact: %w", err)
	}

	logger.Info("registry artifact written",
		slog.String("path", cfg.Registry),
		slog.Int("tables", len(registry.Tables())),
	)
	return nil
}

// generateCommand emits typed model sources from the registry artifact.
func generateCommand(cfg *config.Config, namer *naming.Namer, target, pkg string, logger *logging.Logger) error {
	registry, err := schema.LoadFile(cfg.Registry, namer)
	if err != nil {
		return fmt.Errorf("failed to load registry artifact: %w", err)
	}

	g := gen.NewGenerator(registry, namer, pkg)
	if err := g.WriteFile(target); err != nil {
		return fmt.Errorf("failed to write models: %w", err)
	}

	logger.Info("models written",
		slog.String("path", target),
		slog.String("package", pkg),
	)
	return nil
}

// driverName maps a configured dialect to its database/sql driver name.
func driverName(driver string) string {
	switch driver {
	case "tidb":
		return "mysql"
	case "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return driver
	}
}
