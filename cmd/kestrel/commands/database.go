package commands

import (
	"database/sql"
	"time"

	"github.com/kestreldb/kestrel/config"
	"github.com/kestreldb/kestrel/db"
	"github.com/kestreldb/kestrel/errors"
	"github.com/kestreldb/kestrel/graph"
	"github.com/kestreldb/kestrel/kql"
	"github.com/kestreldb/kestrel/kql/schema"
	"github.com/kestreldb/kestrel/logger"
)

// loadConfig loads the process configuration once.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return cfg, nil
}

// openDatabase opens the configured database, applying migrations. An
// explicit path overrides the configured one.
func openDatabase(path string) (*sql.DB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		path = cfg.Database.Path
	}

	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open database %s", path)
	}
	return database, cfg, nil
}

// buildEngine assembles a query engine over the configured database.
func buildEngine(database *sql.DB, cfg *config.Config) (*kql.Engine, error) {
	registry := schema.NewRegistry(
		schema.WithLogger(logger.Logger),
		schema.WithCache(schema.NewCache(
			time.Duration(cfg.Schema.CacheTTLSeconds)*time.Second,
			cfg.Schema.CacheMaxEntries,
		)),
	)
	if cfg.Schema.File != "" {
		if err := registry.LoadFile(cfg.Schema.File); err != nil {
			return nil, errors.Wrap(err, "load schema file")
		}
	}

	store := graph.NewSQLStore(database, logger.Logger)
	return kql.NewEngine(store, registry, engineOptions(cfg), logger.Logger), nil
}

func engineOptions(cfg *config.Config) kql.Options {
	return kql.Options{
		Operators:      cfg.KQL.Operators,
		Strict:         cfg.KQL.Strict,
		StringOrdering: cfg.KQL.StringOrdering,
		DefaultLimit:   cfg.KQL.DefaultLimit,
		MaxLimit:       cfg.KQL.MaxLimit,
		Timeout:        time.Duration(cfg.KQL.TimeoutSeconds) * time.Second,
	}
}
