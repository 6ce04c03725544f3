package main

import (
	"context"
	"log/slog"

	"github.com/skosovsky/shipdesk/gateway"
	"github.com/skosovsky/shipdesk/gateway/postgres"
	"github.com/skosovsky/shipdesk/gateway/sqlite"
	"github.com/skosovsky/shipdesk/internal/config"
)

type store interface {
	gateway.Gateway
	Migrate(ctx context.Context) error
	Seed(ctx context.Context, f gateway.Fixtures) error
}

// openStore opens the database named by cfg.DBURL. The returned func closes it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.Postgres() {
		s, err := postgres.Open(ctx, cfg.DBURL, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	s, err := sqlite.Open(ctx, cfg.DBURL, sqlite.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
