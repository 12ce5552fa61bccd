package db

import (
	"context"
	"log/slog"
)

// Seeder writes reference data. Implementations must be idempotent.
type Seeder interface {
	Seed(ctx context.Context) error
}

func Seed(ctx context.Context, seeders ...Seeder) error {
	for _, seeder := range seeders {
		if seeder == nil {
			continue
		}
		if err := seeder.Seed(ctx); err != nil {
			return err
		}
	}
	slog.Info("reference data seeded", "seeders", len(seeders))
	return nil
}
