package commands

import (
	"context"
	"fmt"

	"cazy-scraper/lib/dbutil"
	"cazy-scraper/services/cazy/store"
)

func openStore(ctx context.Context, cfg Config) (*store.Store, *dbutil.DB, error) {
	mode, err := store.ParseMode(*tableMode)
	if err != nil {
		return nil, nil, err
	}
	db, err := dbutil.Open(ctx, *outputDest)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return store.New(db, store.Options{
		Mode:              mode,
		LegacyTaxidSchema: cfg.LegacyTaxidSchema,
	}), db, nil
}
