package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"cazy-scraper/lib/taxonomy"
	"cazy-scraper/services/cazy/store"

	"github.com/spf13/cobra"
)

var lineagesTaxonomyDb *string

func init() {
	lineagesTaxonomyDb = lineagesCmd.Flags().String("taxonomy-db", "", "The taxonomy database built by `cazy taxdump`, overrides taxonomy_db.")
	rootCmd.AddCommand(lineagesCmd)
}

var lineagesCmd = &cobra.Command{
	Use:   "lineages [--taxonomy-db <path>]",
	Short: "Resolves the taxids of the taxids table into the lineages table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return err
		}
		taxonomyDb := cfg.TaxonomyDb
		if *lineagesTaxonomyDb != "" {
			taxonomyDb = *lineagesTaxonomyDb
		}

		taxa, err := taxonomy.OpenStore(ctx, taxonomyDb)
		if err != nil {
			return fmt.Errorf("open taxonomy: %w", err)
		}
		defer taxa.Close()

		empty, err := taxa.Empty(ctx)
		if err != nil {
			return err
		}
		if empty {
			return fmt.Errorf("taxonomy database %s is empty, run `cazy taxdump` first", taxonomyDb)
		}

		out, db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		err = out.CheckWritable(ctx, store.LineagesTable)
		if err != nil {
			return err
		}

		taxids, err := out.ReadTaxids(ctx)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "resolving lineages", "taxids", len(taxids))

		rows, err := taxonomy.ResolveLineages(ctx, taxa, taxids)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			var unresolved interface{ Unwrap() []error }
			count := 1
			if errors.As(err, &unresolved) {
				count = len(unresolved.Unwrap())
			}
			slog.WarnContext(ctx, "some taxids could not be resolved", "count", count, "err", err)
		}

		return out.WriteLineages(ctx, rows)
	},
}
