package commands

import (
	"fmt"
	"time"

	"cazy-scraper/lib/taxonomy"
	"cazy-scraper/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	taxdumpSource     *string
	taxdumpTaxonomyDb *string
)

func init() {
	taxdumpSource = taxdumpCmd.Flags().String("source", taxonomy.DefaultSource, "Path or url of an NCBI taxdump.tar.gz.")
	taxdumpTaxonomyDb = taxdumpCmd.Flags().String("taxonomy-db", "", "The taxonomy database to build, overrides taxonomy_db.")
	rootCmd.AddCommand(taxdumpCmd)
}

var taxdumpCmd = &cobra.Command{
	Use:   "taxdump [--source <path|url>] [--taxonomy-db <path>]",
	Short: "Builds (or refreshes) the local NCBI taxonomy database used by `cazy lineages`.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		taxonomyDb := *taxdumpTaxonomyDb
		if taxonomyDb == "" {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			taxonomyDb = cfg.TaxonomyDb
		}

		taxa, err := taxonomy.OpenStore(ctx, taxonomyDb)
		if err != nil {
			return fmt.Errorf("open taxonomy: %w", err)
		}
		defer taxa.Close()

		client := resty.New()
		telemetry.InstrumentResty(client, "lib/taxonomy/http")

		start := time.Now()
		stats, err := taxa.Load(ctx, client, *taxdumpSource)
		if err != nil {
			return fmt.Errorf("load taxdump: %w", err)
		}

		t := newTable()
		t.SetTitle("Taxonomy")
		t.AppendHeader(table.Row{"Table", "Records"})
		t.AppendRows([]table.Row{
			{"nodes", stats.Nodes},
			{"names", stats.Names},
			{"merged", stats.Merged},
		})
		t.AppendFooter(table.Row{"took", time.Since(start).Round(time.Second).String()})
		t.Render()
		return nil
	},
}
