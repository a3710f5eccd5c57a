package commands

import (
	"fmt"
	"log/slog"

	"cazy-scraper/lib/scrapers/cazy/genome"
	"cazy-scraper/services/cazy/crawl"
	"cazy-scraper/services/cazy/store"

	"github.com/spf13/cobra"
)

var excludedCategories = map[genome.Category]*bool{}

func init() {
	for _, category := range genome.Categories {
		excludedCategories[category] = genomesCmd.Flags().Bool(
			"no-"+string(category), false,
			fmt.Sprintf("Do not download %s genomes.", category),
		)
	}
	rootCmd.AddCommand(genomesCmd)
}

var genomesCmd = &cobra.Command{
	Use:   "genomes [--no-archaea] [--no-bacteria] [--no-eukaryotes] [--no-viruses]",
	Short: "Scrapes the proteins of every genome into the genomes and taxids tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return err
		}

		categories := map[genome.Category]string{}
		for name, path := range cfg.Genomes {
			category, err := genome.ParseCategory(name)
			if err != nil {
				return &crawl.ConfigError{Msg: err.Error()}
			}
			if *excludedCategories[category] {
				continue
			}
			categories[category] = path
		}
		if len(categories) == 0 {
			return &crawl.ConfigError{Msg: "all genome categories were excluded from downloading, at least one must be enabled"}
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		crawler, err := crawl.New(crawl.Options{
			Fetcher:  client,
			BaseURL:  cfg.BaseUrl,
			Workers:  cfg.crawlWorkers(),
			FailFast: *failFast,
		})
		if err != nil {
			return err
		}

		out, db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		err = out.CheckWritable(ctx, store.GenomesTable, store.TaxidsTable)
		if err != nil {
			return err
		}

		result, err := crawler.CrawlGenomes(ctx, categories)
		printSummaries("Genomes", result.Summaries)
		if err != nil {
			return fmt.Errorf("genome crawl: %w", err)
		}

		slog.InfoContext(ctx, "writing genomes", "proteins", len(result.Proteins), "species", len(result.Species))
		err = out.WriteGenomes(ctx, result.Proteins)
		if err != nil {
			return err
		}
		return out.WriteTaxids(ctx, result.Species)
	},
}
