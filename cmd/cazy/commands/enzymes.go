package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"cazy-scraper/lib/textutil"
	"cazy-scraper/services/cazy/crawl"
	"cazy-scraper/services/cazy/store"

	"github.com/spf13/cobra"
)

var classNames *[]string

func init() {
	classNames = enzymesCmd.Flags().StringSlice("class", nil, "Only download these enzyme classes (repeatable), defaults to every configured class.")
	rootCmd.AddCommand(enzymesCmd)
}

// selectClasses narrows the configured classes to `names`, matching them
// loosely.
func selectClasses(configured map[string]string, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return configured, nil
	}

	candidates := make([]string, 0, len(configured))
	for name := range configured {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	selected := map[string]string{}
	for _, name := range names {
		match, ok := textutil.Match(name, candidates)
		if ok {
			selected[match] = configured[match]
			continue
		}
		msg := fmt.Sprintf("enzyme class %q is not configured", name)
		if suggestion := textutil.Suggest(name, candidates); suggestion != "" {
			msg += fmt.Sprintf(", did you mean %q?", suggestion)
		}
		return nil, &crawl.ConfigError{Msg: msg}
	}
	return selected, nil
}

var enzymesCmd = &cobra.Command{
	Use:   "enzymes [--class <name> ...]",
	Short: "Scrapes every enzyme family listing into the enzymes table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := runContext(cmd)
		defer cancel()

		cfg, err := LoadConfig(*configPath)
		if err != nil {
			return err
		}
		classes, err := selectClasses(cfg.Enzymes, *classNames)
		if err != nil {
			return err
		}
		if len(classes) == 0 {
			return &crawl.ConfigError{Msg: "no enzyme classes are configured"}
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
		err = out.CheckWritable(ctx, store.EnzymesTable)
		if err != nil {
			return err
		}

		result, err := crawler.CrawlEnzymes(ctx, classes)
		printSummaries("Enzymes", result.Summaries)
		if err != nil {
			return fmt.Errorf("enzyme crawl: %w", err)
		}

		slog.InfoContext(ctx, "writing enzymes", "rows", len(result.Rows))
		return out.WriteEnzymes(ctx, result.Rows)
	},
}
