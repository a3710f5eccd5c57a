package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"cazy-scraper/lib/htmlutil"
	"cazy-scraper/lib/scrapers/cazy/genome"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type GenomeResult struct {
	Proteins  []genome.ProteinRow
	Species   []genome.SpeciesRecord
	Summaries []Summary
}

type speciesPage struct {
	proteins []genome.ProteinRow
	record   genome.SpeciesRecord
}

// CrawlGenomes walks each category root to its organism group pages
// (class nav1) and from there to every species page (class nav).
// `categories` maps a category to its page relative to the base url.
func (c *Crawler) CrawlGenomes(ctx context.Context, categories map[genome.Category]string) (GenomeResult, error) {
	ctx, span := tracer.Start(ctx, "CrawlGenomes")
	defer span.End()

	if len(categories) == 0 {
		err := configErrorf("every genome category is disabled, enable at least one")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GenomeResult{}, err
	}
	type job struct {
		category genome.Category
		root     string
	}
	var jobs []job
	for category := range categories {
		if _, err := genome.ParseCategory(string(category)); err != nil {
			return GenomeResult{}, configErrorf("%v", err)
		}
	}
	for _, category := range genome.Categories {
		path, ok := categories[category]
		if !ok {
			continue
		}
		root, err := c.resolve(path)
		if err != nil {
			return GenomeResult{}, configErrorf("path of genome category %s: %v", category, err)
		}
		jobs = append(jobs, job{category: category, root: root})
	}

	result := GenomeResult{
		Proteins: []genome.ProteinRow{},
		Species:  []genome.SpeciesRecord{},
	}
	for _, j := range jobs {
		slog.InfoContext(ctx, "crawling genome category", "category", j.category, "url", j.root)

		proteins, species, summary, err := c.crawlCategory(ctx, j.category, j.root)
		result.Summaries = append(result.Summaries, summary)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "genome crawl aborted")
			return result, err
		}
		result.Proteins = append(result.Proteins, proteins...)
		result.Species = append(result.Species, species...)

		slog.InfoContext(
			ctx, "crawled genome category",
			"category", j.category,
			"species", len(species),
			"proteins", len(proteins),
			"skipped", len(summary.Skipped),
		)
	}

	span.SetAttributes(
		attribute.Int("proteins", len(result.Proteins)),
		attribute.Int("species", len(result.Species)),
	)
	return result, nil
}

func (c *Crawler) crawlCategory(ctx context.Context, category genome.Category, root string) ([]genome.ProteinRow, []genome.SpeciesRecord, Summary, error) {
	summary := Summary{Stage: fmt.Sprintf("genomes/%s", category)}

	summary.Visited++
	doc, err := c.fetcher.Fetch(ctx, root)
	if err != nil {
		if c.failFast || ctx.Err() != nil {
			return nil, nil, summary, err
		}
		summary.skip(ctx, root, err)
		return nil, nil, summary, nil
	}
	groups := htmlutil.ExtractLinks(ctx, doc, "nav1")

	links, err := runPool(ctx, c.workers, c.failFast, groups, func(ctx context.Context, group htmlutil.Anchor) ([]htmlutil.Anchor, error) {
		doc, err := c.fetcher.Fetch(ctx, group.Href)
		if err != nil {
			return nil, err
		}
		return htmlutil.ExtractLinks(ctx, doc, "nav"), nil
	})
	summary.Visited += len(groups)
	if err != nil {
		return nil, nil, summary, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, summary, err
	}

	var speciesLinks []htmlutil.Anchor
	for i, l := range links {
		if l.err != nil {
			summary.skip(ctx, groups[i].Href, l.err)
			continue
		}
		speciesLinks = append(speciesLinks, l.value...)
	}

	pages, err := runPool(ctx, c.workers, c.failFast, speciesLinks, func(ctx context.Context, link htmlutil.Anchor) (speciesPage, error) {
		doc, err := c.fetcher.Fetch(ctx, link.Href)
		if err != nil {
			return speciesPage{}, err
		}
		proteins, record, err := genome.ParseSpecies(ctx, doc, category)
		if err != nil {
			return speciesPage{}, err
		}
		return speciesPage{proteins: proteins, record: record}, nil
	})
	summary.Visited += len(speciesLinks)
	if err != nil {
		return nil, nil, summary, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, summary, err
	}

	var proteins []genome.ProteinRow
	var species []genome.SpeciesRecord
	for i, p := range pages {
		if p.err != nil {
			summary.skip(ctx, speciesLinks[i].Href, p.err)
			continue
		}
		proteins = append(proteins, p.value.proteins...)
		species = append(species, p.value.record)
	}
	summary.Records = len(proteins)
	return proteins, species, summary, nil
}
