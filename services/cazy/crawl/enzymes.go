package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"cazy-scraper/lib/scrapers/cazy/family"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type EnzymeResult struct {
	Rows      []family.EnzymeRow
	Summaries []Summary
}

type familyPage struct {
	code string
	url  string
}

// CrawlEnzymes reads the family index of every class and the full protein
// listing of each family on it. `classes` maps a class name (see
// family.Classes) to its index page relative to the base url.
func (c *Crawler) CrawlEnzymes(ctx context.Context, classes map[string]string) (EnzymeResult, error) {
	ctx, span := tracer.Start(ctx, "CrawlEnzymes")
	defer span.End()

	if len(classes) == 0 {
		err := configErrorf("every enzyme class is disabled, enable at least one")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EnzymeResult{}, err
	}
	for class := range classes {
		if _, ok := family.Abbreviations[class]; !ok {
			return EnzymeResult{}, configErrorf("unknown enzyme class %q", class)
		}
	}

	type job struct {
		class string
		index string
	}
	var jobs []job
	for _, class := range family.Classes {
		path, ok := classes[class]
		if !ok {
			continue
		}
		index, err := c.resolve(path)
		if err != nil {
			return EnzymeResult{}, configErrorf("path of enzyme class %s: %v", class, err)
		}
		jobs = append(jobs, job{class: class, index: index})
	}

	result := EnzymeResult{Rows: []family.EnzymeRow{}}
	for _, j := range jobs {
		slog.InfoContext(ctx, "crawling enzyme class", "class", j.class, "url", j.index)

		rows, summary, err := c.crawlClass(ctx, j.class, j.index)
		result.Summaries = append(result.Summaries, summary)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "enzyme crawl aborted")
			return result, err
		}
		result.Rows = append(result.Rows, rows...)

		slog.InfoContext(
			ctx, "crawled enzyme class",
			"class", j.class,
			"pages", summary.Visited,
			"rows", len(rows),
			"skipped", len(summary.Skipped),
		)
	}

	span.SetAttributes(attribute.Int("rows", len(result.Rows)))
	return result, nil
}

func (c *Crawler) crawlClass(ctx context.Context, class, index string) ([]family.EnzymeRow, Summary, error) {
	summary := Summary{Stage: fmt.Sprintf("enzymes/%s", class)}
	abbr := family.Abbreviations[class]

	summary.Visited++
	doc, err := c.fetcher.Fetch(ctx, index)
	if err == nil {
		var entries []family.Entry
		entries, err = family.ParseIndex(ctx, doc)
		if err == nil {
			return c.crawlFamilies(ctx, summary, abbr, entries)
		}
	}
	if c.failFast || ctx.Err() != nil {
		return nil, summary, err
	}
	summary.skip(ctx, index, err)
	return nil, summary, nil
}

func (c *Crawler) crawlFamilies(ctx context.Context, summary Summary, abbr string, entries []family.Entry) ([]family.EnzymeRow, Summary, error) {
	pages := make([]familyPage, 0, len(entries))
	for _, e := range entries {
		code := family.Code(abbr, e.Name)
		link, err := family.ListingURL(c.base.String(), e.Href)
		if err != nil {
			if c.failFast {
				return nil, summary, err
			}
			summary.skip(ctx, e.Href, err)
			continue
		}
		pages = append(pages, familyPage{code: code, url: link})
	}

	tables, err := runPool(ctx, c.workers, c.failFast, pages, func(ctx context.Context, page familyPage) (family.Table, error) {
		slog.DebugContext(ctx, "fetching family", "family", page.code, "url", page.url)
		doc, err := c.fetcher.Fetch(ctx, page.url)
		if err != nil {
			return family.Table{}, err
		}
		return family.ParseFamily(ctx, doc, page.code)
	})
	summary.Visited += len(pages)
	if err != nil {
		return nil, summary, err
	}
	if err := ctx.Err(); err != nil {
		return nil, summary, err
	}

	var rows []family.EnzymeRow
	for i, t := range tables {
		if t.err != nil {
			summary.skip(ctx, pages[i].url, t.err)
			continue
		}
		rows = append(rows, t.value.Rows...)
	}
	summary.Records = len(rows)
	return rows, summary, nil
}
