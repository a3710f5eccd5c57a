package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"cazy-scraper/lib/scrapers/cazy/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("services/cazy/crawl")
var meter = otel.Meter("services/cazy/crawl")
var leavesSkipped, _ = meter.Int64Counter(
	"cazy.leaves.skipped",
	metric.WithDescription("pages skipped after a fetch or parse failure"),
)

const (
	DefaultWorkers = 16
	MaxWorkers     = 64
)

// ConfigError is an invalid crawl setup, it is always reported before any
// page is requested.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Msg
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

type Options struct {
	Fetcher core.Fetcher
	BaseURL string
	// concurrent leaf requests, 0 means DefaultWorkers
	Workers int
	// abort on the first failing page instead of skipping it
	FailFast bool
}

type Crawler struct {
	fetcher  core.Fetcher
	base     *url.URL
	workers  int
	failFast bool
}

func New(opts Options) (*Crawler, error) {
	if opts.Fetcher == nil {
		return nil, configErrorf("no fetcher given")
	}
	if opts.BaseURL == "" {
		return nil, configErrorf("base_url is empty")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, configErrorf("base_url %q is not an absolute url", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	workers := opts.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	if workers < 1 || workers > MaxWorkers {
		return nil, configErrorf("workers must be between 1 and %d, got %d", MaxWorkers, opts.Workers)
	}

	return &Crawler{
		fetcher:  opts.Fetcher,
		base:     base,
		workers:  workers,
		failFast: opts.FailFast,
	}, nil
}

// resolve turns a path relative to the base url into an absolute url.
func (c *Crawler) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

// Skip is a page that was left out of the results.
type Skip struct {
	URL    string
	Reason string
}

// Summary describes the crawl of one genome category or enzyme class.
type Summary struct {
	Stage   string
	Visited int
	Records int
	Skipped []Skip
}

func (s *Summary) skip(ctx context.Context, link string, err error) {
	s.Skipped = append(s.Skipped, Skip{URL: link, Reason: err.Error()})
	leavesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", s.Stage)))
	slog.WarnContext(ctx, "skipped page", "stage", s.Stage, "url", link, "err", err)
}

// Totals sums summaries into one, its Skipped lists every skip in order.
func Totals(stage string, summaries []Summary) Summary {
	total := Summary{Stage: stage}
	for _, s := range summaries {
		total.Visited += s.Visited
		total.Records += s.Records
		total.Skipped = append(total.Skipped, s.Skipped...)
	}
	return total
}
