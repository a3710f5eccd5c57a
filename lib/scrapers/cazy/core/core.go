package core

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"cazy-scraper/lib/restyutil"
	"cazy-scraper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/html/charset"
)

var tracer = otel.Tracer("scrapers/cazy/core")
var meter = otel.Meter("scrapers/cazy/core")
var pagesFetched, _ = meter.Int64Counter(
	"cazy.pages.fetched",
	metric.WithDescription("pages requested from the CAZy site, by outcome"),
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Fetcher turns a url into a parsed document.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (*goquery.Document, error)
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	robots  *robotsCache
}

type ClientOptions struct {
	BaseUrl   string
	UserAgent string
	// per request, 0 disables the timeout
	Timeout          time.Duration
	CloudflareBypass bool
	RespectRobots    bool
	// when set, request/response pairs are dumped here at debug level
	DumpOutput restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", opts.BaseUrl)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(opts.Timeout)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	telemetry.InstrumentResty(client, "scrapers/cazy/http")
	restyutil.InstrumentClient(client, opts.DumpOutput)

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	if opts.RespectRobots {
		c.robots = newRobotsCache(client, userAgent)
	}
	return c, nil
}

// Resolve turns a link found on a CAZy page into an absolute url.
func (c *Client) Resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return c.BaseUrl.ResolveReference(ref).String(), nil
}

// Fetch issues a single GET and parses the body as html. It never retries
// and never caches, any failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, link string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()

	span.SetAttributes(attribute.String("url", link))

	doc, err := c.fetch(ctx, link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		pagesFetched.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return nil, err
	}
	pagesFetched.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, link string) (*goquery.Document, error) {
	target, err := url.Parse(link)
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}
	if c.robots != nil && !c.robots.allowed(ctx, target) {
		return nil, &FetchError{URL: link, Err: ErrDisallowed}
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return nil, &FetchError{URL: link, Status: res.StatusCode()}
	}

	body, err := charset.NewReader(bytes.NewReader(res.Body()), res.Header().Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: link, Status: res.StatusCode(), Err: fmt.Errorf("decode body: %w", err)}
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &FetchError{URL: link, Status: res.StatusCode(), Err: fmt.Errorf("parse html: %w", err)}
	}

	doc.Url = target
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		doc.Url = res.RawResponse.Request.URL
	}
	return doc, nil
}
