package core

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// robotsCache fetches robots.txt once per host. Concurrent first requests
// to a host share one fetch. Only an answer from the server is cached, a
// robots.txt that could not be fetched allows the current request and is
// tried again on the next one.
type robotsCache struct {
	http      *resty.Client
	userAgent string
	inflight  singleflight.Group

	mutex  sync.Mutex
	groups map[string]*robotstxt.Group
}

func newRobotsCache(client *resty.Client, userAgent string) *robotsCache {
	return &robotsCache{
		http:      client,
		userAgent: userAgent,
		groups:    map[string]*robotstxt.Group{},
	}
}

func (r *robotsCache) cached(host string) (*robotstxt.Group, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	g, ok := r.groups[host]
	return g, ok
}

func (r *robotsCache) group(ctx context.Context, target *url.URL) *robotstxt.Group {
	host := target.Scheme + "://" + target.Host
	if g, ok := r.cached(host); ok {
		return g
	}

	g, err, _ := r.inflight.Do(host, func() (any, error) {
		if g, ok := r.cached(host); ok {
			return g, nil
		}
		g, err := r.fetch(ctx, host)
		if err != nil {
			return nil, err
		}
		r.mutex.Lock()
		r.groups[host] = g
		r.mutex.Unlock()
		return g, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "fetch robots.txt", "host", host, "err", err)
		return nil
	}
	return g.(*robotstxt.Group)
}

// fetch returns an error only when no response was received. A nil group
// allows everything.
func (r *robotsCache) fetch(ctx context.Context, host string) (*robotstxt.Group, error) {
	robotsUrl := host + "/robots.txt"
	res, err := r.http.R().SetContext(ctx).Get(robotsUrl)
	if err != nil {
		return nil, err
	}
	data, err := robotstxt.FromStatusAndBytes(res.StatusCode(), res.Body())
	if err != nil {
		slog.WarnContext(ctx, "parse robots.txt", "url", robotsUrl, "err", err)
		return nil, nil
	}
	return data.FindGroup(r.userAgent), nil
}

func (r *robotsCache) allowed(ctx context.Context, target *url.URL) bool {
	g := r.group(ctx, target)
	if g == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return g.Test(path)
}
