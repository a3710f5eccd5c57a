package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cazy-scraper/lib/htmlutil"
	"cazy-scraper/lib/testutil"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseUrl string, robots bool) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:       baseUrl,
		Timeout:       time.Second * 5,
		RespectRobots: robots,
	})
	require.NoError(t, err)
	return client
}

func TestFetch(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	server := testutil.ServeSite(t, map[string]string{
		"/a.html": "<html><body><span class=\"titre_cazome\">Caf\xe9 bacterium</span></body></html>",
	}, "text/html; charset=iso-8859-1")
	client := newTestClient(t, server.URL, false)

	doc, err := client.Fetch(res.Ctx, server.URL+"/a.html")
	require.NoError(t, err)
	require.Equal(t, "Café bacterium", htmlutil.NodeText(doc.Find(".titre_cazome")))
	require.Equal(t, "/a.html", doc.Url.Path)

	_, err = client.Fetch(res.Ctx, server.URL+"/missing.html")
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, http.StatusNotFound, fetchErr.Status)
	require.Equal(t, server.URL+"/missing.html", fetchErr.URL)
}

func TestFetchUnreachable(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	server := httptest.NewServer(http.NotFoundHandler())
	link := server.URL + "/a.html"
	server.Close()

	client := newTestClient(t, "http://www.cazy.org", false)
	_, err := client.Fetch(res.Ctx, link)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Zero(t, fetchErr.Status)
	require.Error(t, fetchErr.Err)
}

func TestFetchFollowsRedirects(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	mux := http.NewServeMux()
	mux.Handle("/old.html", http.RedirectHandler("/new.html", http.StatusMovedPermanently))
	mux.HandleFunc("/new.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p id="moved">moved</p></body></html>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, false)
	doc, err := client.Fetch(res.Ctx, server.URL+"/old.html")
	require.NoError(t, err)
	require.Equal(t, "moved", htmlutil.NodeText(doc.Find("#moved")))
	require.Equal(t, "/new.html", doc.Url.Path)
}

func TestFetchRespectsRobots(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	var robotsHits, privateHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private.html", func(w http.ResponseWriter, r *http.Request) {
		privateHits.Add(1)
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/public.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, true)

	_, err := client.Fetch(res.Ctx, server.URL+"/private.html")
	require.ErrorIs(t, err, ErrDisallowed)
	require.Zero(t, privateHits.Load())

	_, err = client.Fetch(res.Ctx, server.URL+"/public.html")
	require.NoError(t, err)
	require.Equal(t, int64(1), robotsHits.Load())

	// without robots.txt handling the same page is fetched
	ignoring := newTestClient(t, server.URL, false)
	_, err = ignoring.Fetch(res.Ctx, server.URL+"/private.html")
	require.NoError(t, err)
	require.Equal(t, int64(1), privateHits.Load())
}

func TestMissingRobotsAllowsEverything(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	server := testutil.ServeSite(t, map[string]string{
		"/a.html": "<html></html>",
	}, "")
	client := newTestClient(t, server.URL, true)

	_, err := client.Fetch(res.Ctx, server.URL+"/a.html")
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	client := newTestClient(t, "http://www.cazy.org", false)

	link, err := client.Resolve("a.html")
	require.NoError(t, err)
	require.Equal(t, "http://www.cazy.org/a.html", link)

	link, err = client.Resolve("https://www.cazy.org/b_A.html")
	require.NoError(t, err)
	require.Equal(t, "https://www.cazy.org/b_A.html", link)

	_, err = NewClient(ClientOptions{BaseUrl: "www.cazy.org"})
	require.Error(t, err)
}

func TestParseErrorUrl(t *testing.T) {
	err := NewParseError(nil, "no table with %d columns", 3)
	require.Equal(t, "parse: no table with 3 columns", err.Error())
}

type dumps struct {
	mutex    sync.Mutex
	contents map[string]string
}

func (d *dumps) Write(id, contents string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.contents[id] = contents
}

func TestFetchDumpsExchanges(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	server := testutil.ServeSite(t, map[string]string{
		"/a.html": `<html><body><p id="page">a</p></body></html>`,
	}, "")
	output := &dumps{contents: map[string]string{}}
	client, err := NewClient(ClientOptions{
		BaseUrl:    server.URL,
		Timeout:    time.Second * 5,
		DumpOutput: output,
	})
	require.NoError(t, err)

	doc, err := client.Fetch(res.Ctx, server.URL+"/a.html")
	require.NoError(t, err)
	require.Equal(t, "a", htmlutil.NodeText(doc.Find("#page")))

	require.Len(t, output.contents, 1)
	for _, contents := range output.contents {
		require.Contains(t, contents, "GET "+server.URL+"/a.html")
		require.Contains(t, contents, `<p id="page">a</p>`)
	}
}

func TestRobotsNotCachedWithoutResponse(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	var robotsHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, true)

	canceled, cancel := context.WithCancel(res.Ctx)
	cancel()
	_, err := client.Fetch(canceled, server.URL+"/private.html")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDisallowed)
	require.Zero(t, robotsHits.Load())

	// the canceled attempt must not have been remembered as allow-all
	_, err = client.Fetch(res.Ctx, server.URL+"/private.html")
	require.ErrorIs(t, err, ErrDisallowed)
	require.Equal(t, int64(1), robotsHits.Load())
}

func TestRobotsSharedAcrossWorkers(t *testing.T) {
	res := testutil.SetupService(t, testutil.ServiceParams{Name: "scrapers/cazy/core"})

	var robotsHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		time.Sleep(time.Millisecond * 50)
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/public.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, true)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.Fetch(res.Ctx, server.URL+"/public.html")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), robotsHits.Load())
}
