package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cazy-scraper/lib/dbutil"
	"cazy-scraper/lib/telemetry"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will use `:memory:`
	DbPath string
	// if unspecified, it will skip setting up a db
	WithDb bool
	// if unspecified, defaults to 10 seconds
	Timeout time.Duration
}

type ServiceResult struct {
	Ctx context.Context
	DB  *dbutil.DB
}

// SetupService installs test telemetry and optionally opens a database,
// everything is released when the test ends.
func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	t.Helper()

	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))
	t.Cleanup(cleanup)

	timeout := params.Timeout
	if timeout == 0 {
		timeout = time.Second * 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	result := ServiceResult{Ctx: ctx}
	if !params.WithDb {
		return result
	}

	dbpath := ":memory:"
	if params.DbPath != "" {
		dbpath = params.DbPath
	}
	db, err := dbutil.Open(ctx, dbpath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	result.DB = db
	return result
}

// HostPlaceholder in a page served by ServeSite is replaced with the
// server's host, so pages can carry absolute links to each other.
const HostPlaceholder = "{{host}}"

// ServeSite serves `pages` keyed by path, anything else is a 404.
func ServeSite(t testing.TB, pages map[string]string, contentType string) *httptest.Server {
	t.Helper()

	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(strings.ReplaceAll(page, HostPlaceholder, r.Host)))
	}))
	t.Cleanup(server.Close)
	return server
}
