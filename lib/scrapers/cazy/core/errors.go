package core

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ErrDisallowed is returned for urls excluded by the site's robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// FetchError is a failed page request: transport failure, timeout,
// non-2xx status or an unparseable body.
type FetchError struct {
	URL string
	// Status is 0 when no response was received.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is a fetched page that lacks an element or structure the
// parser requires.
type ParseError struct {
	URL  string
	What string
}

func (e *ParseError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("parse: %s", e.What)
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.What)
}

func NewParseError(doc *goquery.Document, format string, args ...any) *ParseError {
	err := &ParseError{What: fmt.Sprintf(format, args...)}
	if doc != nil && doc.Url != nil {
		err.URL = doc.Url.String()
	}
	return err
}
