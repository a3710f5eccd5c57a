package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("cazy.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Anchor is a link found on a page, Name is the normalized link text.
type Anchor struct {
	Name string
	Href string
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses every whitespace run (nbsp included) into a single
// space and strips non-printable runes.
func CleanText(s string) string {
	return removeNonPrintable(strings.Join(strings.Fields(s), " "))
}

// NodeText is the cleaned text content of the first node of the selection.
func NodeText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return CleanText(GetText(sel.Nodes[0]))
}

var absoluteHttp = regexp.MustCompile(`^https?://`)

// ExtractLinks returns the elements of class `class` whose href is an
// absolute http(s) url, in document order. Relative links are skipped.
func ExtractLinks(ctx context.Context, doc *goquery.Document, class string) []Anchor {
	_, span := tracer.Start(ctx, "ExtractLinks")
	defer span.End()

	span.SetAttributes(attribute.String("class", class))

	anchors := []Anchor{}
	for _, n := range doc.Find("." + class + "[href]").Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = strings.TrimSpace(a.Val)
				break
			}
		}
		if !absoluteHttp.MatchString(href) {
			continue
		}

		name := CleanText(GetText(n))
		anchors = append(anchors, Anchor{
			Name: name,
			Href: href,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", href),
		))
	}

	return anchors
}

// GetAnchors returns every anchor with an href inside the selection,
// keeping the href as written on the page.
func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		anchors = append(anchors, Anchor{
			Name: NodeText(a),
			Href: href,
		})
	})
	span.SetAttributes(attribute.Int("count", len(anchors)))

	return anchors
}
