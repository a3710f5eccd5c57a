package family

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cazy-scraper/lib/htmlutil"
	"cazy-scraper/lib/scrapers/cazy/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/cazy/family")

// EnzymeRow is one protein of a family listing. Empty strings are cells
// the page leaves blank. Subfamily is nil when the page has no subfamily
// column at all.
type EnzymeRow struct {
	ProteinName string
	EC          string
	Organism    string
	GenBank     string
	UniProt     string
	PDB         string
	Subfamily   *string
	Family      string
}

type Table struct {
	Rows         []EnzymeRow
	HasSubfamily bool
}

const (
	colProteinName = iota
	colEC
	colOrganism
	colGenBank
	colUniProt
	colPDB
	colSubfamily

	positionalColumns = colSubfamily
	// older listings stop after the accession columns
	minColumns = colEC + 1
)

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// ParseFamily reads the protein listing of a single family page and tags
// every row with `code`.
func ParseFamily(ctx context.Context, doc *goquery.Document, code string) (Table, error) {
	ctx, span := tracer.Start(ctx, "ParseFamily")
	defer span.End()

	span.SetAttributes(attribute.String("family", code))

	table, err := parseFamily(ctx, doc, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse family page")
		return Table{}, err
	}
	span.SetAttributes(
		attribute.Int("rows", len(table.Rows)),
		attribute.Bool("subfamily", table.HasSubfamily),
	)
	return table, nil
}

func parseFamily(_ context.Context, doc *goquery.Document, code string) (Table, error) {
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return Table{}, core.NewParseError(doc, "family table of %s not found", code)
	}
	grid := htmlutil.ReadTable(tables.Last())

	// rows 0 and 1 are caption and pagination, row 2 the column header
	if len(grid) < 3 {
		return Table{}, core.NewParseError(doc, "family table of %s has no header row", code)
	}
	// the subfamily column is unlabeled, count the header cells rather
	// than their labels
	width := htmlutil.RowCells(tables.Last())[2]
	if width < minColumns {
		return Table{}, core.NewParseError(
			doc, "family table of %s has %d header cells, expected at least %d",
			code, width, minColumns,
		)
	}

	out := Table{
		Rows:         []EnzymeRow{},
		HasSubfamily: width > positionalColumns,
	}
	for _, cells := range grid[3:] {
		row := EnzymeRow{
			ProteinName: cell(cells, colProteinName),
			EC:          cell(cells, colEC),
			Organism:    cell(cells, colOrganism),
			GenBank:     cell(cells, colGenBank),
			UniProt:     cell(cells, colUniProt),
			PDB:         cell(cells, colPDB),
			Family:      code,
		}
		if out.HasSubfamily {
			subfamily := cell(cells, colSubfamily)
			row.Subfamily = &subfamily
		}
		if Discard(row) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Discard reports rows that carry nothing beyond a protein name and the
// header rows CAZy repeats inside long listings.
func Discard(row EnzymeRow) bool {
	if row.ProteinName == "Protein Name" && row.EC == "EC#" {
		return true
	}
	subfamilyEmpty := row.Subfamily == nil || *row.Subfamily == ""
	return row.EC == "" &&
		row.Organism == "" &&
		row.GenBank == "" &&
		row.UniProt == "" &&
		row.PDB == "" &&
		subfamilyEmpty
}

// Entry is a family linked from a class index page.
type Entry struct {
	Name string
	Href string
}

// Unclassified names the entry for sequences without a family.
const Unclassified = "unclassified"

// ParseIndex reads the families linked from the first table of a class
// index page, followed by the unclassified entry from the first link of
// the second table. A family name linked twice keeps its first position
// and its last href.
func ParseIndex(ctx context.Context, doc *goquery.Document) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "ParseIndex")
	defer span.End()

	tables := doc.Find("table")
	if tables.Length() < 2 {
		err := core.NewParseError(doc, "class index has %d tables, expected 2", tables.Length())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var entries []Entry
	position := map[string]int{}
	add := func(name, href string) {
		if i, ok := position[name]; ok {
			entries[i].Href = href
			return
		}
		position[name] = len(entries)
		entries = append(entries, Entry{Name: name, Href: href})
	}

	for _, a := range htmlutil.GetAnchors(ctx, tables.Eq(0)) {
		if a.Name == "" {
			continue
		}
		add(a.Name, a.Href)
	}

	unclassified := htmlutil.GetAnchors(ctx, tables.Eq(1))
	if len(unclassified) == 0 {
		err := core.NewParseError(doc, "unclassified link not found in second table")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	add(Unclassified, unclassified[0].Href)

	span.SetAttributes(attribute.Int("families", len(entries)))
	return entries, nil
}

const listingSuffix = "_all.html?debut_PRINC=10000000"

// ListingURL returns the url of the single page listing every protein of a
// family, "GH1.html" -> "<base>/GH1_all.html?debut_PRINC=10000000".
func ListingURL(base, href string) (string, error) {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(baseUrl.Path, "/") {
		baseUrl.Path += "/"
	}

	page := strings.Replace(href, ".html", listingSuffix, 1)
	ref, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse family href %q: %w", href, err)
	}
	return baseUrl.ResolveReference(ref).String(), nil
}

// Classes lists the enzyme classes in crawl order.
var Classes = []string{
	"GlycosideHydrolase",
	"GlycosylTransferases",
	"PolysaccharideLyases",
	"CarbohydrateEsterases",
	"AuxiliaryActivities",
	"CarbohydrateBindingModules",
}

// Abbreviations maps the class names used in configuration to the prefix
// of their family codes.
var Abbreviations = map[string]string{
	"GlycosideHydrolase":         "GH",
	"GlycosylTransferases":       "GT",
	"PolysaccharideLyases":       "PL",
	"CarbohydrateEsterases":      "CE",
	"AuxiliaryActivities":        "AA",
	"CarbohydrateBindingModules": "CBM",
}

// Code builds a family code from the class abbreviation and the family
// name shown on the index, Code("GH", "1") = "GH1".
func Code(abbr, name string) string {
	if strings.HasPrefix(name, abbr) {
		return name
	}
	return abbr + name
}
