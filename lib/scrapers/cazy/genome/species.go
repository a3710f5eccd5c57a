package genome

import (
	"context"
	"fmt"
	"strings"

	"cazy-scraper/lib/htmlutil"
	"cazy-scraper/lib/scrapers/cazy/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/cazy/genome")

type Category string

const (
	Archaea    Category = "archaea"
	Bacteria   Category = "bacteria"
	Eukaryotes Category = "eukaryotes"
	Viruses    Category = "viruses"
)

// Categories lists every genome category in crawl order.
var Categories = []Category{Archaea, Bacteria, Eukaryotes, Viruses}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown genome category %q", s)
}

// SpeciesRecord is produced for every species page visited, whether or not
// it carries a protein table.
type SpeciesRecord struct {
	Name     string
	TaxID    string
	Category Category
}

type ProteinRow struct {
	Name    string
	Protein string
	Family  string
	RefAcc  string
}

// markers of species pages that have no protein table
var noTableMarkers = []string{
	"unreleased",
	"This genome does not contain CAZymes",
}

// ParseSpecies reads a species page. A nil table (with a nil error) means
// the page is marked as having no protein data, a page whose table has no
// complete rows gives an empty non-nil table.
func ParseSpecies(ctx context.Context, doc *goquery.Document, category Category) ([]ProteinRow, SpeciesRecord, error) {
	ctx, span := tracer.Start(ctx, "ParseSpecies")
	defer span.End()

	rows, record, err := parseSpecies(ctx, doc, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse species page")
		return nil, SpeciesRecord{}, err
	}
	span.SetAttributes(
		attribute.String("name", record.Name),
		attribute.String("taxid", record.TaxID),
		attribute.Bool("has_table", rows != nil),
		attribute.Int("rows", len(rows)),
	)
	return rows, record, nil
}

func parseSpecies(_ context.Context, doc *goquery.Document, category Category) ([]ProteinRow, SpeciesRecord, error) {
	name := htmlutil.NodeText(doc.Find(".titre_cazome"))
	if name == "" {
		return nil, SpeciesRecord{}, core.NewParseError(doc, "species name (.titre_cazome) not found")
	}
	taxid := htmlutil.NodeText(doc.Find(`[target="ncbitaxid"]`))
	if taxid == "" {
		return nil, SpeciesRecord{}, core.NewParseError(doc, "ncbi taxid of %q not found", name)
	}

	record := SpeciesRecord{
		Name:     name,
		TaxID:    taxid,
		Category: category,
	}

	page, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return nil, SpeciesRecord{}, core.NewParseError(doc, "serialize page: %v", err)
	}
	for _, marker := range noTableMarkers {
		if strings.Contains(page, marker) {
			return nil, record, nil
		}
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, SpeciesRecord{}, core.NewParseError(doc, "protein table of %q not found", name)
	}
	grid := htmlutil.ReadTable(tables.Last())

	// row 0 is the caption, row 1 the column header
	rows := []ProteinRow{}
	if len(grid) <= 2 {
		return rows, record, nil
	}
	if len(grid[0]) < 3 {
		return nil, SpeciesRecord{}, core.NewParseError(
			doc, "protein table of %q has %d columns, expected 3",
			name, len(grid[0]),
		)
	}

	for _, cells := range grid[2:] {
		protein, family, refAcc := cells[0], cells[1], cells[2]
		if protein == "" || family == "" || refAcc == "" {
			continue
		}
		rows = append(rows, ProteinRow{
			Name:    name,
			Protein: protein,
			Family:  family,
			RefAcc:  refAcc,
		})
	}
	return rows, record, nil
}
