package genome

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"cazy-scraper/lib/scrapers/cazy/core"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const speciesHeader = `<html><head><meta charset="utf-8"></head><body>
<div><span class="titre_cazome">Aeropyrum pernix K1</span></div>
<div>Taxonomy: <a target="ncbitaxid" href="https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?id=272557">272557</a></div>
`

const speciesTable = `<table><tr><td>summary</td></tr></table>
<table>
<tr><td colspan="3">Proteins</td></tr>
<tr><th>Protein</th><th>Family</th><th>Reference Accession</th></tr>
<tr><td>APE_0007</td><td>GT4</td><td>BAA79113.1</td></tr>
<tr><td>APE_0041.1</td><td></td><td>BAA79139.2</td></tr>
<tr><td>APE_0160a</td><td>GH57</td><td>BAA79118.1</td></tr>
</table>
</body></html>`

func parse(t testing.TB, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	doc.Url, err = url.Parse("http://www.cazy.org/b272557.html")
	require.NoError(t, err)
	return doc
}

func TestParseSpecies(t *testing.T) {
	doc := parse(t, speciesHeader+speciesTable)

	rows, record, err := ParseSpecies(context.Background(), doc, Archaea)
	require.NoError(t, err)

	require.Equal(t, SpeciesRecord{
		Name:     "Aeropyrum pernix K1",
		TaxID:    "272557",
		Category: Archaea,
	}, record)

	expected := []ProteinRow{
		{Name: "Aeropyrum pernix K1", Protein: "APE_0007", Family: "GT4", RefAcc: "BAA79113.1"},
		{Name: "Aeropyrum pernix K1", Protein: "APE_0160a", Family: "GH57", RefAcc: "BAA79118.1"},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatal("unexpected rows (-want +got):\n", diff)
	}
}

func TestParseSpeciesWithoutTable(t *testing.T) {
	released := parse(t, speciesHeader+speciesTable)
	_, releasedRecord, err := ParseSpecies(context.Background(), released, Bacteria)
	require.NoError(t, err)

	markers := []string{
		"<p>This genome is unreleased</p></body></html>",
		"<p>This genome does not contain CAZymes.</p></body></html>",
		"<p>This genome is unreleased</p>" + speciesTable,
	}
	for _, marker := range markers {
		doc := parse(t, speciesHeader+marker)
		rows, record, err := ParseSpecies(context.Background(), doc, Bacteria)
		require.NoError(t, err)
		require.Nil(t, rows)
		require.Equal(t, releasedRecord, record)
	}
}

func TestParseSpeciesMarkerIsCaseSensitive(t *testing.T) {
	doc := parse(t, speciesHeader+"<p>Unreleased</p>"+speciesTable)
	rows, _, err := ParseSpecies(context.Background(), doc, Viruses)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestParseSpeciesEmptyTable(t *testing.T) {
	doc := parse(t, speciesHeader+`<table>
		<tr><td colspan="3">Proteins</td></tr>
		<tr><th>Protein</th><th>Family</th><th>Reference Accession</th></tr>
		<tr><td>APE_0041.1</td><td></td><td></td></tr>
	</table></body></html>`)

	rows, record, err := ParseSpecies(context.Background(), doc, Eukaryotes)
	require.NoError(t, err)
	require.NotNil(t, rows)
	require.Empty(t, rows)
	require.Equal(t, "272557", record.TaxID)
}

func TestParseSpeciesErrors(t *testing.T) {
	testCases := []struct {
		name string
		page string
	}{
		{
			name: "missing name",
			page: `<a target="ncbitaxid">272557</a>` + speciesTable,
		},
		{
			name: "empty taxid",
			page: `<span class="titre_cazome">Aeropyrum pernix K1</span><a target="ncbitaxid"> </a>` + speciesTable,
		},
		{
			name: "no table",
			page: speciesHeader + "</body></html>",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := ParseSpecies(context.Background(), parse(t, test.page), Archaea)
			var parseErr *core.ParseError
			require.True(t, errors.As(err, &parseErr), fmt.Sprint(err))
			require.Equal(t, "http://www.cazy.org/b272557.html", parseErr.URL)
		})
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		parsed, err := ParseCategory(string(c))
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}
	_, err := ParseCategory("plants")
	require.Error(t, err)
}
