package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parse(t testing.TB, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

const navPage = `<html><body>
<a class="nav1" href="http://www.cazy.org/a_A.html">  A
	(12)</a>
<a class="nav1" href="b_B.html">relative</a>
<a class="nav" href="http://www.cazy.org/x.html">not nav1</a>
<a class="nav1" href="https://www.cazy.org/c_C.html">C&nbsp;group</a>
<span class="nav1">no href</span>
<a class="nav1" href="ftp://www.cazy.org/d.html">ftp</a>
</body></html>`

func TestExtractLinks(t *testing.T) {
	doc := parse(t, navPage)

	links := ExtractLinks(context.Background(), doc, "nav1")
	expected := []Anchor{
		{Name: "A (12)", Href: "http://www.cazy.org/a_A.html"},
		{Name: "C group", Href: "https://www.cazy.org/c_C.html"},
	}
	if diff := cmp.Diff(expected, links); diff != "" {
		t.Fatal("unexpected links (-want +got):\n", diff)
	}

	// repeated extraction over the same document is stable
	for i := 0; i < 3; i++ {
		require.Equal(t, links, ExtractLinks(context.Background(), doc, "nav1"))
	}
}

func TestExtractLinksEmpty(t *testing.T) {
	doc := parse(t, navPage)
	links := ExtractLinks(context.Background(), doc, "missing")
	require.NotNil(t, links)
	require.Empty(t, links)
}

func TestGetAnchors(t *testing.T) {
	doc := parse(t, `<table>
		<tr><td><a href="GH1.html">1</a></td><td><a href="GH2.html"> 2 </a></td></tr>
		<tr><td><a href="">empty</a><a name="anchor">no href</a></td></tr>
	</table>`)

	anchors := GetAnchors(context.Background(), doc.Find("table"))
	require.Equal(t, []Anchor{
		{Name: "1", Href: "GH1.html"},
		{Name: "2", Href: "GH2.html"},
	}, anchors)
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "Protein Name", CleanText("  Protein\n\t Name "))
	require.Equal(t, "EC#", CleanText("EC#\u200b"))
	require.Equal(t, "", CleanText(" \n "))
}
