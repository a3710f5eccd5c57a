package htmlutil

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

type spanned struct {
	text      string
	remaining int
}

func spanAttr(cell *goquery.Selection, name string) int {
	n, err := strconv.Atoi(cell.AttrOr(name, "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ReadTable reads the rows of `table` into a rectangular grid of cleaned
// cell texts. A cell spanning several columns or rows is repeated in every
// slot it covers, short rows are padded with "". Rows of tables nested
// inside `table` are not included.
func ReadTable(table *goquery.Selection) [][]string {
	if table.Length() == 0 {
		return nil
	}
	table = table.First()
	owner := table.Nodes[0]

	var grid [][]string
	pending := map[int]*spanned{}
	width := 0

	takePending := func(row []string, col int) ([]string, bool) {
		p, ok := pending[col]
		if !ok {
			return row, false
		}
		row = append(row, p.text)
		p.remaining--
		if p.remaining == 0 {
			delete(pending, col)
		}
		return row, true
	}

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").Nodes[0] != owner {
			return
		}

		var row []string
		col := 0
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			for {
				var ok bool
				row, ok = takePending(row, col)
				if !ok {
					break
				}
				col++
			}

			text := NodeText(cell)
			rowspan := spanAttr(cell, "rowspan")
			for i := 0; i < spanAttr(cell, "colspan"); i++ {
				row = append(row, text)
				if rowspan > 1 {
					pending[col] = &spanned{text: text, remaining: rowspan - 1}
				}
				col++
			}
		})

		// cells spanning down from earlier rows past the last cell of this one
		for len(pending) > 0 {
			var ok bool
			row, ok = takePending(row, col)
			if !ok {
				if !hasPendingAfter(pending, col) {
					break
				}
				row = append(row, "")
			}
			col++
		}

		if len(row) > width {
			width = len(row)
		}
		grid = append(grid, row)
	})

	for i, row := range grid {
		for len(row) < width {
			row = append(row, "")
		}
		grid[i] = row
	}
	return grid
}

func hasPendingAfter(pending map[int]*spanned, col int) bool {
	for c := range pending {
		if c > col {
			return true
		}
	}
	return false
}

// RowCells returns, for every row ReadTable would return, the number of
// columns covered by the row's own cells (colspan included, cells spanning
// down from earlier rows excluded).
func RowCells(table *goquery.Selection) []int {
	if table.Length() == 0 {
		return nil
	}
	table = table.First()
	owner := table.Nodes[0]

	var counts []int
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").Nodes[0] != owner {
			return
		}
		n := 0
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			n += spanAttr(cell, "colspan")
		})
		counts = append(counts, n)
	})
	return counts
}
