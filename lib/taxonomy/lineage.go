package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/taxonomy")

var ErrUnknownTaxID = errors.New("unknown taxid")

// Node is one ancestor of a lineage.
type Node struct {
	TaxID int64
	Rank  string
	Name  string
}

type Resolver interface {
	// Lineage returns the id `taxid` currently resolves to (it differs for
	// merged ids) and its ancestors from the root down to itself.
	Lineage(ctx context.Context, taxid int64) (int64, []Node, error)
}

// LineageRow is the lineage of one taxid flattened onto the ranks the
// lineages table keeps. Ranks missing from the lineage are "".
type LineageRow struct {
	TaxID        string
	NCBITaxID    string
	Superkingdom string
	Phylum       string
	Class        string
	Order        string
	Family       string
	Genus        string
	Species      string
}

// Ranks lists the projected ranks in the column order of the lineages
// table.
var Ranks = []string{"superkingdom", "phylum", "class", "order", "family", "genus", "species"}

// rank returns the field of `rank`, nil for ranks that are not projected.
func (r *LineageRow) rank(rank string) *string {
	switch rank {
	case "superkingdom":
		return &r.Superkingdom
	case "phylum":
		return &r.Phylum
	case "class":
		return &r.Class
	case "order":
		return &r.Order
	case "family":
		return &r.Family
	case "genus":
		return &r.Genus
	case "species":
		return &r.Species
	}
	return nil
}

// Names returns the rank names of the row in Ranks order.
func (r LineageRow) Names() []string {
	names := make([]string, len(Ranks))
	for i, rank := range Ranks {
		names[i] = *r.rank(rank)
	}
	return names
}

// Project flattens a root-first lineage onto Ranks. When a rank occurs
// more than once the deepest node wins. NCBI's newer "domain" rank stands
// in for a missing superkingdom.
func Project(taxid string, resolved int64, lineage []Node) LineageRow {
	byRank := map[string]string{}
	for _, n := range lineage {
		byRank[n.Rank] = n.Name
	}
	if _, ok := byRank["superkingdom"]; !ok {
		byRank["superkingdom"] = byRank["domain"]
	}

	row := LineageRow{
		TaxID:     taxid,
		NCBITaxID: strconv.FormatInt(resolved, 10),
	}
	for _, rank := range Ranks {
		*row.rank(rank) = byRank[rank]
	}
	return row
}

// ResolveLineages returns one row per input taxid, in input order. Ids
// that cannot be resolved still produce a row, with empty ranks, and their
// errors are joined into the returned error.
func ResolveLineages(ctx context.Context, r Resolver, taxids []string) ([]LineageRow, error) {
	ctx, span := tracer.Start(ctx, "ResolveLineages")
	defer span.End()

	span.SetAttributes(attribute.Int("taxids", len(taxids)))

	rows := make([]LineageRow, len(taxids))
	var errs []error
	for i, taxid := range taxids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, err := strconv.ParseInt(strings.TrimSpace(taxid), 10, 64)
		if err != nil {
			rows[i] = LineageRow{TaxID: taxid}
			errs = append(errs, fmt.Errorf("taxid %q is not numeric", taxid))
			continue
		}

		resolved, lineage, err := r.Lineage(ctx, id)
		if err != nil {
			rows[i] = LineageRow{TaxID: taxid}
			errs = append(errs, fmt.Errorf("taxid %s: %w", taxid, err))
			continue
		}
		rows[i] = Project(taxid, resolved, lineage)
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%d taxids unresolved", len(errs)))
	}
	return rows, err
}
