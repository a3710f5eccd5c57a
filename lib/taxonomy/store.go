package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cazy-scraper/lib/dbutil"

	_ "embed"
)

//go:embed schema.sql
var Schema string

// maximum lineage depth, guards against cycles in a corrupt dump
const maxDepth = 256

const lineageQuery = `WITH RECURSIVE lineage(taxid, parent, rank, depth) AS (
	SELECT taxid, parent, rank, 0 FROM nodes WHERE taxid = ?
	UNION ALL
	SELECT n.taxid, n.parent, n.rank, l.depth + 1
	FROM nodes n JOIN lineage l ON n.taxid = l.parent
	WHERE l.taxid != l.parent AND l.depth < ?
)
SELECT l.taxid, l.rank, COALESCE(s.name, '')
FROM lineage l LEFT JOIN names s ON s.taxid = l.taxid
ORDER BY l.depth DESC`

// Store is a local copy of the NCBI taxonomy.
type Store struct {
	db *dbutil.DB
}

// OpenStore opens (and creates, if needed) the taxonomy database at
// `dest`. Only sqlite dialects are supported.
func OpenStore(ctx context.Context, dest string) (*Store, error) {
	db, err := dbutil.Open(ctx, dest)
	if err != nil {
		return nil, err
	}
	if db.Dialect.Name != dbutil.SQLite.Name {
		db.Close()
		return nil, fmt.Errorf("taxonomy database must be sqlite, got %s", db.Dialect.Name)
	}
	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Empty reports whether no taxonomy has been loaded yet.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM (SELECT 1 FROM nodes LIMIT 1)").Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *Store) resolveMerged(ctx context.Context, taxid int64) (int64, error) {
	var merged int64
	err := s.db.QueryRowContext(ctx, "SELECT new FROM merged WHERE old = ?", taxid).Scan(&merged)
	if errors.Is(err, sql.ErrNoRows) {
		return taxid, nil
	}
	if err != nil {
		return 0, err
	}
	return merged, nil
}

func (s *Store) Lineage(ctx context.Context, taxid int64) (int64, []Node, error) {
	resolved, err := s.resolveMerged(ctx, taxid)
	if err != nil {
		return 0, nil, err
	}

	rows, err := s.db.QueryContext(ctx, lineageQuery, resolved, maxDepth)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var lineage []Node
	for rows.Next() {
		var n Node
		err = rows.Scan(&n.TaxID, &n.Rank, &n.Name)
		if err != nil {
			return 0, nil, err
		}
		lineage = append(lineage, n)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	if len(lineage) == 0 {
		return 0, nil, ErrUnknownTaxID
	}
	return resolved, lineage, nil
}
