package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cazy-scraper/lib/dbutil"
	"cazy-scraper/lib/scrapers/cazy/family"
	"cazy-scraper/lib/scrapers/cazy/genome"
	"cazy-scraper/lib/taxonomy"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/cazy/store")

// Mode decides what happens when a table being written already exists.
type Mode string

const (
	Append  Mode = "append"
	Replace Mode = "replace"
	Fail    Mode = "fail"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Append, Replace, Fail:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown table mode %q, expected append, replace or fail", s)
}

// PersistError is a failed table write.
type PersistError struct {
	Table string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("write table %s: %v", e.Table, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

var ErrTableExists = errors.New("table already exists")

type Options struct {
	Mode Mode
	// name the category column of the taxids table "superkingdom"
	LegacyTaxidSchema bool
}

type Store struct {
	db   *dbutil.DB
	opts Options
}

func New(db *dbutil.DB, opts Options) *Store {
	if opts.Mode == "" {
		opts.Mode = Append
	}
	return &Store{db: db, opts: opts}
}

// Table names.
const (
	GenomesTable  = "genomes"
	TaxidsTable   = "taxids"
	EnzymesTable  = "enzymes"
	LineagesTable = "lineages"
)

type table struct {
	name    string
	columns []string
}

var genomesTable = table{
	name:    GenomesTable,
	columns: []string{"name", "protein", "family", "refAcc"},
}

func (s *Store) taxidsTable() table {
	category := "category"
	if s.opts.LegacyTaxidSchema {
		category = "superkingdom"
	}
	return table{
		name:    TaxidsTable,
		columns: []string{"name", "taxid", category},
	}
}

var enzymesTable = table{
	name:    EnzymesTable,
	columns: []string{"Protein Name", "EC#", "Organism", "GenBank", "UniProt", "PDB", "Subf", "family"},
}

var lineagesTable = table{
	name:    LineagesTable,
	columns: append([]string{"taxid", "NCBItaxid"}, taxonomy.Ranks...),
}

func (s *Store) createStatement(t table, ifNotExists bool) string {
	columns := make([]string, len(t.columns))
	for i, c := range t.columns {
		columns[i] = s.db.Dialect.Quote(c) + " TEXT"
	}
	clause := ""
	if ifNotExists {
		clause = "IF NOT EXISTS "
	}
	return fmt.Sprintf(
		"CREATE TABLE %s%s (%s)",
		clause, s.db.Dialect.Quote(t.name), strings.Join(columns, ", "),
	)
}

func (s *Store) insertStatement(t table) string {
	columns := make([]string, len(t.columns))
	for i, c := range t.columns {
		columns[i] = s.db.Dialect.Quote(c)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.db.Dialect.Quote(t.name),
		strings.Join(columns, ", "),
		s.db.Dialect.Placeholders(len(t.columns)),
	)
}

func (s *Store) prepareTx(ctx context.Context, tx *sql.Tx, t table) error {
	switch s.opts.Mode {
	case Replace:
		_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.db.Dialect.Quote(t.name))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.createStatement(t, false))
		return err
	case Fail:
		_, err := tx.ExecContext(ctx, s.createStatement(t, false))
		return err
	default:
		_, err := tx.ExecContext(ctx, s.createStatement(t, true))
		return err
	}
}

// write stores every row of `rows` in one transaction.
func (s *Store) write(ctx context.Context, t table, rows [][]any) error {
	ctx, span := tracer.Start(ctx, "Store:write")
	defer span.End()

	span.SetAttributes(
		attribute.String("table", t.name),
		attribute.String("mode", string(s.opts.Mode)),
		attribute.Int("rows", len(rows)),
	)

	err := s.writeTx(ctx, t, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write table")
		return &PersistError{Table: t.name, Err: err}
	}

	slog.InfoContext(ctx, "wrote table", "table", t.name, "rows", len(rows), "mode", s.opts.Mode)
	return nil
}

// CheckWritable fails with a *PersistError when the mode is Fail and one
// of `tables` already exists, so a run can stop before doing any work.
// Writes check again.
func (s *Store) CheckWritable(ctx context.Context, tables ...string) error {
	if s.opts.Mode != Fail {
		return nil
	}
	for _, name := range tables {
		exists, err := s.db.TableExists(ctx, name)
		if err != nil {
			return &PersistError{Table: name, Err: err}
		}
		if exists {
			return &PersistError{Table: name, Err: ErrTableExists}
		}
	}
	return nil
}

func (s *Store) writeTx(ctx context.Context, t table, rows [][]any) error {
	// in fail mode the existence check must run before the transaction
	// takes the only sqlite connection
	if s.opts.Mode == Fail {
		exists, err := s.db.TableExists(ctx, t.name)
		if err != nil {
			return err
		}
		if exists {
			return ErrTableExists
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = s.prepareTx(ctx, tx, t)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, s.insertStatement(t))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx, row...)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullablePtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullable(*s)
}

func (s *Store) WriteGenomes(ctx context.Context, rows []genome.ProteinRow) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = []any{r.Name, r.Protein, r.Family, r.RefAcc}
	}
	return s.write(ctx, genomesTable, values)
}

func (s *Store) WriteTaxids(ctx context.Context, records []genome.SpeciesRecord) error {
	values := make([][]any, len(records))
	for i, r := range records {
		values[i] = []any{r.Name, r.TaxID, string(r.Category)}
	}
	return s.write(ctx, s.taxidsTable(), values)
}

// WriteEnzymes stores blank cells, and the subfamily of rows from pages
// without a subfamily column, as NULL.
func (s *Store) WriteEnzymes(ctx context.Context, rows []family.EnzymeRow) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = []any{
			nullable(r.ProteinName),
			nullable(r.EC),
			nullable(r.Organism),
			nullable(r.GenBank),
			nullable(r.UniProt),
			nullable(r.PDB),
			nullablePtr(r.Subfamily),
			r.Family,
		}
	}
	return s.write(ctx, enzymesTable, values)
}

func (s *Store) WriteLineages(ctx context.Context, rows []taxonomy.LineageRow) error {
	values := make([][]any, len(rows))
	for i, r := range rows {
		row := []any{r.TaxID, r.NCBITaxID}
		for _, name := range r.Names() {
			row = append(row, name)
		}
		values[i] = row
	}
	return s.write(ctx, lineagesTable, values)
}

// ReadTaxids returns the distinct taxids of the taxids table, first
// occurrence wins.
func (s *Store) ReadTaxids(ctx context.Context) ([]string, error) {
	exists, err := s.db.TableExists(ctx, TaxidsTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("taxids table not found, run the genomes crawl first")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s",
		s.db.Dialect.Quote("taxid"), s.db.Dialect.Quote(TaxidsTable),
	))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taxids []string
	seen := map[string]bool{}
	for rows.Next() {
		var taxid sql.NullString
		err = rows.Scan(&taxid)
		if err != nil {
			return nil, err
		}
		if !taxid.Valid || taxid.String == "" || seen[taxid.String] {
			continue
		}
		seen[taxid.String] = true
		taxids = append(taxids, taxid.String)
	}
	return taxids, rows.Err()
}
