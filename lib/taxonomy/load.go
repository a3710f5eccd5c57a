package taxonomy

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultSource is NCBI's taxonomy dump.
const DefaultSource = "https://ftp.ncbi.nlm.nih.gov/pub/taxonomy/taxdump.tar.gz"

const progressInterval = 500_000

// LoadStats counts the records loaded from a dump.
type LoadStats struct {
	Nodes  int
	Names  int
	Merged int
}

// Load replaces the contents of the store with the taxdump.tar.gz at
// `source`, either a local path or an http(s) url fetched with `client`.
// The old taxonomy stays in place when loading fails.
func (s *Store) Load(ctx context.Context, client *resty.Client, source string) (LoadStats, error) {
	ctx, span := tracer.Start(ctx, "Store:Load")
	defer span.End()

	span.SetAttributes(attribute.String("source", source))

	stats, err := s.load(ctx, client, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load taxdump")
		return LoadStats{}, err
	}
	span.SetAttributes(
		attribute.Int("nodes", stats.Nodes),
		attribute.Int("names", stats.Names),
		attribute.Int("merged", stats.Merged),
	)
	return stats, nil
}

func openSource(ctx context.Context, client *resty.Client, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.Open(source)
	}
	if client == nil {
		client = resty.New()
	}

	res, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(source)
	if err != nil {
		return nil, err
	}
	body := res.RawBody()
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		body.Close()
		return nil, fmt.Errorf("download %s: unexpected status %d", source, res.StatusCode())
	}
	return body, nil
}

func (s *Store) load(ctx context.Context, client *resty.Client, source string) (LoadStats, error) {
	src, err := openSource(ctx, client, source)
	if err != nil {
		return LoadStats{}, err
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return LoadStats{}, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LoadStats{}, err
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "names", "merged"} {
		_, err = tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return LoadStats{}, err
		}
	}

	var stats LoadStats
	seen := map[string]bool{}
	archive := tar.NewReader(gz)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return LoadStats{}, fmt.Errorf("read archive: %w", err)
		}

		name := path.Base(header.Name)
		switch name {
		case "nodes.dmp":
			stats.Nodes, err = loadDump(ctx, tx, archive, name,
				"INSERT INTO nodes (taxid, parent, rank) VALUES (?, ?, ?)",
				nodeRecord,
			)
		case "names.dmp":
			stats.Names, err = loadDump(ctx, tx, archive, name,
				"INSERT INTO names (taxid, name) VALUES (?, ?)",
				nameRecord,
			)
		case "merged.dmp":
			stats.Merged, err = loadDump(ctx, tx, archive, name,
				"INSERT INTO merged (old, new) VALUES (?, ?)",
				mergedRecord,
			)
		default:
			continue
		}
		if err != nil {
			return LoadStats{}, err
		}
		seen[name] = true
	}

	for _, required := range []string{"nodes.dmp", "names.dmp"} {
		if !seen[required] {
			return LoadStats{}, fmt.Errorf("%s missing from %s", required, source)
		}
	}

	err = tx.Commit()
	if err != nil {
		return LoadStats{}, err
	}
	return stats, nil
}

// splitDump splits a line of a .dmp file, fields are delimited by "\t|\t"
// and each line ends with "\t|".
func splitDump(line string) []string {
	line = strings.TrimSuffix(line, "|")
	line = strings.TrimSuffix(line, "\t")
	return strings.Split(line, "\t|\t")
}

// a record mapper returns the insert arguments of a line, nil skips it
type recordFunc func(fields []string) ([]any, error)

func nodeRecord(fields []string) ([]any, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}
	taxid, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, err
	}
	parent, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, err
	}
	return []any{taxid, parent, fields[2]}, nil
}

func nameRecord(fields []string) ([]any, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	if fields[3] != "scientific name" {
		return nil, nil
	}
	taxid, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, err
	}
	return []any{taxid, fields[1]}, nil
}

func mergedRecord(fields []string) ([]any, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("expected at least 2 fields, got %d", len(fields))
	}
	old, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, err
	}
	current, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, err
	}
	return []any{old, current}, nil
}

func loadDump(ctx context.Context, tx *sql.Tx, r io.Reader, name, insert string, record recordFunc) (int, error) {
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		args, err := record(splitDump(line))
		if err != nil {
			return 0, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}
		if args == nil {
			continue
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}

		count++
		if count%progressInterval == 0 {
			slog.InfoContext(ctx, "loading taxdump", "file", name, "records", count)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}

	slog.InfoContext(ctx, "loaded taxdump file", "file", name, "records", count)
	return count, nil
}
