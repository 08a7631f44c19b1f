// Package index mirrors stored records into a single-file SQLite database
// for source, keyword, and archive-date queries. The index is optional and
// derived: it can always be rebuilt from manifests and snapshots.
package index

import (
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"harvester/internal/core"
	"harvester/internal/storage"
	"harvester/internal/timeutil"
)

// DBName is the index filename inside the data root.
const DBName = "index.sqlite"

// Index locates the SQLite mirror for one data root.
type Index struct {
	dataRoot string
}

// New returns an index handle for dataRoot. Nothing is opened until an
// operation runs.
func New(dataRoot string) *Index {
	return &Index{dataRoot: dataRoot}
}

// Path returns the index file location.
func (ix *Index) Path() string {
	return filepath.Join(ix.dataRoot, DBName)
}

// Exists reports whether the index file is present. The index is opt-in:
// when absent, queries fall back to filesystem scans.
func (ix *Index) Exists() bool {
	_, err := os.Stat(ix.Path())
	return err == nil
}

func (ix *Index) open() (*sql.DB, error) {
	if err := os.MkdirAll(ix.dataRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}
	db, err := sql.Open("sqlite3", ix.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	table := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		source_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		archived_at TEXT NOT NULL,
		archived_date TEXT NOT NULL,
		published_at TEXT,
		author TEXT,
		snapshot_date TEXT,
		item_id TEXT,
		content_path TEXT,
		rank INTEGER,
		comments_count INTEGER,
		score INTEGER,
		extra_json TEXT
	);`
	if _, err := db.Exec(table); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	if err := ensureColumns(db, "item_id", "content_path"); err != nil {
		return err
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_records_source ON records(source_id)",
		"CREATE INDEX IF NOT EXISTS idx_records_archived_date ON records(archived_date)",
		"CREATE INDEX IF NOT EXISTS idx_records_title ON records(title)",
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// ensureColumns adds nullable text columns introduced after early index
// files were written.
func ensureColumns(db *sql.DB, names ...string) error {
	rows, err := db.Query("PRAGMA table_info(records)")
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	present := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan schema row: %w", err)
		}
		present[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	for _, name := range names {
		if present[name] {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE records ADD COLUMN %s TEXT", name)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", name, err)
		}
	}
	return nil
}

// Rebuild deletes the index file and reinserts every record of every given
// source. Returns the number of inserted records.
func (ix *Index) Rebuild(st *storage.Storage, srcs []core.Source) (int, error) {
	if err := os.Remove(ix.Path()); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to remove stale index: %w", err)
	}
	db, err := ix.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	total := 0
	for _, source := range srcs {
		records, err := st.RecordsForSource(source)
		if err != nil {
			return total, err
		}
		n, err := insertRecords(db, records)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// UpsertRecords inserts or replaces records by primary key.
func (ix *Index) UpsertRecords(records []core.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	db, err := ix.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return insertRecords(db, records)
}

func insertRecords(db *sql.DB, records []core.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO records (
		id, source_id, source_name, kind, title, url,
		archived_at, archived_date, published_at, author, snapshot_date,
		item_id, content_path, rank, comments_count, score, extra_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		archivedDate := record.ArchivedAt
		if t, err := timeutil.ParseDate(record.ArchivedAt); err == nil {
			archivedDate = timeutil.FormatDate(t)
		}
		var extraJSON any
		if len(record.Extra) > 0 {
			encoded, err := json.Marshal(record.Extra)
			if err != nil {
				tx.Rollback()
				return 0, fmt.Errorf("failed to encode extra: %w", err)
			}
			extraJSON = string(encoded)
		}
		_, err := stmt.Exec(
			recordID(record),
			record.SourceID,
			record.SourceName,
			string(record.Kind),
			record.Title,
			record.URL,
			record.ArchivedAt,
			archivedDate,
			nullable(record.PublishedAt),
			nullable(record.Author),
			nullable(record.SnapshotDate),
			nullable(record.ItemID),
			nullable(record.ContentPath),
			record.Rank,
			record.CommentsCount,
			record.Score,
			extraJSON,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}
	return len(records), nil
}

const selectColumns = `
SELECT source_id, source_name, kind, title, url, archived_at,
       published_at, author, snapshot_date, item_id, content_path,
       rank, comments_count, score, extra_json
FROM records`

// QueryBySource returns a source's records sorted archived_at descending.
func (ix *Index) QueryBySource(sourceID string, limit int) ([]core.Record, error) {
	query := selectColumns + " WHERE source_id = ? ORDER BY archived_at DESC"
	args := []any{sourceID}
	query, args = withLimit(query, args, limit)
	return ix.query(query, args)
}

// QueryByKeyword returns records whose title contains keyword
// (case-insensitive), optionally restricted to sourceIDs.
func (ix *Index) QueryByKeyword(keyword string, sourceIDs []string, limit int) ([]core.Record, error) {
	query := selectColumns + " WHERE lower(title) LIKE ?"
	args := []any{"%" + strings.ToLower(keyword) + "%"}
	query, args = withSourceFilter(query, args, sourceIDs)
	query += " ORDER BY archived_at DESC"
	query, args = withLimit(query, args, limit)
	return ix.query(query, args)
}

// QueryByArchiveDate returns records archived in the inclusive date range.
func (ix *Index) QueryByArchiveDate(startDate, endDate string, sourceIDs []string, limit int) ([]core.Record, error) {
	query := selectColumns + " WHERE archived_date BETWEEN ? AND ?"
	args := []any{startDate, endDate}
	query, args = withSourceFilter(query, args, sourceIDs)
	query += " ORDER BY archived_at DESC"
	query, args = withLimit(query, args, limit)
	return ix.query(query, args)
}

func withSourceFilter(query string, args []any, sourceIDs []string) (string, []any) {
	if len(sourceIDs) == 0 {
		return query, args
	}
	placeholders := "?"
	args = append(args, sourceIDs[0])
	for _, id := range sourceIDs[1:] {
		placeholders += ", ?"
		args = append(args, id)
	}
	return query + " AND source_id IN (" + placeholders + ")", args
}

func withLimit(query string, args []any, limit int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	return query + " LIMIT ?", append(args, limit)
}

func (ix *Index) query(query string, args []any) ([]core.Record, error) {
	db, err := ix.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var record core.Record
		var kind string
		var publishedAt, author, snapshotDate, itemID, contentPath, extraJSON sql.NullString
		var rank, commentsCount, score sql.NullInt64
		err := rows.Scan(
			&record.SourceID,
			&record.SourceName,
			&kind,
			&record.Title,
			&record.URL,
			&record.ArchivedAt,
			&publishedAt,
			&author,
			&snapshotDate,
			&itemID,
			&contentPath,
			&rank,
			&commentsCount,
			&score,
			&extraJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.Kind = core.SourceKind(kind)
		record.PublishedAt = publishedAt.String
		record.Author = author.String
		record.SnapshotDate = snapshotDate.String
		record.ItemID = itemID.String
		record.ContentPath = contentPath.String
		if rank.Valid {
			record.Rank = int(rank.Int64)
		}
		if commentsCount.Valid {
			n := int(commentsCount.Int64)
			record.CommentsCount = &n
		}
		if score.Valid {
			n := int(score.Int64)
			record.Score = &n
		}
		record.Extra = map[string]string{}
		if extraJSON.Valid && extraJSON.String != "" {
			if err := json.Unmarshal([]byte(extraJSON.String), &record.Extra); err != nil {
				return nil, fmt.Errorf("bad extra_json for %s: %w", record.URL, err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// recordID derives the stable primary key from a record's identity fields.
func recordID(record core.Record) string {
	raw := record.SourceID + "|" + record.ArchivedAt + "|" + record.URL
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
