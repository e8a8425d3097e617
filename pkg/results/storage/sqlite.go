package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"

	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
)

const backendSQLite = "sqlite"

// defaultQueryLimit bounds queries that set no limit.
const defaultQueryLimit = 100

// SQLiteStore implements results.Store on SQLite. Either the cgo driver
// (mattn/go-sqlite3, "sqlite3") or the pure Go one (modernc, "sqlite") can
// back it.
type SQLiteStore struct {
	db     *sql.DB
	config config.SQLiteConfig
	closed atomic.Bool
	logger *slog.Logger
}

// NewSQLiteStore opens the database at cfg.Path, applies pragmas and creates
// the schema. A nil logger uses slog.Default().
func NewSQLiteStore(cfg config.SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "results.storage.sqlite")

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, results.NewStorageError(backendSQLite, "open", err)
		}
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, results.NewStorageError(backendSQLite, "open", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite result store initialized",
		"path", cfg.Path,
		"driver", driver,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return results.NewStorageError(backendSQLite, "enable_wal", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return results.NewStorageError(backendSQLite, "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return results.NewStorageError(backendSQLite, "create_schema", err)
	}
	if err := s.migrate(); err != nil {
		return err
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return results.NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return results.NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return results.NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// migrate brings a version 1 database up to the current schema.
func (s *SQLiteStore) migrate() error {
	var n int
	if err := s.db.QueryRow(HasCacheKeyColumn).Scan(&n); err != nil {
		return results.NewStorageError(backendSQLite, "migrate", err)
	}
	if n == 0 {
		if _, err := s.db.Exec(AddCacheKeyColumn); err != nil {
			return results.NewStorageError(backendSQLite, "migrate", err)
		}
		s.logger.Info("results schema upgraded", "version", SchemaVersion)
	}
	if _, err := s.db.Exec(CacheKeyIndex); err != nil {
		return results.NewStorageError(backendSQLite, "migrate", err)
	}
	return nil
}

// Put inserts a record. Records are immutable; putting an existing id fails.
func (s *SQLiteStore) Put(ctx context.Context, record *results.Record) error {
	if s.closed.Load() {
		return results.NewStorageError(backendSQLite, "put", results.ErrClosed)
	}

	fired, err := json.Marshal(nonNilFired(record.Fired))
	if err != nil {
		return results.NewStorageError(backendSQLite, "put", err)
	}
	intentions, err := json.Marshal(nonNilStrings(record.Intentions))
	if err != nil {
		return results.NewStorageError(backendSQLite, "put", err)
	}

	var errVal interface{}
	if record.Error != "" {
		errVal = record.Error
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (
			id, run_id, scene_id, fingerprint, cache_key,
			fired, rule_ids, intentions, defaulted, overridden,
			error, evaluated_at, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.RunID, record.SceneID, record.Fingerprint, record.CacheKey,
		string(fired), ruleIDList(record.Fired), string(intentions), record.Defaulted, record.Overridden,
		errVal, record.EvaluatedAt.UnixNano(), int64(record.Duration),
	)
	if err != nil {
		return results.NewStorageError(backendSQLite, "put", err)
	}
	return nil
}

// Latest returns the newest successful record for the scene and cache key.
func (s *SQLiteStore) Latest(ctx context.Context, sceneID, cacheKey string) (*results.Record, error) {
	if s.closed.Load() {
		return nil, results.NewStorageError(backendSQLite, "latest", results.ErrClosed)
	}
	if cacheKey == "" {
		return nil, results.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+` FROM results
		WHERE scene_id = ? AND cache_key = ? AND error IS NULL
		ORDER BY evaluated_at DESC LIMIT 1`,
		sceneID, cacheKey,
	)
	if err != nil {
		return nil, results.NewStorageError(backendSQLite, "latest", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, results.NewStorageError(backendSQLite, "latest", err)
		}
		return nil, results.ErrNotFound
	}
	record, err := scanRow(rows)
	if err != nil {
		return nil, results.NewStorageError(backendSQLite, "scan", err)
	}
	return record, nil
}

// Query retrieves records matching q, newest first unless q.SortOrder is
// "asc". A zero limit returns at most 100 records.
func (s *SQLiteStore) Query(ctx context.Context, q *results.Query) ([]*results.Record, error) {
	if s.closed.Load() {
		return nil, results.NewStorageError(backendSQLite, "query", results.ErrClosed)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM results"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if q.SortOrder == "asc" {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY evaluated_at %s, id %s", order, order)

	limit := defaultQueryLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, results.NewStorageError(backendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*results.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, results.NewStorageError(backendSQLite, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, results.NewStorageError(backendSQLite, "query", err)
	}

	return records, nil
}

// Count returns the number of records matching q. Pagination is ignored.
func (s *SQLiteStore) Count(ctx context.Context, q *results.Query) (int64, error) {
	if s.closed.Load() {
		return 0, results.NewStorageError(backendSQLite, "count", results.ErrClosed)
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	where, args := buildWhereClause(q)
	sqlQuery := "SELECT COUNT(*) FROM results"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, results.NewStorageError(backendSQLite, "count", err)
	}
	return count, nil
}

// Delete removes records matching q. Pagination is ignored.
func (s *SQLiteStore) Delete(ctx context.Context, q *results.Query) (int64, error) {
	if s.closed.Load() {
		return 0, results.NewStorageError(backendSQLite, "delete", results.ErrClosed)
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	where, args := buildWhereClause(q)
	sqlQuery := "DELETE FROM results"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	res, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, results.NewStorageError(backendSQLite, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, results.NewStorageError(backendSQLite, "delete", err)
	}

	s.logger.Debug("deleted results", "count", n)
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return results.NewStorageError(backendSQLite, "ping", results.ErrClosed)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return results.NewStorageError(backendSQLite, "ping", err)
	}
	return nil
}

// Close closes the database. Further calls fail with results.ErrClosed.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return results.NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Info("SQLite result store closed")
	return nil
}

// buildWhereClause builds a WHERE clause (without the keyword) and its
// arguments from the query filters.
func buildWhereClause(q *results.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if q.StartTime != nil {
		conditions = append(conditions, "evaluated_at >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "evaluated_at <= ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.SceneID != "" {
		conditions = append(conditions, "scene_id = ?")
		args = append(args, q.SceneID)
	}
	if q.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, q.RunID)
	}
	if q.Fingerprint != "" {
		conditions = append(conditions, "fingerprint = ?")
		args = append(args, q.Fingerprint)
	}
	if q.RuleID != nil {
		conditions = append(conditions, "rule_ids LIKE ?")
		args = append(args, "%,"+strconv.Itoa(*q.RuleID)+",%")
	}

	switch q.Status {
	case results.StatusSuccess:
		conditions = append(conditions, "error IS NULL")
	case results.StatusError:
		conditions = append(conditions, "error IS NOT NULL")
	}

	return strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*results.Record, error) {
	var (
		record      results.Record
		fired       string
		intentions  string
		errVal      sql.NullString
		evaluatedAt int64
		duration    int64
	)

	err := rows.Scan(
		&record.ID, &record.RunID, &record.SceneID, &record.Fingerprint, &record.CacheKey,
		&fired, &intentions,
		&record.Defaulted, &record.Overridden,
		&errVal, &evaluatedAt, &duration,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fired), &record.Fired); err != nil {
		return nil, fmt.Errorf("decode fired: %w", err)
	}
	if err := json.Unmarshal([]byte(intentions), &record.Intentions); err != nil {
		return nil, fmt.Errorf("decode intentions: %w", err)
	}
	if errVal.Valid {
		record.Error = errVal.String
	}
	record.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	record.Duration = time.Duration(duration)

	return &record, nil
}

func ruleIDList(fired []engine.FiredRule) string {
	if len(fired) == 0 {
		return ","
	}
	var b strings.Builder
	b.WriteByte(',')
	for _, f := range fired {
		b.WriteString(strconv.Itoa(f.RuleID))
		b.WriteByte(',')
	}
	return b.String()
}

func nonNilFired(f []engine.FiredRule) []engine.FiredRule {
	if f == nil {
		return []engine.FiredRule{}
	}
	return f
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
