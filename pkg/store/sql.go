package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	log "github.com/sirupsen/logrus"
)

type (
	// dialect holds the statements that differ between SQL engines
	dialect struct {
		name        string
		createTable string // %[1]s is the table name
		createIndex string // empty when createTable already indexes timestamp
		groupValue  string // expression extracting the JSON path bound as the first argument
	}

	// SQLRepository stores each collection as a table of JSON documents
	SQLRepository struct {
		db      *sql.DB
		dialect dialect
		timeout time.Duration
		log     *log.Logger

		mu      sync.Mutex
		ensured map[string]bool
	}
)

var (
	sqliteDialect = dialect{
		name: DriverSQLite,
		createTable: "CREATE TABLE IF NOT EXISTS %[1]s (" +
			"id TEXT NOT NULL PRIMARY KEY, " +
			"timestamp REAL NOT NULL, " +
			"doc TEXT NOT NULL)",
		createIndex: "CREATE INDEX IF NOT EXISTS %[1]s_timestamp ON %[1]s (timestamp)",
		groupValue:  "COALESCE(json_extract(doc, ?), '')",
	}

	mysqlDialect = dialect{
		name: DriverMySQL,
		createTable: "CREATE TABLE IF NOT EXISTS %[1]s (" +
			"id VARCHAR(36) NOT NULL PRIMARY KEY, " +
			"timestamp DOUBLE NOT NULL, " +
			"doc JSON NOT NULL, " +
			"INDEX %[1]s_timestamp (timestamp))",
		groupValue: "COALESCE(JSON_UNQUOTE(JSON_EXTRACT(doc, ?)), '')",
	}
)

// OpenSQLite opens (creating if needed) a sqlite database file. ":memory:"
// keeps the database in process.
func OpenSQLite(path string, timeout time.Duration, logger *log.Logger) (*SQLRepository, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection also keeps ":memory:" alive
	db.SetMaxOpenConns(1)

	if err := pingDB(db, timeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not open sqlite database %s: %w", path, err)
	}
	return newSQLRepository(db, sqliteDialect, timeout, logger), nil
}

// OpenMySQL connects to the MySQL server described by dsn
func OpenMySQL(dsn string, timeout time.Duration, logger *log.Logger) (*SQLRepository, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql data source: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = timeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = timeout
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)

	if err := pingDB(db, timeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to mysql at %s: %w", cfg.Addr, err)
	}
	return newSQLRepository(db, mysqlDialect, timeout, logger), nil
}

func newSQLRepository(db *sql.DB, d dialect, timeout time.Duration, logger *log.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: d,
		timeout: timeout,
		log:     logger,
		ensured: make(map[string]bool),
	}
}

func pingDB(db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return db.PingContext(ctx)
}

func (s *SQLRepository) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// ensureTable creates the table and its index the first time it is used
func (s *SQLRepository) ensureTable(table string) error {
	if err := validIdentifier("table", table); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[table] {
		return nil
	}

	ctx, cancel := s.context()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.dialect.createTable, table)); err != nil {
		return fmt.Errorf("could not create table %s: %w", table, err)
	}
	if s.dialect.createIndex != "" {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.dialect.createIndex, table)); err != nil {
			return fmt.Errorf("could not index table %s: %w", table, err)
		}
	}

	s.ensured[table] = true
	s.log.WithFields(log.Fields{
		"driver": s.dialect.name,
		"table":  table,
	}).Debug("Table ready")
	return nil
}

// CreateCollections creates a table for each name
func (s *SQLRepository) CreateCollections(names ...string) error {
	for _, name := range names {
		if err := s.ensureTable(name); err != nil {
			return err
		}
	}
	return nil
}

// Insert assigns doc an identity and writes it as a new row
func (s *SQLRepository) Insert(collection string, doc Document) error {
	if err := s.ensureTable(collection); err != nil {
		return err
	}

	doc.SetID(newID())
	id, timestamp, raw, err := encodeRow(doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.context()
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, timestamp, doc) VALUES (?, ?, ?)", collection),
		id, timestamp, raw,
	)
	return err
}

// ReplaceSingleton empties the table and inserts doc in one transaction
func (s *SQLRepository) ReplaceSingleton(collection string, doc Document) error {
	if err := s.ensureTable(collection); err != nil {
		return err
	}

	doc.SetID(newID())
	id, timestamp, raw, err := encodeRow(doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.context()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", collection)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, timestamp, doc) VALUES (?, ?, ?)", collection),
		id, timestamp, raw,
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// FindOne decodes a single row of the table into result
func (s *SQLRepository) FindOne(collection string, result interface{}) error {
	if err := s.ensureTable(collection); err != nil {
		return err
	}

	ctx, cancel := s.context()
	defer cancel()

	var raw []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT doc FROM %s LIMIT 1", collection)).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

// Recent decodes up to limit rows ordered by timestamp, newest first
func (s *SQLRepository) Recent(collection string, limit int, result interface{}) error {
	if err := s.ensureTable(collection); err != nil {
		return err
	}

	ctx, cancel := s.context()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT doc FROM %s ORDER BY timestamp DESC LIMIT ?", collection),
		limit,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(raw)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), result)
}

// GroupCount counts rows per value of the JSON field
func (s *SQLRepository) GroupCount(collection, field string, limit int) ([]GroupCount, error) {
	if err := validIdentifier("field", field); err != nil {
		return nil, err
	}
	if err := s.ensureTable(collection); err != nil {
		return nil, err
	}

	ctx, cancel := s.context()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s AS value, COUNT(*) AS count FROM %s GROUP BY value",
			s.dialect.groupValue, collection),
		"$."+field,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []GroupCount
	for rows.Next() {
		var group GroupCount
		if err := rows.Scan(&group.Value, &group.Count); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortGroups(groups, limit), nil
}

// DeleteBefore deletes rows older than timestamp
func (s *SQLRepository) DeleteBefore(collection string, timestamp float64) (int, error) {
	if err := s.ensureTable(collection); err != nil {
		return 0, err
	}

	ctx, cancel := s.context()
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", collection),
		timestamp,
	)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

// Close closes the connection pool
func (s *SQLRepository) Close() {
	if err := s.db.Close(); err != nil {
		s.log.WithFields(log.Fields{
			"driver": s.dialect.name,
			"error":  err.Error(),
		}).Error("Failed to close database")
	}
}

// encodeRow serializes doc and extracts the columns stored beside it
func encodeRow(doc Document) (string, float64, []byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", 0, nil, err
	}

	var columns struct {
		ID        string  `json:"_id"`
		Timestamp float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &columns); err != nil {
		return "", 0, nil, err
	}
	return columns.ID, columns.Timestamp, raw, nil
}
