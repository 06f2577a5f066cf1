// Package datarecording stores fired time events and lifecycle transitions
// in a SQLite database for offline inspection.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrInvalidEntry is returned when an entry cannot be stored as a table row.
var ErrInvalidEntry = errors.New("datarecording: invalid entry")

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns follow the exported
	// fields of sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables in lexical order.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

// New creates a DataRecorder backed by a new SQLite file at path. The
// ".sqlite3" suffix is appended when missing and an empty path gets a
// generated name. Buffered entries are flushed when the program exits
// through atexit.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "chrono_recording_" + xid.New().String()
	}
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("datarecording: file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datarecording: open %s: %w", path, err)
	}

	w := newWriter(db)
	w.path = path

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := newWriter(db)

	atexit.Register(func() { _ = w.Flush() })

	return w
}

func newWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}
}

type table struct {
	structType reflect.Type
	columns    []string
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	mu         sync.Mutex
	path       string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func columnsOf(entry any) (reflect.Type, []string, error) {
	typ := reflect.TypeOf(entry)
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("%w: %T is not a struct",
			ErrInvalidEntry, entry)
	}

	fields := structs.Fields(entry)
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		if !isAllowedKind(field.Kind()) {
			return nil, nil, fmt.Errorf("%w: field %s of %s",
				ErrInvalidEntry, field.Name(), typ)
		}

		columns = append(columns, field.Name())
	}

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no fields", ErrInvalidEntry, typ)
	}

	return typ, columns, nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	typ, columns, err := columnsOf(sampleEntry)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tables[tableName]; exists {
		return fmt.Errorf("datarecording: table %s already exists", tableName)
	}

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(columns, ", \n\t") + "\n" + `);`
	if _, err := t.Exec(createTableSQL); err != nil {
		return fmt.Errorf("datarecording: create table %s: %w", tableName, err)
	}

	t.tables[tableName] = &table{
		structType: typ,
		columns:    columns,
	}

	return nil
}

func (t *sqliteWriter) InsertData(tableName string, entry any) error {
	t.mu.Lock()

	tbl, exists := t.tables[tableName]
	if !exists {
		t.mu.Unlock()
		return fmt.Errorf("datarecording: table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != tbl.structType {
		t.mu.Unlock()
		return fmt.Errorf("%w: %T does not match table %s",
			ErrInvalidEntry, entry, tableName)
	}

	tbl.entries = append(tbl.entries, entry)
	t.entryCount++
	full := t.entryCount >= t.batchSize

	t.mu.Unlock()

	if full {
		return t.Flush()
	}

	return nil
}

func (t *sqliteWriter) ListTables() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	tables := make([]string, 0, len(t.tables))
	for name := range t.tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	return tables
}

func (t *sqliteWriter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entryCount == 0 || t.closed {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("datarecording: begin: %w", err)
	}

	for _, name := range t.sortedTableNames() {
		if err := t.flushTable(tx, name, t.tables[name]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datarecording: commit: %w", err)
	}

	for _, tbl := range t.tables {
		tbl.entries = nil
	}
	t.entryCount = 0

	return nil
}

func (t *sqliteWriter) sortedTableNames() []string {
	names := make([]string, 0, len(t.tables))
	for name := range t.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (t *sqliteWriter) flushTable(tx *sql.Tx, name string, tbl *table) error {
	if len(tbl.entries) == 0 {
		return nil
	}

	placeholders := make([]string, len(tbl.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	sqlStr := "INSERT INTO " + name +
		" VALUES (" + strings.Join(placeholders, ", ") + ")"

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		return fmt.Errorf("datarecording: prepare insert into %s: %w", name, err)
	}
	defer stmt.Close()

	for _, entry := range tbl.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("datarecording: insert into %s: %w", name, err)
		}
	}

	return nil
}

func (t *sqliteWriter) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.DB.Close()
}
