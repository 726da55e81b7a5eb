// Package catalog is the authoritative catalog store: entities, their
// properties, outlines and priority links, plus the append-only change log
// that drives incremental index builds.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sha1n/mcp-catalog-search/internal/catalog/migrations"
	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// Store is a SQLite-backed catalog.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp entities and change-log entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens (creating if needed) the catalog database at path.
func NewStore(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", domain.ErrInvalidArgument)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL for concurrent readers during builds; foreign keys for cascades
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Writes ====================

// Save inserts or replaces an entity with all of its parts and appends a
// Created or Modified change-log entry stamped with the store clock. A zero
// CreatedAt, or a nil ModifiedAt on update, is filled in on e.
func (s *Store) Save(ctx context.Context, e *domain.Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: entity id is empty", domain.ErrInvalidArgument)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: entity %q has no kind", domain.ErrInvalidArgument, e.ID)
	}

	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE id = ?", e.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking entity: %w", err)
	}
	op := domain.EntryCreated
	if exists > 0 {
		op = domain.EntryModified
		if e.ModifiedAt == nil {
			e.ModifiedAt = &now
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, kind, name, code, is_active, priority, created_at, modified_at, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			code = excluded.code,
			is_active = excluded.is_active,
			priority = excluded.priority,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`, e.ID, string(e.Kind), e.Name, e.Code, boolToInt(e.IsActive), e.Priority,
		formatTime(e.CreatedAt), nullTime(e.ModifiedAt), nullTime(e.StartDate), nullTime(e.EndDate))
	if err != nil {
		return fmt.Errorf("saving entity: %w", err)
	}

	if err := saveParts(ctx, tx, e); err != nil {
		return err
	}
	if err := appendChange(ctx, tx, e.Kind, e.ID, op, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entity: %w", err)
	}
	return nil
}

func saveParts(ctx context.Context, tx *sql.Tx, e *domain.Entity) error {
	for _, table := range []string{"properties", "property_values", "outlines", "links"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE entity_id = ?", e.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for i, p := range e.Properties {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO properties (entity_id, position, name, value_type, multilingual) VALUES (?, ?, ?, ?, ?)",
			e.ID, i, p.Name, string(p.ValueType), boolToInt(p.Multilingual))
		if err != nil {
			return fmt.Errorf("saving property %s: %w", p.Name, err)
		}
	}

	for i, pv := range e.PropertyValues {
		value, err := encodeValue(pv)
		if err != nil {
			return fmt.Errorf("encoding property value %s: %w", pv.PropertyName, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO property_values (entity_id, position, property_name, value_type, language_code, value) VALUES (?, ?, ?, ?, ?, ?)",
			e.ID, i, pv.PropertyName, string(pv.ValueType), pv.LanguageCode, value)
		if err != nil {
			return fmt.Errorf("saving property value %s: %w", pv.PropertyName, err)
		}
	}

	for i, o := range e.Outlines {
		items, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("encoding outline: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO outlines (entity_id, position, root, items) VALUES (?, ?, ?, ?)",
			e.ID, i, o.Root(), string(items))
		if err != nil {
			return fmt.Errorf("saving outline: %w", err)
		}
	}

	for i, l := range e.Links {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO links (entity_id, position, catalog_id, category_id, priority) VALUES (?, ?, ?, ?, ?)",
			e.ID, i, l.CatalogID, l.CategoryID, l.Priority)
		if err != nil {
			return fmt.Errorf("saving link: %w", err)
		}
	}
	return nil
}

// Delete removes an entity and appends a Deleted change-log entry.
// Returns domain.ErrNotFound if the entity does not exist.
func (s *Store) Delete(ctx context.Context, kind domain.EntityKind, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE id = ? AND kind = ?", id, string(kind))
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, domain.ErrNotFound)
	}

	if err := appendChange(ctx, tx, kind, id, domain.EntryDeleted, s.now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func appendChange(ctx context.Context, tx *sql.Tx, kind domain.EntityKind, id string, op domain.EntryState, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO change_log (object_type, object_id, operation, modified_at) VALUES (?, ?, ?, ?)",
		string(kind), id, string(op), formatTime(at))
	if err != nil {
		return fmt.Errorf("appending change log: %w", err)
	}
	return nil
}

// ==================== Reads ====================

// GetByIDs loads entities of kind by id (case-insensitive). Unknown ids are
// skipped and the order of the result is unspecified. A non-empty scopeHint
// only resolves entities with an outline rooted at that catalog.
func (s *Store) GetByIDs(ctx context.Context, kind domain.EntityKind, ids []string, group domain.ResponseGroup, scopeHint string) ([]domain.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, kind, name, code, is_active, priority, created_at, modified_at, start_date, end_date
		FROM entities WHERE kind = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(kind))
	for _, id := range ids {
		args = append(args, id)
	}
	if scopeHint != "" {
		query += " AND EXISTS (SELECT 1 FROM outlines o WHERE o.entity_id = entities.id AND o.root = ?)"
		args = append(args, scopeHint)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	for i := range entities {
		if err := s.loadParts(ctx, &entities[i], group); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// ListIDs pages through the ids of kind in creation order and returns the total count.
func (s *Store) ListIDs(ctx context.Context, kind domain.EntityKind, skip, take int) ([]string, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE kind = ?", string(kind)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting entities: %w", err)
	}
	if take <= 0 || skip >= total {
		return nil, total, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM entities WHERE kind = ? ORDER BY created_at, id LIMIT ? OFFSET ?",
		string(kind), take, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("listing entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating ids: %w", err)
	}
	return ids, total, nil
}

// FindHistory returns change-log entries of kind in [start, end), in log
// order. A zero end means no upper bound.
func (s *Store) FindHistory(ctx context.Context, kind domain.EntityKind, start, end time.Time) ([]domain.ChangeLogEntry, error) {
	query := "SELECT object_type, object_id, operation, modified_at FROM change_log WHERE object_type = ? AND modified_at >= ?"
	args := []any{string(kind), formatTime(start)}
	if !end.IsZero() {
		query += " AND modified_at < ?"
		args = append(args, formatTime(end))
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.ChangeLogEntry
	for rows.Next() {
		var objectType, op, at string
		var entry domain.ChangeLogEntry
		if err := rows.Scan(&objectType, &entry.ObjectID, &op, &at); err != nil {
			return nil, fmt.Errorf("scanning change log: %w", err)
		}
		entry.ObjectType = domain.EntityKind(objectType)
		entry.Operation = domain.EntryState(op)
		if entry.ModifiedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change log: %w", err)
	}
	return entries, nil
}

func (s *Store) loadParts(ctx context.Context, e *domain.Entity, group domain.ResponseGroup) error {
	if group.Has(domain.WithProperties) {
		if err := s.loadProperties(ctx, e); err != nil {
			return err
		}
	}
	if group.Has(domain.WithOutlines) {
		if err := s.loadOutlines(ctx, e); err != nil {
			return err
		}
	}
	if group.Has(domain.WithLinks) {
		if err := s.loadLinks(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadProperties(ctx context.Context, e *domain.Entity) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value_type, multilingual FROM properties WHERE entity_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("querying properties: %w", err)
	}
	for rows.Next() {
		var p domain.Property
		var valueType string
		var multilingual int
		if err := rows.Scan(&p.Name, &valueType, &multilingual); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning property: %w", err)
		}
		p.ValueType = domain.ValueType(valueType)
		p.Multilingual = multilingual != 0
		e.Properties = append(e.Properties, p)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT property_name, value_type, language_code, value FROM property_values WHERE entity_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("querying property values: %w", err)
	}
	for rows.Next() {
		var pv domain.PropertyValue
		var valueType, raw string
		if err := rows.Scan(&pv.PropertyName, &valueType, &pv.LanguageCode, &raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning property value: %w", err)
		}
		pv.ValueType = domain.ValueType(valueType)
		if pv.Value, err = decodeValue(pv.ValueType, raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("decoding property value %s: %w", pv.PropertyName, err)
		}
		e.PropertyValues = append(e.PropertyValues, pv)
	}
	return closeRows(rows)
}

func (s *Store) loadOutlines(ctx context.Context, e *domain.Entity) error {
	rows, err := s.db.QueryContext(ctx, "SELECT items FROM outlines WHERE entity_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("querying outlines: %w", err)
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning outline: %w", err)
		}
		var o domain.Outline
		if err := json.Unmarshal([]byte(raw), &o.Items); err != nil {
			_ = rows.Close()
			return fmt.Errorf("decoding outline: %w", err)
		}
		e.Outlines = append(e.Outlines, o)
	}
	return closeRows(rows)
}

func (s *Store) loadLinks(ctx context.Context, e *domain.Entity) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT catalog_id, category_id, priority FROM links WHERE entity_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("querying links: %w", err)
	}
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.CatalogID, &l.CategoryID, &l.Priority); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning link: %w", err)
		}
		e.Links = append(e.Links, l)
	}
	return closeRows(rows)
}

// ==================== Helpers ====================

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (domain.Entity, error) {
	var e domain.Entity
	var kind, createdAt string
	var isActive int
	var modifiedAt, startDate, endDate sql.NullString
	if err := row.Scan(&e.ID, &kind, &e.Name, &e.Code, &isActive, &e.Priority, &createdAt, &modifiedAt, &startDate, &endDate); err != nil {
		return e, fmt.Errorf("scanning entity: %w", err)
	}
	e.Kind = domain.EntityKind(kind)
	e.IsActive = isActive != 0

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	if e.ModifiedAt, err = parseNullTime(modifiedAt); err != nil {
		return e, err
	}
	if e.StartDate, err = parseNullTime(startDate); err != nil {
		return e, err
	}
	if e.EndDate, err = parseNullTime(endDate); err != nil {
		return e, err
	}
	return e, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterating rows: %w", err)
	}
	return rows.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// formatTime renders times with a fixed width so SQL string comparison
// follows chronological order.
func formatTime(t time.Time) string {
	return domain.FormatIndexTime(t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(domain.IndexTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeValue stores property values as JSON; dates use the fixed-width layout.
func encodeValue(pv domain.PropertyValue) (string, error) {
	v := pv.Value
	if t, ok := v.(time.Time); ok {
		v = formatTime(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeValue(valueType domain.ValueType, raw string) (any, error) {
	switch valueType {
	case domain.ValueNumber:
		var n float64
		err := json.Unmarshal([]byte(raw), &n)
		return n, err
	case domain.ValueBoolean:
		var b bool
		err := json.Unmarshal([]byte(raw), &b)
		return b, err
	case domain.ValueDateTime:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		t, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("expected text value: %w", err)
		}
		return s, nil
	}
}
