package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"noteboard/internal/models"
	"noteboard/internal/store"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// DBType represents the type of database
type DBType string

const (
	SQLite   DBType = "sqlite3"
	Postgres DBType = "postgres"
)

const noteColumns = "id, content, color, sort_order, created_at"

// SQLStore implements the Store interface for SQL databases
type SQLStore struct {
	db     *sql.DB
	dbType DBType
}

var _ store.Store = (*SQLStore)(nil)

// New creates a new SQLStore with the given driver and connection string
func New(driver, connStr string) (*SQLStore, error) {
	dbType := DBType(driver)
	if dbType != SQLite && dbType != Postgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, err
	}

	if dbType == SQLite {
		// SQLite allows a single writer, and every connection to ":memory:"
		// opens a fresh database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{
		db:     db,
		dbType: dbType,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dbType == SQLite {
		return query
	}
	var result strings.Builder
	argNum := 1
	for _, c := range query {
		if c == '?' {
			result.WriteString(fmt.Sprintf("$%d", argNum))
			argNum++
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

func (s *SQLStore) initSchema() error {
	var createNotesTable string

	if s.dbType == Postgres {
		createNotesTable = `
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT 'default'
				CHECK (color IN ('default', 'red', 'blue', 'yellow')),
			sort_order BIGINT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL
		);`
	} else {
		createNotesTable = `
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT 'default'
				CHECK (color IN ('default', 'red', 'blue', 'yellow')),
			sort_order INTEGER NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);`
	}

	_, err := s.db.Exec(createNotesTable)
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// translate maps driver errors onto store sentinels.
func (s *SQLStore) translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrOrderConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (models.Note, error) {
	var n models.Note
	var color string
	if err := row.Scan(&n.ID, &n.Content, &color, &n.Order, &n.CreatedAt); err != nil {
		return models.Note{}, err
	}
	n.Color = models.Color(color)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

// Note functions
func (s *SQLStore) ListNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+noteColumns+" FROM notes ORDER BY sort_order ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *SQLStore) GetNote(ctx context.Context, id string) (models.Note, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+noteColumns+" FROM notes WHERE id = ?"), id)
	n, err := scanNote(row)
	if err != nil {
		return models.Note{}, s.translate(err)
	}
	return n, nil
}

func (s *SQLStore) AppendNote(ctx context.Context, n models.Note) (models.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Note{}, err
	}
	defer tx.Rollback()

	var maxOrder int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), 0) FROM notes").Scan(&maxOrder); err != nil {
		return models.Note{}, err
	}
	if maxOrder >= models.MaxOrder {
		return models.Note{}, fmt.Errorf("%w: no order value left after %d", store.ErrOrderConflict, maxOrder)
	}
	n.Order = maxOrder + 1

	if err := s.insert(ctx, tx, n); err != nil {
		return models.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Note{}, s.translate(err)
	}
	return n, nil
}

func (s *SQLStore) CreateNote(ctx context.Context, n models.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.insert(ctx, tx, n); err != nil {
		return err
	}
	return s.translate(tx.Commit())
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, n models.Note) error {
	_, err := tx.ExecContext(ctx,
		s.rebind("INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?)"),
		n.ID, n.Content, string(n.Color), n.Order, n.CreatedAt.UTC())
	return s.translate(err)
}

func (s *SQLStore) UpdateNote(ctx context.Context, n models.Note) error {
	result, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE notes SET content = ?, color = ?, sort_order = ? WHERE id = ?"),
		n.Content, string(n.Color), n.Order, n.ID)
	if err != nil {
		return s.translate(err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM notes WHERE id = ?"), id)
	if err != nil {
		return err
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ApplyOrders writes all assignments inside one transaction. SQLite checks
// UNIQUE per statement, so every affected note is first parked below the
// current minimum order before receiving its final value; a direct swap
// would otherwise collide halfway through.
func (s *SQLStore) ApplyOrders(ctx context.Context, assignments []models.OrderAssignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var minOrder int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MIN(sort_order), 0) FROM notes").Scan(&minOrder); err != nil {
		return 0, err
	}
	park := min(minOrder, 0) - 1

	setOrder := s.rebind("UPDATE notes SET sort_order = ? WHERE id = ?")
	for i, a := range assignments {
		result, err := tx.ExecContext(ctx, setOrder, park-int64(i), a.ID)
		if err != nil {
			return 0, s.translate(err)
		}
		if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
			return 0, fmt.Errorf("%w: %s", store.ErrNotFound, a.ID)
		}
	}
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, setOrder, a.Order, a.ID); err != nil {
			return 0, s.translate(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.translate(err)
	}
	return len(assignments), nil
}
