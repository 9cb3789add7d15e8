package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var errNilTurn = errors.New("cannot store nil turn")

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query         TEXT    NOT NULL,
	answer        TEXT    NOT NULL,
	citations     TEXT    NOT NULL DEFAULT '[]',
	total_time_ms INTEGER NOT NULL DEFAULT 0,
	interrupted   INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);
`

// SQLiteStore persists turns in a SQLite database. Use ":memory:" for
// an in-memory database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Put stores a turn and returns the assigned row id.
func (s *SQLiteStore) Put(ctx context.Context, turn *Turn) (int64, error) {
	if turn == nil {
		return 0, errNilTurn
	}

	citations, err := json.Marshal(turn.Citations)
	if err != nil {
		return 0, fmt.Errorf("marshaling citations: %w", err)
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (query, answer, citations, total_time_ms, interrupted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.Query, turn.Answer, string(citations), turn.TotalTimeMs, turn.Interrupted, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	turn.ID = id
	turn.CreatedAt = createdAt
	return id, nil
}

// Get retrieves a turn by id. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Turn, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, answer, citations, total_time_ms, interrupted, created_at
		 FROM turns WHERE id = ?`, id)

	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying turn: %w", err)
	}
	return turn, nil
}

// List returns all turns, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, answer, citations, total_time_ms, interrupted, created_at
		 FROM turns ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns := make([]*Turn, 0)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(r rowScanner) (*Turn, error) {
	var (
		turn      Turn
		citations string
	)
	if err := r.Scan(&turn.ID, &turn.Query, &turn.Answer, &citations,
		&turn.TotalTimeMs, &turn.Interrupted, &turn.CreatedAt); err != nil {
		return nil, err
	}
	if citations != "" && citations != "[]" {
		if err := json.Unmarshal([]byte(citations), &turn.Citations); err != nil {
			return nil, fmt.Errorf("unmarshaling citations: %w", err)
		}
	}
	return &turn, nil
}
