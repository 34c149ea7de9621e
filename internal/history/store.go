// Package history keeps a local SQLite log of solving attempts: which
// problem was seen, how it was interpreted, which values were resolved, and
// what answer was submitted. It never stores resolver cache entries.
//
// Interpretations are stored in RFC 8785 canonical form together with a
// SHA-256 digest, so identical interpretations of different problems can be
// grouped with a plain equality query.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gowebpki/jcs"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/scrypster/galacticalc/pkg/types"
)

// ErrInvalidAttempt is returned by Record for attempts missing required fields.
var ErrInvalidAttempt = errors.New("invalid attempt")

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id            TEXT NOT NULL,
	problem_id            TEXT NOT NULL,
	problem_text          TEXT NOT NULL,
	interpretation        TEXT,
	interpretation_digest TEXT,
	values_json           TEXT,
	answer                REAL NOT NULL,
	outcome               TEXT NOT NULL,
	error                 TEXT,
	duration_ms           INTEGER NOT NULL,
	created_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);
CREATE INDEX IF NOT EXISTS idx_attempts_digest ON attempts(interpretation_digest);
`

// Store is a SQLite-backed attempt log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the attempt log at dsn. Use ":memory:" for
// an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends an attempt to the log.
func (s *Store) Record(ctx context.Context, a types.Attempt) error {
	if a.SessionID == "" || a.ProblemID == "" {
		return fmt.Errorf("%w: session and problem id are required", ErrInvalidAttempt)
	}
	if a.Outcome == "" {
		return fmt.Errorf("%w: outcome is required", ErrInvalidAttempt)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var interp, digest sql.NullString
	if a.Interpretation != nil {
		canonical, sum, err := Canonicalize(a.Interpretation)
		if err != nil {
			return err
		}
		interp = sql.NullString{String: string(canonical), Valid: true}
		digest = sql.NullString{String: sum, Valid: true}
	}

	var values sql.NullString
	if len(a.Values) > 0 {
		raw, err := json.Marshal(a.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal values: %w", err)
		}
		values = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (
			session_id, problem_id, problem_text, interpretation, interpretation_digest,
			values_json, answer, outcome, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.ProblemID, a.ProblemText, interp, digest,
		values, a.Answer, string(a.Outcome), nullString(a.Error), a.Duration.Milliseconds(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// List returns the attempts of a session in insertion order. An empty
// sessionID lists every attempt.
func (s *Store) List(ctx context.Context, sessionID string) ([]types.Attempt, error) {
	query := `
		SELECT session_id, problem_id, problem_text, interpretation, values_json,
			answer, outcome, error, duration_ms, created_at
		FROM attempts`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []types.Attempt
	for rows.Next() {
		var (
			a          types.Attempt
			interp     sql.NullString
			values     sql.NullString
			outcome    string
			errText    sql.NullString
			durationMs int64
		)
		if err := rows.Scan(&a.SessionID, &a.ProblemID, &a.ProblemText, &interp, &values,
			&a.Answer, &outcome, &errText, &durationMs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Outcome = types.Outcome(outcome)
		a.Error = errText.String
		a.Duration = time.Duration(durationMs) * time.Millisecond

		if interp.Valid {
			a.Interpretation = &types.Interpretation{}
			if err := json.Unmarshal([]byte(interp.String), a.Interpretation); err != nil {
				return nil, fmt.Errorf("failed to decode interpretation: %w", err)
			}
		}
		if values.Valid {
			if err := json.Unmarshal([]byte(values.String), &a.Values); err != nil {
				return nil, fmt.Errorf("failed to decode values: %w", err)
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountByDigest returns how many recorded attempts share the interpretation
// digest.
func (s *Store) CountByDigest(ctx context.Context, digest string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attempts WHERE interpretation_digest = ?", digest).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("history: WAL checkpoint on close failed (non-fatal): %v", err)
	}
	return s.db.Close()
}

// Canonicalize returns the RFC 8785 canonical JSON of an interpretation and
// its hex SHA-256 digest.
func Canonicalize(interp *types.Interpretation) ([]byte, string, error) {
	raw, err := json.Marshal(interp)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal interpretation: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to canonicalize interpretation: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
