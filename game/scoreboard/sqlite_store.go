package scoreboard

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/wricardo/mcp-training/robotcrusher/game/auth"
)

// SQLiteStore keeps results and player accounts in a SQLite database
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens or creates the database at path. Use ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		pass_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		player TEXT NOT NULL,
		rules TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL DEFAULT 0,
		ended_at INTEGER NOT NULL DEFAULT 0,
		UNIQUE (match_id, started_at)
	);

	CREATE INDEX IF NOT EXISTS idx_results_rank ON results(level DESC, kills DESC, ended_at ASC);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		log.WithError(err).Error("database migration failed")
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Record inserts the result. Match ids are reused once a match is gone, so a result
// only replaces one with the same match id and start time.
func (s *SQLiteStore) Record(ctx context.Context, result Result) error {
	if err := validate(result); err != nil {
		return err
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (match_id, player, rules, level, kills, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(result.MatchID), result.Player, result.Rules, result.Level, result.Kills,
		result.StartedAt.UnixMilli(), result.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// Top returns the best results in leaderboard order
func (s *SQLiteStore) Top(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT match_id, player, rules, level, kills, started_at, ended_at
		FROM results ORDER BY level DESC, kills DESC, ended_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var started, ended int64
		if err := rows.Scan(&r.MatchID, &r.Player, &r.Rules, &r.Level, &r.Kills, &started, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.EndedAt = time.UnixMilli(ended).UTC()
		r.Rank = len(results) + 1
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetAccount implements auth.AccountStore
func (s *SQLiteStore) GetAccount(ctx context.Context, username string) (*auth.Account, error) {
	var a auth.Account
	var created int64
	err := s.conn.QueryRowContext(ctx,
		"SELECT username, pass_hash, created_at FROM accounts WHERE username = ?",
		strings.ToLower(username),
	).Scan(&a.Username, &a.PassHash, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	a.CreatedAt = time.UnixMilli(created).UTC()
	return &a, nil
}

// CreateAccount implements auth.AccountStore
func (s *SQLiteStore) CreateAccount(ctx context.Context, account auth.Account) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO accounts (username, pass_hash, created_at) VALUES (?, ?, ?)",
		strings.ToLower(account.Username), account.PassHash, account.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
