package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store is the append-only match-result log shared across variants. It
// backs partial-completion resumption by schedule index; metrics.json in
// each workspace remains the published artifact.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the results database and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS match_results (
			battle_id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			variant TEXT NOT NULL,
			idx INTEGER NOT NULL,
			kind TEXT NOT NULL,
			baseline_id TEXT DEFAULT '',
			seed INTEGER NOT NULL,
			config_hash TEXT NOT NULL,
			abort_reason TEXT DEFAULT '',
			recorded_at TIMESTAMP NOT NULL,
			payload TEXT NOT NULL,
			UNIQUE(model, variant, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_match_results_variant
			ON match_results(model, variant, idx);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrating results store: %w", err)
		}
	}
	return tx.Commit()
}

// Append records one match result. The (model, variant, index) slot is
// write-once; re-running a slot within the same variant is a caller bug
// and surfaces as a constraint error.
func (s *Store) Append(ctx context.Context, modelID, variantID string, m *MatchResult) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling match result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_results
			(battle_id, model, variant, idx, kind, baseline_id, seed, config_hash, abort_reason, recorded_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.BattleID, modelID, variantID, m.Index, m.Kind, m.BaselineID,
		m.Seed, m.ConfigHash, m.AbortReason, time.Now().UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("appending match result: %w", err)
	}
	return nil
}

// CompletedIndexes reports which schedule slots already hold a result for
// the variant.
func (s *Store) CompletedIndexes(ctx context.Context, modelID, variantID string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx FROM match_results WHERE model = ? AND variant = ?`, modelID, variantID)
	if err != nil {
		return nil, fmt.Errorf("querying completed indexes: %w", err)
	}
	defer rows.Close()
	out := map[int]bool{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		out[idx] = true
	}
	return out, rows.Err()
}

// Matches returns the variant's stored results in schedule order.
func (s *Store) Matches(ctx context.Context, modelID, variantID string) ([]MatchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM match_results WHERE model = ? AND variant = ? ORDER BY idx`,
		modelID, variantID)
	if err != nil {
		return nil, fmt.Errorf("querying match results: %w", err)
	}
	defer rows.Close()
	var out []MatchResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m MatchResult
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decoding stored match result: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
