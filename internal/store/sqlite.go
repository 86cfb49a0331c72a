package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"strategy-mcp/internal/portfolio"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Entity kinds stored in the entities table.
const (
	kindMilestone    = "milestone"
	kindGoal         = "goal"
	kindConversation = "conversation"
	kindTrigger      = "trigger"
	kindReview       = "review"
)

// SQLiteStore keeps one row per entity with its JSON payload.
type SQLiteStore struct {
	DBPath string
	db     *sql.DB
}

// OpenSQLite opens or creates the snapshot database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure snapshot db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	s := &SQLiteStore{DBPath: absPath, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS entities (
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_position ON entities(kind, position);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// Load rebuilds the snapshot from stored rows in their saved order.
func (s *SQLiteStore) Load(ctx context.Context) (*portfolio.Snapshot, error) {
	snap := portfolio.NewSnapshot()

	meta, err := s.meta(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := meta["schema_version"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid schema_version %q: %w", v, err)
		}
		snap.SchemaVersion = n
	}
	if v, ok := meta["saved_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			snap.SavedAt = t
		}
	}
	if err := checkVersion(snap); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT kind, id, payload FROM entities ORDER BY kind, position")
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var kind, id, payload string
		if err := rows.Scan(&kind, &id, &payload); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if err := decodeInto(snap, kind, []byte(payload)); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	log.Debug().Str("path", s.DBPath).Int("milestones", len(snap.Milestones)).Int("goals", len(snap.Goals)).Msg("Loaded snapshot")
	return snap, nil
}

func decodeInto(snap *portfolio.Snapshot, kind string, payload []byte) error {
	switch kind {
	case kindMilestone:
		var v portfolio.Milestone
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		snap.Milestones = append(snap.Milestones, v)
	case kindGoal:
		var v portfolio.Goal
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		snap.Goals = append(snap.Goals, v)
	case kindConversation:
		var v portfolio.Conversation
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		snap.Conversations = append(snap.Conversations, v)
	case kindTrigger:
		var v portfolio.StrategyReviewTrigger
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		snap.Triggers = append(snap.Triggers, v)
	case kindReview:
		var v portfolio.StrategyReview
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		snap.Reviews = append(snap.Reviews, v)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}

func (s *SQLiteStore) meta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM snapshot_meta")
	if err != nil {
		return nil, fmt.Errorf("query snapshot meta: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan snapshot meta: %w", err)
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

// Save replaces every stored entity inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *portfolio.Snapshot) (err error) {
	stamp(snap)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM entities"); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO entities (kind, id, position, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	insert := func(kind, id string, pos int, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", kind, id, err)
		}
		if _, err := stmt.ExecContext(ctx, kind, id, pos, string(payload)); err != nil {
			return fmt.Errorf("insert %s %s: %w", kind, id, err)
		}
		return nil
	}

	for i, v := range snap.Milestones {
		if err = insert(kindMilestone, v.ID, i, v); err != nil {
			return err
		}
	}
	for i, v := range snap.Goals {
		if err = insert(kindGoal, v.ID, i, v); err != nil {
			return err
		}
	}
	for i, v := range snap.Conversations {
		if err = insert(kindConversation, v.ID, i, v); err != nil {
			return err
		}
	}
	for i, v := range snap.Triggers {
		if err = insert(kindTrigger, v.ID, i, v); err != nil {
			return err
		}
	}
	for i, v := range snap.Reviews {
		if err = insert(kindReview, v.ID, i, v); err != nil {
			return err
		}
	}

	for k, v := range map[string]string{
		"schema_version": strconv.Itoa(snap.SchemaVersion),
		"saved_at":       snap.SavedAt.Format(time.RFC3339Nano),
	} {
		if _, err = tx.ExecContext(ctx, "INSERT INTO snapshot_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", k, v); err != nil {
			return fmt.Errorf("write snapshot meta: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	log.Info().Str("path", s.DBPath).Int("milestones", len(snap.Milestones)).Int("goals", len(snap.Goals)).Msg("Snapshot saved")
	return nil
}
