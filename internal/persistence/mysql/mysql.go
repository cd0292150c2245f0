// Package mysql implements persistence.QuestPersistence over MySQL, using
// database/sql with github.com/go-sql-driver/mysql exactly as the teacher's
// internal/database.Connection does — a DSN built from config, a *sql.DB,
// and one method per query — but the schema here is quest-shaped rather
// than account-shaped: a single quest_state table keyed by
// (character_id, quest_id).
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"nexuscore/internal/session"
)

// Config mirrors the teacher's database.DatabaseConfig shape.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// Store is a QuestPersistence adapter backed by MySQL.
type Store struct {
	db *sql.DB
}

// Open builds the DSN the same way the teacher's NewConnection does and
// verifies connectivity with a Ping before returning.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// PersistDirty writes every active quest for characterID when the session's
// QuestDirty flag is set, and returns how many rows were upserted, plus a
// session with QuestDirty cleared.
func (s *Store) PersistDirty(ctx context.Context, characterID uint64, sess session.Session) (int, session.Session, error) {
	if !sess.QuestDirty || len(sess.ActiveQuests) == 0 {
		next := sess.Clone()
		next.QuestDirty = false
		return 0, next, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, sess, fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO quest_state (character_id, quest_id, progress, stage)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE progress = VALUES(progress), stage = VALUES(stage)`

	count := 0
	for _, q := range sess.ActiveQuests {
		if _, err := tx.ExecContext(ctx, upsert, characterID, q.ID, q.Progress, q.Stage); err != nil {
			return 0, sess, fmt.Errorf("mysql: upsert quest %d: %w", q.ID, err)
		}
		count++
	}

	if len(sess.CompletedQuestIDs) > 0 {
		const markComplete = `UPDATE characters SET completed_quest_ids = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, markComplete, encodeCompleted(sess.CompletedQuestIDs), characterID); err != nil {
			return 0, sess, fmt.Errorf("mysql: update completed quests: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, sess, fmt.Errorf("mysql: commit: %w", err)
	}

	next := sess.Clone()
	next.QuestDirty = false
	return count, next, nil
}

// PersistOnLogout performs the same write as PersistDirty, ignoring the
// dirty flag — a logout flush is unconditional (spec.md §4.8).
func (s *Store) PersistOnLogout(ctx context.Context, characterID uint64, sess session.Session) error {
	forced := sess.Clone()
	forced.QuestDirty = true
	_, _, err := s.PersistDirty(ctx, characterID, forced)
	return err
}

func encodeCompleted(ids []uint32) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", id)
	}
	return out
}
