// Package sqlite provides the durable SQLite-backed campaign store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/louisbranch/everloom/internal/errors"
	"github.com/louisbranch/everloom/internal/narrative/creation"
	"github.com/louisbranch/everloom/internal/narrative/memory"
	"github.com/louisbranch/everloom/internal/narrative/world"
	"github.com/louisbranch/everloom/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/everloom/internal/storage"
	"github.com/louisbranch/everloom/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store is a SQLite-backed implementation of storage.Store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the campaign database at path, applying
// embedded migrations before the store is handed to higher layers.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.AppFS, "app"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database. Nil-safe so callers can defer
// it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AppendMemory assigns the next per-campaign Seq and inserts the entry.
func (s *Store) AppendMemory(ctx context.Context, entry memory.Entry) (memory.Entry, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return memory.Entry{}, persistErr("begin append memory", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := appendMemoryTx(ctx, tx, entry)
	if err != nil {
		return memory.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return memory.Entry{}, persistErr("commit append memory", err)
	}
	return stored, nil
}

func appendMemoryTx(ctx context.Context, q querier, entry memory.Entry) (memory.Entry, error) {
	var nextSeq uint64
	row := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM memories WHERE campaign_id = ?`, entry.CampaignID)
	if err := row.Scan(&nextSeq); err != nil {
		return memory.Entry{}, persistErr("next memory seq", err)
	}
	entry.Seq = nextSeq

	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return memory.Entry{}, persistErr("encode memory tags", err)
	}
	refs, err := json.Marshal(entry.CharacterRefs)
	if err != nil {
		return memory.Entry{}, persistErr("encode memory refs", err)
	}

	_, err = q.ExecContext(ctx, `
INSERT INTO memories (campaign_id, seq, id, layer, content, emotional_weight, tags, character_refs, turn, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CampaignID, entry.Seq, entry.ID, string(entry.Layer), entry.Content,
		entry.EmotionalWeight, string(tags), string(refs), entry.Turn, toMillis(entry.CreatedAt))
	if err != nil {
		return memory.Entry{}, persistErr("insert memory", err)
	}
	return entry, nil
}

// ListMemories returns all entries for the campaign in Seq order.
func (s *Store) ListMemories(ctx context.Context, campaignID string) ([]memory.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT campaign_id, seq, id, layer, content, emotional_weight, tags, character_refs, turn, created_at
FROM memories WHERE campaign_id = ? ORDER BY seq`, campaignID)
	if err != nil {
		return nil, persistErr("list memories", err)
	}
	defer rows.Close()

	var entries []memory.Entry
	for rows.Next() {
		var entry memory.Entry
		var layer, tags, refs string
		var createdAt int64
		if err := rows.Scan(&entry.CampaignID, &entry.Seq, &entry.ID, &layer, &entry.Content,
			&entry.EmotionalWeight, &tags, &refs, &entry.Turn, &createdAt); err != nil {
			return nil, persistErr("scan memory", err)
		}
		entry.Layer = memory.Layer(layer)
		entry.CreatedAt = fromMillis(createdAt)
		if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
			return nil, persistErr("decode memory tags", err)
		}
		if err := json.Unmarshal([]byte(refs), &entry.CharacterRefs); err != nil {
			return nil, persistErr("decode memory refs", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("read memories", err)
	}
	return entries, nil
}

// PutCharacter upserts the campaign's character snapshot.
func (s *Store) PutCharacter(ctx context.Context, character creation.Character) error {
	return putCharacter(ctx, s.sqlDB, character)
}

func putCharacter(ctx context.Context, q querier, character creation.Character) error {
	payload, err := json.Marshal(character)
	if err != nil {
		return persistErr("encode character", err)
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO characters (campaign_id, id, state, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (campaign_id) DO UPDATE SET id = excluded.id, state = excluded.state,
    payload = excluded.payload, updated_at = excluded.updated_at`,
		character.CampaignID, character.ID, string(character.State), string(payload), toMillis(time.Now()))
	if err != nil {
		return persistErr("upsert character", err)
	}
	return nil
}

// GetCharacter loads the campaign's character snapshot.
func (s *Store) GetCharacter(ctx context.Context, campaignID string) (creation.Character, error) {
	var payload string
	row := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM characters WHERE campaign_id = ?`, campaignID)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return creation.Character{}, storage.ErrNotFound
		}
		return creation.Character{}, persistErr("load character", err)
	}
	var character creation.Character
	if err := json.Unmarshal([]byte(payload), &character); err != nil {
		return creation.Character{}, persistErr("decode character", err)
	}
	return character, nil
}

// PutWorld upserts the campaign's world record.
func (s *Store) PutWorld(ctx context.Context, state *world.State) error {
	return putWorld(ctx, s.sqlDB, state)
}

func putWorld(ctx context.Context, q querier, state *world.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return persistErr("encode world", err)
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO worlds (campaign_id, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (campaign_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		state.CampaignID, string(payload), toMillis(time.Now()))
	if err != nil {
		return persistErr("upsert world", err)
	}
	return nil
}

// GetWorld loads the campaign's world record.
func (s *Store) GetWorld(ctx context.Context, campaignID string) (*world.State, error) {
	var payload string
	row := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM worlds WHERE campaign_id = ?`, campaignID)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, persistErr("load world", err)
	}
	var state world.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, persistErr("decode world", err)
	}
	return &state, nil
}

// ApplyTurn commits a turn's memory appends and world write in one
// transaction. On any failure nothing from the turn is persisted.
func (s *Store) ApplyTurn(ctx context.Context, write storage.TurnWrite) ([]memory.Entry, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistErr("begin turn", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored := make([]memory.Entry, 0, len(write.Memories))
	for _, entry := range write.Memories {
		appended, err := appendMemoryTx(ctx, tx, entry)
		if err != nil {
			return nil, err
		}
		stored = append(stored, appended)
	}
	if write.World != nil {
		if err := putWorld(ctx, tx, write.World); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, persistErr("commit turn", err)
	}
	return stored, nil
}

// ExportCampaign reads the campaign's full state into a snapshot.
func (s *Store) ExportCampaign(ctx context.Context, campaignID string) (storage.Snapshot, error) {
	snapshot := storage.Snapshot{CampaignID: campaignID}

	character, err := s.GetCharacter(ctx, campaignID)
	switch {
	case err == nil:
		snapshot.Character = &character
	case apperrors.IsCode(err, apperrors.CodeNotFound):
	default:
		return storage.Snapshot{}, err
	}

	memories, err := s.ListMemories(ctx, campaignID)
	if err != nil {
		return storage.Snapshot{}, err
	}
	snapshot.Memories = memories

	worldState, err := s.GetWorld(ctx, campaignID)
	switch {
	case err == nil:
		snapshot.World = worldState
	case apperrors.IsCode(err, apperrors.CodeNotFound):
	default:
		return storage.Snapshot{}, err
	}

	return snapshot, nil
}

// ImportCampaign replaces the campaign's state with the snapshot,
// preserving memory Seq values so restored rankings match the source.
func (s *Store) ImportCampaign(ctx context.Context, snapshot storage.Snapshot) error {
	if snapshot.CampaignID == "" {
		return apperrors.New(apperrors.CodeCampaignEmptyID, "snapshot campaign id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin import", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"memories", "characters", "worlds"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE campaign_id = ?", table), snapshot.CampaignID); err != nil {
			return persistErr("clear "+table, err)
		}
	}

	for _, entry := range snapshot.Memories {
		tags, err := json.Marshal(entry.Tags)
		if err != nil {
			return persistErr("encode memory tags", err)
		}
		refs, err := json.Marshal(entry.CharacterRefs)
		if err != nil {
			return persistErr("encode memory refs", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO memories (campaign_id, seq, id, layer, content, emotional_weight, tags, character_refs, turn, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.CampaignID, entry.Seq, entry.ID, string(entry.Layer), entry.Content,
			entry.EmotionalWeight, string(tags), string(refs), entry.Turn, toMillis(entry.CreatedAt))
		if err != nil {
			return persistErr("insert memory", err)
		}
	}
	if snapshot.Character != nil {
		if err := putCharacter(ctx, tx, *snapshot.Character); err != nil {
			return err
		}
	}
	if snapshot.World != nil {
		if err := putWorld(ctx, tx, snapshot.World); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit import", err)
	}
	return nil
}

func persistErr(op string, err error) error {
	return apperrors.Wrap(apperrors.CodePersistenceFailure, op+" failed", err)
}
