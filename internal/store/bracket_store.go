package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BracketRepository is where bracket documents live. Save and Activate are
// guarded by the record's version and fail with ErrVersionConflict when the
// stored copy has moved on.
type BracketRepository interface {
	Create(ctx context.Context, rec *group.BracketRecord) error
	Get(ctx context.Context, id uuid.UUID) (*group.BracketRecord, error)
	GetActive(ctx context.Context, groupID uuid.UUID) (*group.BracketRecord, error)
	ListByPlacement(ctx context.Context, groupID uuid.UUID, placement group.Placement) ([]group.BracketRecord, error)
	Save(ctx context.Context, rec *group.BracketRecord) error
	Activate(ctx context.Context, rec *group.BracketRecord) error
}

type BracketStore struct {
	db *sqlx.DB
}

var _ BracketRepository = (*BracketStore)(nil)

const (
	createBracketQuery = `
		INSERT INTO brackets (id, group_id, placement, album, document, version, created_at, updated_at)
		VALUES (:id, :group_id, :placement, :album, :document, :version, :created_at, :updated_at)
	`
	getBracketQuery       = "SELECT * FROM brackets WHERE id = ?"
	getActiveBracketQuery = "SELECT * FROM brackets WHERE group_id = ? AND placement = 'active'"
	listBracketsQuery     = `
		SELECT * FROM brackets
		WHERE group_id = ? AND placement = ?
		ORDER BY updated_at DESC
	`
	saveBracketQuery = `
		UPDATE brackets SET document = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND placement = 'active'
	`
	archiveActiveQuery = `
		UPDATE brackets SET placement = 'archived', updated_at = ?
		WHERE group_id = ? AND placement = 'active'
	`
	activateBracketQuery = `
		UPDATE brackets SET placement = 'active', document = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND placement = 'pending'
	`
)

type bracketRow struct {
	ID        uuid.UUID       `db:"id"`
	GroupID   uuid.UUID       `db:"group_id"`
	Placement group.Placement `db:"placement"`
	Album     string          `db:"album"`
	Document  string          `db:"document"`
	Version   int             `db:"version"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func NewBracketStore(db *sqlx.DB) *BracketStore {
	return &BracketStore{db: db}
}

func (s *BracketStore) Create(ctx context.Context, rec *group.BracketRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, createBracketQuery, row)
	return err
}

func (s *BracketStore) Get(ctx context.Context, id uuid.UUID) (*group.BracketRecord, error) {
	var row bracketRow
	if err := s.db.GetContext(ctx, &row, getBracketQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bracket %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return row.record()
}

func (s *BracketStore) GetActive(ctx context.Context, groupID uuid.UUID) (*group.BracketRecord, error) {
	var row bracketRow
	if err := s.db.GetContext(ctx, &row, getActiveBracketQuery, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active bracket for group %s: %w", groupID, ErrNotFound)
		}
		return nil, err
	}
	return row.record()
}

func (s *BracketStore) ListByPlacement(ctx context.Context, groupID uuid.UUID, placement group.Placement) ([]group.BracketRecord, error) {
	var rows []bracketRow
	if err := s.db.SelectContext(ctx, &rows, listBracketsQuery, groupID, placement); err != nil {
		return nil, err
	}

	records := make([]group.BracketRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Save overwrites the bracket document of an active record. On success the
// record's Version is bumped to match the stored one.
func (s *BracketStore) Save(ctx context.Context, rec *group.BracketRecord) error {
	doc, err := json.Marshal(rec.Bracket)
	if err != nil {
		return fmt.Errorf("failed to encode bracket: %w", err)
	}

	now := nowUTC()
	res, err := s.db.ExecContext(ctx, saveBracketQuery, string(doc), now, rec.ID, rec.Version)
	if err != nil {
		return err
	}
	if err := expectOneRow(res, rec.ID); err != nil {
		return err
	}

	rec.Version++
	rec.UpdatedAt = now
	return nil
}

// Activate archives the group's current active bracket and stores rec, a
// pending record that has just been seeded, as the new active one.
func (s *BracketStore) Activate(ctx context.Context, rec *group.BracketRecord) error {
	doc, err := json.Marshal(rec.Bracket)
	if err != nil {
		return fmt.Errorf("failed to encode bracket: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowUTC()
	if _, err := tx.ExecContext(ctx, archiveActiveQuery, now, rec.GroupID); err != nil {
		return fmt.Errorf("failed to archive active bracket: %w", err)
	}

	res, err := tx.ExecContext(ctx, activateBracketQuery, string(doc), now, rec.ID, rec.Version)
	if err != nil {
		return fmt.Errorf("failed to activate bracket: %w", err)
	}
	if err := expectOneRow(res, rec.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	rec.Placement = group.PlacementActive
	rec.Version++
	rec.UpdatedAt = now
	return nil
}

func expectOneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("bracket %s: %w", id, ErrVersionConflict)
	}
	return nil
}

func toRow(rec *group.BracketRecord) (*bracketRow, error) {
	album, err := json.Marshal(rec.Album)
	if err != nil {
		return nil, fmt.Errorf("failed to encode album: %w", err)
	}
	doc, err := json.Marshal(rec.Bracket)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket: %w", err)
	}
	return &bracketRow{
		ID:        rec.ID,
		GroupID:   rec.GroupID,
		Placement: rec.Placement,
		Album:     string(album),
		Document:  string(doc),
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (row bracketRow) record() (*group.BracketRecord, error) {
	rec := &group.BracketRecord{
		ID:        row.ID,
		GroupID:   row.GroupID,
		Placement: row.Placement,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Album), &rec.Album); err != nil {
		return nil, fmt.Errorf("failed to decode album of bracket %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Document), &rec.Bracket); err != nil {
		return nil, fmt.Errorf("failed to decode bracket %s: %w", row.ID, err)
	}
	if err := rec.Bracket.Validate(); err != nil {
		return nil, fmt.Errorf("bracket %s: %w", row.ID, err)
	}
	return rec, nil
}
