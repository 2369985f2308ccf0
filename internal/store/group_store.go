package store

import (
	"context"

	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type GroupStore struct {
	db *sqlx.DB
}

const (
	createGroupQuery = `
		INSERT INTO tournament_groups (id, name, owner_id, created_at)
		VALUES (:id, :name, :owner_id, :created_at)
	`
	upsertMemberQuery = `
		INSERT INTO group_members (group_id, user_id, nickname, joined_at)
		VALUES (:group_id, :user_id, :nickname, :joined_at)
		ON CONFLICT (group_id, user_id) DO UPDATE SET nickname = excluded.nickname
	`
	getGroupQuery         = "SELECT * FROM tournament_groups WHERE id = ?"
	getGroupsForUserQuery = `
		SELECT g.* FROM tournament_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.created_at DESC
	`
	getMembersQuery = "SELECT * FROM group_members WHERE group_id = ? ORDER BY joined_at ASC"
	getMemberQuery  = "SELECT * FROM group_members WHERE group_id = ? AND user_id = ?"
)

func NewGroupStore(db *sqlx.DB) *GroupStore {
	return &GroupStore{db: db}
}

func (s *GroupStore) CreateGroup(ctx context.Context, tx *sqlx.Tx, g *group.Group) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = nowUTC()
	}
	_, err := tx.NamedExecContext(ctx, createGroupQuery, g)
	return err
}

// AddMember adds a user to a group. Joining again only changes the nickname.
func (s *GroupStore) AddMember(ctx context.Context, tx *sqlx.Tx, m *group.Member) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = nowUTC()
	}
	_, err := tx.NamedExecContext(ctx, upsertMemberQuery, m)
	return err
}

func (s *GroupStore) GetGroup(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	var g group.Group
	if err := s.db.GetContext(ctx, &g, getGroupQuery, id); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) GetGroupsForUser(ctx context.Context, userID uuid.UUID) ([]group.Group, error) {
	var groups []group.Group
	err := s.db.SelectContext(ctx, &groups, getGroupsForUserQuery, userID)
	return groups, err
}

func (s *GroupStore) GetMembers(ctx context.Context, groupID uuid.UUID) ([]group.Member, error) {
	var members []group.Member
	err := s.db.SelectContext(ctx, &members, getMembersQuery, groupID)
	return members, err
}

func (s *GroupStore) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*group.Member, error) {
	var m group.Member
	if err := s.db.GetContext(ctx, &m, getMemberQuery, groupID, userID); err != nil {
		return nil, err
	}
	return &m, nil
}
