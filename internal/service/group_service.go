package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/middleware"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	users "github.com/AdamBeresnev/album-bracket/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const maxNameLength = 80

type GroupService struct {
	db       *sqlx.DB
	store    *store.GroupStore
	brackets store.BracketRepository
}

func NewGroupService(db *sqlx.DB, store *store.GroupStore, brackets store.BracketRepository) *GroupService {
	return &GroupService{db: db, store: store, brackets: brackets}
}

type GroupData struct {
	Group    *group.Group
	Members  []group.Member
	Active   *group.BracketRecord
	Pending  []group.BracketRecord
	Archived []group.BracketRecord
	IsOwner  bool
}

func (s *GroupService) CreateGroup(ctx context.Context, name string) (*group.Group, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotLoggedIn
	}

	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: group name must be 1-%d characters", ErrInvalidInput, maxNameLength)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	g := &group.Group{
		ID:      uuid.New(),
		Name:    name,
		OwnerID: userID,
	}
	if err := s.store.CreateGroup(ctx, tx, g); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	owner := &group.Member{
		GroupID:  g.ID,
		UserID:   userID,
		Nickname: defaultNickname(ctx),
	}
	if err := s.store.AddMember(ctx, tx, owner); err != nil {
		return nil, fmt.Errorf("failed to add owner to group: %w", err)
	}

	return g, tx.Commit()
}

// JoinGroup adds the caller to a group. An empty nickname falls back to the
// caller's username.
func (s *GroupService) JoinGroup(ctx context.Context, groupID uuid.UUID, nickname string) (*group.Member, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotLoggedIn
	}

	if _, err := s.getGroup(ctx, groupID); err != nil {
		return nil, err
	}

	nickname = strings.TrimSpace(nickname)
	if len(nickname) > maxNameLength {
		return nil, fmt.Errorf("%w: nickname must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	if nickname == "" {
		nickname = defaultNickname(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m := &group.Member{GroupID: groupID, UserID: userID, Nickname: nickname}
	if err := s.store.AddMember(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("failed to join group: %w", err)
	}
	return m, tx.Commit()
}

func (s *GroupService) GetGroupsForUser(ctx context.Context) ([]group.Group, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotLoggedIn
	}
	return s.store.GetGroupsForUser(ctx, userID)
}

// GetGroup returns a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, groupID uuid.UUID) (*group.Group, error) {
	g, _, err := memberGroup(ctx, s.store, groupID)
	return g, err
}

// GetGroupData loads everything the group dashboard shows.
func (s *GroupService) GetGroupData(ctx context.Context, groupID uuid.UUID) (*GroupData, error) {
	g, userID, err := memberGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}

	data := &GroupData{Group: g, IsOwner: g.IsOwner(userID)}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		members, err := s.store.GetMembers(ctx, groupID)
		if err != nil {
			return fmt.Errorf("failed to get members: %w", err)
		}
		data.Members = members
		return nil
	})
	eg.Go(func() error {
		active, err := s.brackets.GetActive(ctx, groupID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get active bracket: %w", err)
		}
		data.Active = active
		return nil
	})
	eg.Go(func() error {
		pending, err := s.brackets.ListByPlacement(ctx, groupID, group.PlacementPending)
		if err != nil {
			return fmt.Errorf("failed to get pending brackets: %w", err)
		}
		data.Pending = pending
		return nil
	})
	eg.Go(func() error {
		archived, err := s.brackets.ListByPlacement(ctx, groupID, group.PlacementArchived)
		if err != nil {
			return fmt.Errorf("failed to get archived brackets: %w", err)
		}
		data.Archived = archived
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *GroupService) getGroup(ctx context.Context, groupID uuid.UUID) (*group.Group, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	return g, err
}

// memberGroup loads a group on behalf of the caller, who must be one of its
// members.
func memberGroup(ctx context.Context, groups *store.GroupStore, groupID uuid.UUID) (*group.Group, uuid.UUID, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, uuid.Nil, ErrNotLoggedIn
	}

	g, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uuid.Nil, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
		}
		return nil, uuid.Nil, err
	}

	if _, err := groups.GetMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uuid.Nil, fmt.Errorf("not a member of group %s: %w", groupID, ErrForbidden)
		}
		return nil, uuid.Nil, err
	}
	return g, userID, nil
}

func ownerGroup(ctx context.Context, groups *store.GroupStore, groupID uuid.UUID) (*group.Group, uuid.UUID, error) {
	g, userID, err := memberGroup(ctx, groups, groupID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !g.IsOwner(userID) {
		return nil, uuid.Nil, fmt.Errorf("only the owner can manage group %s: %w", groupID, ErrForbidden)
	}
	return g, userID, nil
}

func defaultNickname(ctx context.Context) string {
	if u := middleware.GetAuthenticatedUser(ctx); u != nil && u.Username != "" {
		return u.Username
	}
	return users.GenerateNickname()
}
