package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/metrics"
	"github.com/AdamBeresnev/album-bracket/internal/realtime"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// CastVote decides a matchup of the group's active bracket in favour of
// trackID and saves the result.
func (s *BracketService) CastVote(ctx context.Context, groupID uuid.UUID, matchupID, trackID string) (*group.BracketRecord, error) {
	g, userID, err := memberGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(groupID)
	defer unlock()

	rec, err := s.active(ctx, groupID)
	if err != nil {
		return nil, err
	}

	next, err := bracket.ApplyVote(&rec.Bracket, matchupID, trackID)
	if err != nil {
		metrics.Votes.WithLabelValues(metrics.VoteRejected).Inc()
		return nil, err
	}

	rec.Bracket = *next
	if err := s.brackets.Save(ctx, rec); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			metrics.Votes.WithLabelValues(metrics.VoteConflict).Inc()
		}
		return nil, err
	}
	metrics.Votes.WithLabelValues(metrics.VoteAccepted).Inc()

	s.invalidate(ctx, groupID)
	s.hub.BroadcastToRoom(realtime.RoomForGroup(groupID), realtime.Message{
		Type:    realtime.TypeBracketUpdated,
		Payload: rec,
	})
	slog.Debug("vote cast", "group", groupID, "bracket", rec.ID, "matchup", matchupID, "track", trackID, "user", userID)

	if rec.Bracket.Status == bracket.StatusComplete {
		slog.Info("bracket completed", "group", groupID, "bracket", rec.ID, "champion", rec.Bracket.Champion.Name)
		s.complete(ctx, g, rec)
	}
	return rec, nil
}

// CastVoteByName votes for whichever of the matchup's two tracks the typed
// name refers to.
func (s *BracketService) CastVoteByName(ctx context.Context, groupID uuid.UUID, matchupID, name string) (*group.BracketRecord, error) {
	rec, err := s.GetActiveBracket(ctx, groupID)
	if err != nil {
		return nil, err
	}

	r, i, ok := rec.Bracket.FindMatchup(matchupID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", bracket.ErrMatchupNotFound, matchupID)
	}

	trackID, err := matchTrackName(&rec.Bracket.Rounds[r].Matchups[i], name)
	if err != nil {
		return nil, err
	}
	return s.CastVote(ctx, groupID, matchupID, trackID)
}

// matchTrackName resolves a typed name against the two occupants of a
// matchup. An exact match wins, otherwise the closest fuzzy match as long as
// it is not a tie.
func matchTrackName(m *bracket.Matchup, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("%w: empty track name", ErrInvalidInput)
	}

	lookup := make(map[string]string, 2)
	var targets []string
	for _, slot := range []bracket.Slot{m.A, m.B} {
		if !slot.IsTrack() {
			continue
		}
		lower := strings.ToLower(slot.Track.Name)
		if lower == name {
			return slot.Track.ID, nil
		}
		if _, dup := lookup[lower]; dup {
			continue
		}
		lookup[lower] = slot.Track.ID
		targets = append(targets, lower)
	}

	ranks := fuzzy.RankFind(name, targets)
	switch len(ranks) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrUnknownTrackName, name)
	case 1:
		return lookup[ranks[0].Target], nil
	}

	sort.Sort(ranks)
	if ranks[0].Distance == ranks[1].Distance {
		return "", fmt.Errorf("%w: %q", ErrAmbiguousTrackName, name)
	}
	return lookup[ranks[0].Target], nil
}

// GetActiveBracketJSON returns the active bracket record as JSON, served from
// the cache when possible.
func (s *BracketService) GetActiveBracketJSON(ctx context.Context, groupID uuid.UUID) ([]byte, error) {
	if _, _, err := memberGroup(ctx, s.groups, groupID); err != nil {
		return nil, err
	}

	if data, ok, err := s.cache.Get(ctx, groupID); err != nil {
		slog.Warn("failed to read bracket cache", "group", groupID, "error", err)
	} else if ok {
		return data, nil
	}

	// Held until the Set so a vote can't invalidate between the load and the write.
	unlock := s.locks.lock(groupID)
	defer unlock()

	rec, err := s.active(ctx, groupID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket: %w", err)
	}
	if err := s.cache.Set(ctx, groupID, data); err != nil {
		slog.Warn("failed to write bracket cache", "group", groupID, "error", err)
	}
	return data, nil
}
