package bracket

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackSeeds(tracks []Track) []Slot {
	seeds := make([]Slot, len(tracks))
	for i, t := range tracks {
		seeds[i] = TrackSlot(t)
	}
	return seeds
}

func buildFrom(t *testing.T, n int) (*Bracket, []Track) {
	t.Helper()
	tracks := makeTracks(n)
	seeds, err := Normalize(tracks, SeedOptions{})
	require.NoError(t, err)
	b, err := Build(seeds)
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	return b, tracks
}

func vote(t *testing.T, b *Bracket, m Matchup, winner string) *Bracket {
	t.Helper()
	next, err := ApplyVote(b, m.ID, winner)
	require.NoError(t, err)
	require.NoError(t, next.Validate())
	return next
}

func TestBuild_RoundCount(t *testing.T) {
	for k := 1; k <= 7; k++ {
		size := 1 << k
		t.Run(fmt.Sprintf("%d seeds", size), func(t *testing.T) {
			b, err := Build(trackSeeds(makeTracks(size)))
			require.NoError(t, err)

			assert.Len(t, b.Rounds, k)
			assert.Len(t, b.Rounds[len(b.Rounds)-1].Matchups, 1)
			for r := 1; r < len(b.Rounds); r++ {
				assert.Len(t, b.Rounds[r].Matchups, len(b.Rounds[r-1].Matchups)/2)
			}
			assert.Equal(t, StatusActive, b.Status)
			assert.Nil(t, b.Champion)
			assert.NoError(t, b.Validate())
		})
	}
}

func TestBuild_RoundNames(t *testing.T) {
	b, err := Build(trackSeeds(makeTracks(64)))
	require.NoError(t, err)

	var names []string
	for _, r := range b.Rounds {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Round 1", "Round 2", "Round of 16", "Quarter-Finals", "Semi-Finals", "Final"}, names)
}

func TestBuild_InvalidSeeding(t *testing.T) {
	tracks := makeTracks(4)
	testCases := []struct {
		name  string
		seeds []Slot
	}{
		{name: "empty list", seeds: nil},
		{name: "single seed", seeds: trackSeeds(tracks[:1])},
		{name: "three seeds", seeds: trackSeeds(tracks[:3])},
		{name: "six seeds", seeds: trackSeeds(makeTracks(6))},
		{name: "empty slot", seeds: []Slot{TrackSlot(tracks[0]), EmptySlot()}},
		{name: "only byes", seeds: []Slot{ByeSlot(), ByeSlot()}},
		{name: "duplicate track", seeds: []Slot{TrackSlot(tracks[0]), TrackSlot(tracks[0])}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.seeds)
			assert.ErrorIs(t, err, ErrInvalidSeeding)
		})
	}
}

func TestBuild_UniqueIDs(t *testing.T) {
	b, err := Build(trackSeeds(makeTracks(16)))
	require.NoError(t, err)

	ids := map[string]bool{b.ID: true}
	for _, r := range b.Rounds {
		require.False(t, ids[r.ID])
		ids[r.ID] = true
		for _, m := range r.Matchups {
			require.False(t, ids[m.ID])
			ids[m.ID] = true
		}
	}
}

// Scenario A: 8 tracks in input order, winners pair up in matchup order.
func TestEightTracksInOrder(t *testing.T) {
	b, tracks := buildFrom(t, 8)

	require.Len(t, b.Rounds[0].Matchups, 4)
	for i, m := range b.Rounds[0].Matchups {
		assert.Equal(t, tracks[2*i].ID, m.A.Track.ID)
		assert.Equal(t, tracks[2*i+1].ID, m.B.Track.ID)
		assert.False(t, m.Decided())
	}
	for _, m := range b.Rounds[1].Matchups {
		assert.True(t, m.A.IsEmpty())
		assert.True(t, m.B.IsEmpty())
	}

	round1 := b.Rounds[0].Matchups
	b = vote(t, b, round1[0], "t1")
	b = vote(t, b, round1[1], "t4")
	b = vote(t, b, round1[2], "t5")
	b = vote(t, b, round1[3], "t8")

	semis := b.Rounds[1].Matchups
	require.Len(t, semis, 2)
	assert.Equal(t, "t1", semis[0].A.Track.ID)
	assert.Equal(t, "t4", semis[0].B.Track.ID)
	assert.Equal(t, "t5", semis[1].A.Track.ID)
	assert.Equal(t, "t8", semis[1].B.Track.ID)
	assert.False(t, semis[0].Decided(), "filling both slots must not decide the matchup")
	assert.Equal(t, StatusActive, b.Status)
}

// Scenario B: 5 tracks pad to 8 with 3 byes.
func TestFiveTracksWithByes(t *testing.T) {
	b, _ := buildFrom(t, 5)

	round1 := b.Rounds[0].Matchups
	require.Len(t, round1, 4)

	byeMatchups, votable := 0, 0
	for _, m := range round1 {
		if m.A.IsBye() || m.B.IsBye() {
			byeMatchups++
			assert.True(t, m.Decided(), "bye matchup %s should be decided at build time", m.ID)
		}
		if m.Votable() {
			votable++
		}
	}
	assert.Equal(t, 3, byeMatchups)
	assert.Equal(t, 1, votable)

	// Bye winners are already waiting in round 2, but nothing is decided there.
	semis := b.Rounds[1].Matchups
	assert.True(t, semis[0].A.IsEmpty())
	assert.Equal(t, "t3", semis[0].B.Track.ID)
	assert.Equal(t, "t4", semis[1].A.Track.ID)
	assert.Equal(t, "t5", semis[1].B.Track.ID)
	assert.False(t, semis[0].Decided())
	assert.False(t, semis[1].Decided())

	decided, total := b.Progress()
	assert.Equal(t, 0, decided)
	assert.Equal(t, 4, total)

	next := b.NextMatchup()
	require.NotNil(t, next)
	assert.Equal(t, round1[0].ID, next.ID)
}

// Scenario C: 2 tracks make a single final.
func TestTwoTracks(t *testing.T) {
	b, _ := buildFrom(t, 2)
	require.Len(t, b.Rounds, 1)
	require.Len(t, b.Rounds[0].Matchups, 1)
	assert.Equal(t, "Final", b.Rounds[0].Name)

	b = vote(t, b, b.Rounds[0].Matchups[0], "t2")
	require.NotNil(t, b.Champion)
	assert.Equal(t, "t2", b.Champion.ID)
	assert.Equal(t, StatusComplete, b.Status)
}

// Scenario D
func TestApplyVote_MatchupNotFound(t *testing.T) {
	b, _ := buildFrom(t, 4)
	before := b.Clone()

	_, err := ApplyVote(b, "nope", "t1")
	assert.ErrorIs(t, err, ErrMatchupNotFound)
	assert.Equal(t, before, b)
}

// Scenario E
func TestApplyVote_InvalidWinner(t *testing.T) {
	b, _ := buildFrom(t, 4)
	before := b.Clone()

	_, err := ApplyVote(b, b.Rounds[0].Matchups[0].ID, "t3")
	assert.ErrorIs(t, err, ErrInvalidWinner)
	assert.Equal(t, before, b)
}

func TestApplyVote_NoRevote(t *testing.T) {
	b, _ := buildFrom(t, 4)
	m := b.Rounds[0].Matchups[0]

	b = vote(t, b, m, "t1")
	after := b.Clone()

	for _, winner := range []string{"t1", "t2"} {
		_, err := ApplyVote(b, m.ID, winner)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
		assert.Equal(t, after, b)
	}
}

func TestApplyVote_ByeMatchupIsAlreadyDecided(t *testing.T) {
	b, _ := buildFrom(t, 3)
	byeMatchup := b.Rounds[0].Matchups[1]
	require.True(t, byeMatchup.B.IsBye())

	_, err := ApplyVote(b, byeMatchup.ID, "t3")
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestApplyVote_NotReady(t *testing.T) {
	b, _ := buildFrom(t, 4)
	b = vote(t, b, b.Rounds[0].Matchups[0], "t1")

	final := b.Rounds[1].Matchups[0]
	_, err := ApplyVote(b, final.ID, "t1")
	assert.ErrorIs(t, err, ErrMatchupNotReady)
}

func TestApplyVote_DoesNotMutateInput(t *testing.T) {
	b, _ := buildFrom(t, 8)
	before := b.Clone()

	next, err := ApplyVote(b, b.Rounds[0].Matchups[0].ID, "t2")
	require.NoError(t, err)

	assert.Equal(t, before, b)
	assert.True(t, next.Rounds[0].Matchups[0].IsWinner("t2"))
	assert.Equal(t, 1, next.Rounds[0].Matchups[0].Votes.B)
	assert.Equal(t, "t2", next.Rounds[1].Matchups[0].A.Track.ID)
}

func TestByesCarryLoneTrackToChampion(t *testing.T) {
	for k := 1; k <= 6; k++ {
		size := 1 << k
		t.Run(fmt.Sprintf("%d seeds", size), func(t *testing.T) {
			seeds := make([]Slot, size)
			for i := range seeds {
				seeds[i] = ByeSlot()
			}
			seeds[size-1] = TrackSlot(Track{ID: "lonely"})

			b, err := Build(seeds)
			require.NoError(t, err)
			require.NoError(t, b.Validate())

			assert.Equal(t, StatusComplete, b.Status)
			require.NotNil(t, b.Champion)
			assert.Equal(t, "lonely", b.Champion.ID)
			assert.Nil(t, b.NextMatchup())
		})
	}
}

func TestVoteCarriesWinnerPastVoidMatchup(t *testing.T) {
	tracks := makeTracks(2)
	b, err := Build([]Slot{TrackSlot(tracks[0]), TrackSlot(tracks[1]), ByeSlot(), ByeSlot()})
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	assert.True(t, b.Rounds[0].Matchups[1].Void())
	final := b.Rounds[1].Matchups[0]
	assert.True(t, final.A.IsEmpty())
	assert.True(t, final.B.IsBye())

	b = vote(t, b, b.Rounds[0].Matchups[0], "t2")
	assert.Equal(t, StatusComplete, b.Status)
	assert.Equal(t, "t2", b.Champion.ID)
	assert.True(t, b.Final().IsWinner("t2"))
}

func TestPlaythrough(t *testing.T) {
	for _, placement := range []ByePlacement{ByesAppended, ByesShuffled} {
		for n := 2; n <= 33; n++ {
			t.Run(fmt.Sprintf("%s/%d tracks", placement, n), func(t *testing.T) {
				rng := rand.New(rand.NewPCG(uint64(n), 99))
				seeds, err := Normalize(makeTracks(n), SeedOptions{Shuffle: true, Byes: placement, Rand: rng})
				require.NoError(t, err)
				b, err := Build(seeds)
				require.NoError(t, err)

				votes := 0
				for m := b.NextMatchup(); m != nil; m = b.NextMatchup() {
					winner := m.A.Track.ID
					if rng.IntN(2) == 1 {
						winner = m.B.Track.ID
					}
					b, err = ApplyVote(b, m.ID, winner)
					require.NoError(t, err)
					require.NoError(t, b.Validate())
					votes++

					complete := b.Status == StatusComplete
					assert.Equal(t, complete, b.Champion != nil)
					assert.Equal(t, complete, b.Final().Decided())
				}

				assert.Equal(t, n-1, votes, "every track but the champion loses exactly one vote")
				assert.Equal(t, StatusComplete, b.Status)
				require.NotNil(t, b.Champion)
				assert.True(t, b.Final().IsWinner(b.Champion.ID))
			})
		}
	}
}

func TestValidate_DetectsCorruption(t *testing.T) {
	b, _ := buildFrom(t, 4)

	wrongWinner := b.Clone()
	outsider := Track{ID: "t9"}
	wrongWinner.Rounds[0].Matchups[0].Winner = &outsider
	assert.ErrorIs(t, wrongWinner.Validate(), ErrCorruptBracket)

	noChampion := b.Clone()
	noChampion.Status = StatusComplete
	assert.ErrorIs(t, noChampion.Validate(), ErrCorruptBracket)

	badShape := b.Clone()
	badShape.Rounds = badShape.Rounds[:1]
	assert.ErrorIs(t, badShape.Validate(), ErrCorruptBracket)

	assert.NoError(t, NewPending("p").Validate())
}

func TestBracketSurvivesJSONRoundTrip(t *testing.T) {
	b, _ := buildFrom(t, 6)
	b = vote(t, b, b.Rounds[0].Matchups[0], "t1")

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var loaded Bracket
	require.NoError(t, json.Unmarshal(raw, &loaded))
	require.NoError(t, loaded.Validate())

	semi := loaded.Rounds[1].Matchups[0]
	next, err := ApplyVote(&loaded, semi.ID, "t1")
	require.ErrorIs(t, err, ErrMatchupNotReady)
	assert.Nil(t, next)

	next, err = ApplyVote(&loaded, loaded.Rounds[0].Matchups[1].ID, "t4")
	require.NoError(t, err)
	assert.Equal(t, "t1", next.Rounds[1].Matchups[0].A.Track.ID)
	assert.Equal(t, "t4", next.Rounds[1].Matchups[0].B.Track.ID)
}
