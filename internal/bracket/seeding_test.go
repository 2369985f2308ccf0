package bracket

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTracks(n int) []Track {
	tracks := make([]Track, n)
	for i := range tracks {
		tracks[i] = Track{
			ID:          fmt.Sprintf("t%d", i+1),
			Name:        fmt.Sprintf("Track %d", i+1),
			TrackNumber: i + 1,
		}
	}
	return tracks
}

func countByes(seeds []Slot) int {
	byes := 0
	for _, s := range seeds {
		if s.IsBye() {
			byes++
		}
	}
	return byes
}

func TestCalcBracketSize(t *testing.T) {
	testCases := []struct {
		count    int
		expected int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 8},
		{8, 8},
		{9, 16},
		{17, 32},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d entries", tc.count), func(t *testing.T) {
			assert.Equal(t, tc.expected, calcBracketSize(tc.count))
		})
	}
}

func TestNormalize_SizeInvariant(t *testing.T) {
	for _, placement := range []ByePlacement{ByesAppended, ByesShuffled} {
		for n := 2; n <= 40; n++ {
			t.Run(fmt.Sprintf("%s/%d tracks", placement, n), func(t *testing.T) {
				seeds, err := Normalize(makeTracks(n), SeedOptions{
					Shuffle: true,
					Byes:    placement,
					Rand:    rand.New(rand.NewPCG(uint64(n), 7)),
				})
				require.NoError(t, err)

				size := calcBracketSize(n)
				assert.Len(t, seeds, size)
				assert.True(t, isPowerOfTwo(len(seeds)))
				assert.Equal(t, size-n, countByes(seeds))
				for _, s := range seeds {
					assert.False(t, s.IsEmpty(), "seed lists never contain empty slots")
				}
			})
		}
	}
}

func TestNormalize_AppendedLayout(t *testing.T) {
	seeds, err := Normalize(makeTracks(5), SeedOptions{})
	require.NoError(t, err)

	expected := []Slot{
		TrackSlot(makeTracks(5)[0]), TrackSlot(makeTracks(5)[1]),
		TrackSlot(makeTracks(5)[2]), ByeSlot(),
		TrackSlot(makeTracks(5)[3]), ByeSlot(),
		TrackSlot(makeTracks(5)[4]), ByeSlot(),
	}
	assert.Equal(t, expected, seeds)
}

func TestNormalize_AppendedNeverPairsTwoByes(t *testing.T) {
	for n := 2; n <= 33; n++ {
		seeds, err := Normalize(makeTracks(n), SeedOptions{Shuffle: true, Rand: rand.New(rand.NewPCG(1, uint64(n)))})
		require.NoError(t, err)
		for i := 0; i < len(seeds); i += 2 {
			assert.False(t, seeds[i].IsBye() && seeds[i+1].IsBye(), "%d tracks: pair %d is two byes", n, i/2)
		}
	}
}

func TestNormalize_InsufficientCompetitors(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := Normalize(makeTracks(n), SeedOptions{})
		assert.ErrorIs(t, err, ErrInsufficientCompetitors)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	tracks := makeTracks(12)
	original := make([]Track, len(tracks))
	copy(original, tracks)

	seeds, err := Normalize(tracks, SeedOptions{Shuffle: true, Rand: rand.New(rand.NewPCG(42, 42))})
	require.NoError(t, err)

	assert.Equal(t, original, tracks)

	var seeded []Track
	for _, s := range seeds {
		if s.IsTrack() {
			seeded = append(seeded, *s.Track)
		}
	}
	assert.ElementsMatch(t, original, seeded)
}

func TestNormalize_ShuffleChangesOrder(t *testing.T) {
	tracks := makeTracks(16)
	seeds, err := Normalize(tracks, SeedOptions{Shuffle: true, Rand: rand.New(rand.NewPCG(3, 9))})
	require.NoError(t, err)

	inOrder := true
	for i, s := range seeds {
		if s.Track.ID != tracks[i].ID {
			inOrder = false
			break
		}
	}
	assert.False(t, inOrder, "16 tracks should not survive a shuffle in order")
}

func TestParseByePlacement(t *testing.T) {
	p, err := ParseByePlacement("")
	require.NoError(t, err)
	assert.Equal(t, ByesAppended, p)

	p, err = ParseByePlacement("shuffled")
	require.NoError(t, err)
	assert.Equal(t, ByesShuffled, p)

	_, err = ParseByePlacement("interleaved")
	assert.Error(t, err)
}
