package bracket

import (
	"fmt"
	"math"
	"math/rand/v2"
)

type ByePlacement string

const (
	// ByesAppended keeps byes out of the shuffle. They go after the tracks,
	// one per trailing matchup.
	ByesAppended ByePlacement = "appended"
	// ByesShuffled shuffles byes in with the tracks. Two byes can end up in the
	// same matchup, which the builder treats as a void matchup.
	ByesShuffled ByePlacement = "shuffled"
)

func ParseByePlacement(s string) (ByePlacement, error) {
	switch ByePlacement(s) {
	case "", ByesAppended:
		return ByesAppended, nil
	case ByesShuffled:
		return ByesShuffled, nil
	default:
		return "", fmt.Errorf("unknown bye placement %q", s)
	}
}

type SeedOptions struct {
	Shuffle bool
	Byes    ByePlacement
	// Rand is used for shuffling, nil means the global source.
	Rand *rand.Rand
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// Normalize turns tracks into a seed list whose length is a power of two,
// padding with byes. The caller's slice is never modified.
func Normalize(tracks []Track, opts SeedOptions) ([]Slot, error) {
	n := len(tracks)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientCompetitors, n)
	}

	size := calcBracketSize(n)
	byes := size - n

	if opts.Byes == ByesShuffled && opts.Shuffle {
		seeds := make([]Slot, 0, size)
		for _, t := range tracks {
			seeds = append(seeds, TrackSlot(t))
		}
		for range byes {
			seeds = append(seeds, ByeSlot())
		}
		shuffle(seeds, opts.Rand)
		return seeds, nil
	}

	order := make([]Track, n)
	copy(order, tracks)
	if opts.Shuffle {
		shuffle(order, opts.Rand)
	}

	// The first 2n-size tracks play each other, every track after that gets a bye.
	paired := n - byes
	seeds := make([]Slot, 0, size)
	for _, t := range order[:paired] {
		seeds = append(seeds, TrackSlot(t))
	}
	for _, t := range order[paired:] {
		seeds = append(seeds, TrackSlot(t), ByeSlot())
	}
	return seeds, nil
}

// Fisher-Yates
func shuffle[T any](items []T, r *rand.Rand) {
	for i := len(items) - 1; i > 0; i-- {
		var j int
		if r != nil {
			j = r.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		items[i], items[j] = items[j], items[i]
	}
}
