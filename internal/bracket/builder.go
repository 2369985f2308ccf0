package bracket

import (
	"fmt"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.New().String()
}

// Build lays out every round of a single elimination bracket from a seed list.
// Round 1 pairs consecutive seeds; later rounds start out as placeholders
// unless byes already decide them.
func Build(seeds []Slot) (*Bracket, error) {
	if err := validateSeeds(seeds); err != nil {
		return nil, err
	}

	first := make([]Matchup, len(seeds)/2)
	for i := range first {
		m := Matchup{
			ID: newID(),
			A:  seeds[2*i].clone(),
			B:  seeds[2*i+1].clone(),
		}
		m.resolveBye()
		first[i] = m
	}

	rounds := []Round{{ID: newID(), Name: RoundName(len(first), 0), Matchups: first}}
	prev := first
	for len(prev) > 1 {
		next := make([]Matchup, (len(prev)+1)/2)
		for j := range next {
			// Matchup j is fed by 2j and 2j+1. A missing feeder counts as a bye.
			m := Matchup{ID: newID(), A: prev[2*j].outcome(), B: ByeSlot()}
			if 2*j+1 < len(prev) {
				m.B = prev[2*j+1].outcome()
			}
			m.resolveBye()
			next[j] = m
		}
		rounds = append(rounds, Round{ID: newID(), Name: RoundName(len(next), len(rounds)), Matchups: next})
		prev = next
	}

	b := &Bracket{
		ID:     newID(),
		Rounds: rounds,
		Status: StatusActive,
	}
	b.crownIfDecided()
	return b, nil
}

func validateSeeds(seeds []Slot) error {
	if len(seeds) < 2 || !isPowerOfTwo(len(seeds)) {
		return fmt.Errorf("%w: %d seeds is not a power of two", ErrInvalidSeeding, len(seeds))
	}

	seen := make(map[string]struct{}, len(seeds))
	for i, s := range seeds {
		switch {
		case s.IsTrack():
			if _, dup := seen[s.Track.ID]; dup {
				return fmt.Errorf("%w: track %s is seeded twice", ErrInvalidSeeding, s.Track.ID)
			}
			seen[s.Track.ID] = struct{}{}
		case s.IsBye():
		default:
			return fmt.Errorf("%w: seed %d is neither a track nor a bye", ErrInvalidSeeding, i)
		}
	}
	if len(seen) == 0 {
		return fmt.Errorf("%w: no tracks", ErrInvalidSeeding)
	}
	return nil
}

func (b *Bracket) crownIfDecided() {
	final := b.Final()
	if final == nil || !final.Decided() {
		return
	}
	champ := *final.Winner
	b.Champion = &champ
	b.Status = StatusComplete
}
