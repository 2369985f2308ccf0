package bracket

import "fmt"

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

type Bracket struct {
	ID       string  `json:"id" bson:"id"`
	Rounds   []Round `json:"rounds" bson:"rounds"`
	Status   Status  `json:"status" bson:"status"`
	Champion *Track  `json:"champion,omitempty" bson:"champion,omitempty"`
}

// NewPending returns a bracket whose tracks are known but not yet arranged.
func NewPending(id string) *Bracket {
	return &Bracket{ID: id, Status: StatusPending, Rounds: []Round{}}
}

func (b *Bracket) Final() *Matchup {
	if len(b.Rounds) == 0 {
		return nil
	}
	last := b.Rounds[len(b.Rounds)-1]
	if len(last.Matchups) != 1 {
		return nil
	}
	return &b.Rounds[len(b.Rounds)-1].Matchups[0]
}

// FindMatchup returns the round and matchup index of the matchup with the
// given id, or ok=false.
func (b *Bracket) FindMatchup(id string) (roundIdx, matchupIdx int, ok bool) {
	for r := range b.Rounds {
		for i := range b.Rounds[r].Matchups {
			if b.Rounds[r].Matchups[i].ID == id {
				return r, i, true
			}
		}
	}
	return -1, -1, false
}

// NextMatchup is the first matchup, in round order, that is waiting on a vote.
func (b *Bracket) NextMatchup() *Matchup {
	for r := range b.Rounds {
		for i := range b.Rounds[r].Matchups {
			if b.Rounds[r].Matchups[i].Votable() {
				return &b.Rounds[r].Matchups[i]
			}
		}
	}
	return nil
}

// Progress counts matchups decided by a vote and matchups that need one.
// Byes and void matchups are not counted.
func (b *Bracket) Progress() (decided, total int) {
	for _, r := range b.Rounds {
		for _, m := range r.Matchups {
			if m.A.IsBye() || m.B.IsBye() {
				continue
			}
			total++
			if m.Decided() {
				decided++
			}
		}
	}
	return decided, total
}

func (b *Bracket) Tracks() []Track {
	if len(b.Rounds) == 0 {
		return nil
	}
	var tracks []Track
	for _, m := range b.Rounds[0].Matchups {
		if m.A.IsTrack() {
			tracks = append(tracks, *m.A.Track)
		}
		if m.B.IsTrack() {
			tracks = append(tracks, *m.B.Track)
		}
	}
	return tracks
}

func (b *Bracket) Clone() *Bracket {
	c := &Bracket{
		ID:     b.ID,
		Status: b.Status,
		Rounds: make([]Round, len(b.Rounds)),
	}
	for r, round := range b.Rounds {
		matchups := make([]Matchup, len(round.Matchups))
		for i, m := range round.Matchups {
			matchups[i] = m.clone()
		}
		c.Rounds[r] = Round{ID: round.ID, Name: round.Name, Matchups: matchups}
	}
	if b.Champion != nil {
		champ := *b.Champion
		c.Champion = &champ
	}
	return c
}

// Validate checks the structural invariants of a bracket. Stored brackets are
// validated on load.
func (b *Bracket) Validate() error {
	switch b.Status {
	case StatusPending:
		if len(b.Rounds) != 0 || b.Champion != nil {
			return fmt.Errorf("%w: pending bracket %s has rounds or a champion", ErrCorruptBracket, b.ID)
		}
		return nil
	case StatusActive, StatusComplete:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrCorruptBracket, b.Status)
	}

	if len(b.Rounds) == 0 {
		return fmt.Errorf("%w: bracket %s has no rounds", ErrCorruptBracket, b.ID)
	}
	if !isPowerOfTwo(len(b.Rounds[0].Matchups) * 2) {
		return fmt.Errorf("%w: first round has %d matchups", ErrCorruptBracket, len(b.Rounds[0].Matchups))
	}
	for r := 1; r < len(b.Rounds); r++ {
		prev, cur := len(b.Rounds[r-1].Matchups), len(b.Rounds[r].Matchups)
		if cur != (prev+1)/2 {
			return fmt.Errorf("%w: round %d has %d matchups, expected %d", ErrCorruptBracket, r+1, cur, (prev+1)/2)
		}
	}

	final := b.Final()
	if final == nil {
		return fmt.Errorf("%w: last round must hold exactly one matchup", ErrCorruptBracket)
	}
	for r := range b.Rounds {
		for i := range b.Rounds[r].Matchups {
			if err := b.Rounds[r].Matchups[i].validate(); err != nil {
				return err
			}
		}
	}

	complete := b.Status == StatusComplete
	if complete != (b.Champion != nil) || complete != final.Decided() {
		return fmt.Errorf("%w: status %s, champion set %t, final decided %t",
			ErrCorruptBracket, b.Status, b.Champion != nil, final.Decided())
	}
	if complete && !final.Winner.Is(*b.Champion) {
		return fmt.Errorf("%w: champion does not match the final's winner", ErrCorruptBracket)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
