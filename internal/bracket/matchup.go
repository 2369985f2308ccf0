package bracket

import "fmt"

type Votes struct {
	A int `json:"a" bson:"a"`
	B int `json:"b" bson:"b"`
}

type Matchup struct {
	ID     string `json:"id" bson:"id"`
	A      Slot   `json:"a" bson:"a"`
	B      Slot   `json:"b" bson:"b"`
	Winner *Track `json:"winner,omitempty" bson:"winner,omitempty"`
	Votes  Votes  `json:"votes" bson:"votes"`
}

func (m *Matchup) Decided() bool {
	return m.Winner != nil
}

// Void matchups have a bye on both sides and never produce a winner.
func (m *Matchup) Void() bool {
	return m.A.IsBye() && m.B.IsBye()
}

// Votable matchups are waiting on a human decision between two tracks.
func (m *Matchup) Votable() bool {
	return !m.Decided() && m.A.IsTrack() && m.B.IsTrack()
}

func (m *Matchup) IsWinner(trackID string) bool {
	return m.Winner != nil && m.Winner.ID == trackID
}

// resolveBye sets the winner when one side holds a track and the other is a
// bye. It reports whether a winner was set.
func (m *Matchup) resolveBye() bool {
	if m.Decided() {
		return false
	}
	switch {
	case m.A.IsTrack() && m.B.IsBye():
		t := *m.A.Track
		m.Winner = &t
	case m.B.IsTrack() && m.A.IsBye():
		t := *m.B.Track
		m.Winner = &t
	default:
		return false
	}
	return true
}

// outcome is what this matchup feeds forward into the next round.
func (m *Matchup) outcome() Slot {
	switch {
	case m.Winner != nil:
		return TrackSlot(*m.Winner)
	case m.Void():
		return ByeSlot()
	default:
		return EmptySlot()
	}
}

func (m *Matchup) validate() error {
	if m.Winner == nil {
		return nil
	}
	if !m.A.Holds(m.Winner.ID) && !m.B.Holds(m.Winner.ID) {
		return fmt.Errorf("%w: matchup %s winner %s is in neither slot", ErrCorruptBracket, m.ID, m.Winner.ID)
	}
	if m.Votes.A < 0 || m.Votes.B < 0 {
		return fmt.Errorf("%w: matchup %s has a negative tally", ErrCorruptBracket, m.ID)
	}
	return nil
}

func (m Matchup) clone() Matchup {
	c := Matchup{
		ID:    m.ID,
		A:     m.A.clone(),
		B:     m.B.clone(),
		Votes: m.Votes,
	}
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	return c
}

type Round struct {
	ID       string    `json:"id" bson:"id"`
	Name     string    `json:"name" bson:"name"`
	Matchups []Matchup `json:"matchups" bson:"matchups"`
}

// RoundName is fixed when the round is created. index is 0-based.
func RoundName(matchupCount, index int) string {
	switch matchupCount {
	case 1:
		return "Final"
	case 2:
		return "Semi-Finals"
	case 4:
		return "Quarter-Finals"
	case 8:
		return "Round of 16"
	default:
		return fmt.Sprintf("Round %d", index+1)
	}
}
