package bracket

import "fmt"

// ApplyVote decides a matchup and moves the winner into the next round. The
// given bracket is left untouched; the updated copy is returned.
func ApplyVote(b *Bracket, matchupID, winnerID string) (*Bracket, error) {
	r, i, ok := b.FindMatchup(matchupID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchupNotFound, matchupID)
	}

	m := &b.Rounds[r].Matchups[i]
	if m.Decided() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDecided, matchupID)
	}
	if !m.A.Holds(winnerID) && !m.B.Holds(winnerID) {
		return nil, fmt.Errorf("%w: track %s, matchup %s", ErrInvalidWinner, winnerID, matchupID)
	}
	if !m.Votable() {
		return nil, fmt.Errorf("%w: %s", ErrMatchupNotReady, matchupID)
	}

	next := b.Clone()
	target := &next.Rounds[r].Matchups[i]
	if target.A.Holds(winnerID) {
		w := *target.A.Track
		target.Winner = &w
		target.Votes.A++
	} else {
		w := *target.B.Track
		target.Winner = &w
		target.Votes.B++
	}

	next.advance(r, i)
	return next, nil
}

// advance carries the winner of matchup (r, i) forward. Even matchups feed
// slot A of matchup i/2 in the next round, odd ones feed slot B, the same
// pairing Build uses. A winner that lands opposite a bye keeps going.
func (b *Bracket) advance(r, i int) {
	for {
		winner := *b.Rounds[r].Matchups[i].Winner
		if r == len(b.Rounds)-1 {
			b.Champion = &winner
			b.Status = StatusComplete
			return
		}

		nr, ni := r+1, i/2
		target := &b.Rounds[nr].Matchups[ni]
		if i%2 == 0 {
			target.A = TrackSlot(winner)
		} else {
			target.B = TrackSlot(winner)
		}

		if !target.resolveBye() {
			return
		}
		r, i = nr, ni
	}
}
