package views

import (
	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/video"
)

type SlotView struct {
	Track  *bracket.Track
	Bye    bool
	Winner bool
	Votes  int
}

func (s SlotView) Label() string {
	switch {
	case s.Track != nil:
		return s.Track.Name
	case s.Bye:
		return "BYE"
	default:
		return "TBD"
	}
}

type MatchupView struct {
	ID      string
	A       SlotView
	B       SlotView
	Votable bool
	Current bool
	Void    bool
}

type RoundView struct {
	Name     string
	Matchups []MatchupView
}

type BracketData struct {
	Rounds   []RoundView
	Current  *bracket.Matchup
	Champion *bracket.Track
	Decided  int
	Total    int
}

// PrepareBracketData flattens a bracket into what the bracket page draws.
// Current is the matchup members are asked to vote on next.
func PrepareBracketData(b *bracket.Bracket) BracketData {
	data := BracketData{Champion: b.Champion}
	data.Decided, data.Total = b.Progress()
	data.Current = b.NextMatchup()

	for _, r := range b.Rounds {
		rv := RoundView{Name: r.Name, Matchups: make([]MatchupView, 0, len(r.Matchups))}
		for _, m := range r.Matchups {
			rv.Matchups = append(rv.Matchups, MatchupView{
				ID:      m.ID,
				A:       slotView(m.A, m.IsWinner, m.Votes.A),
				B:       slotView(m.B, m.IsWinner, m.Votes.B),
				Votable: m.Votable(),
				Current: data.Current != nil && data.Current.ID == m.ID,
				Void:    m.Void(),
			})
		}
		data.Rounds = append(data.Rounds, rv)
	}
	return data
}

func slotView(s bracket.Slot, isWinner func(string) bool, votes int) SlotView {
	v := SlotView{Bye: s.IsBye(), Votes: votes}
	if s.IsTrack() {
		v.Track = s.Track
		v.Winner = isWinner(s.Track.ID)
	}
	return v
}

// PreviewFor picks how a track's preview is embedded.
func PreviewFor(t *bracket.Track) video.EmbedInfo {
	if t == nil {
		return video.EmbedInfo{Type: video.EmbedTypeNone}
	}
	return video.GetEmbedInfo(t.PreviewURL)
}
