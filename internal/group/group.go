package group

import (
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/google/uuid"
)

type Placement string

const (
	PlacementPending  Placement = "pending"
	PlacementActive   Placement = "active"
	PlacementArchived Placement = "archived"
)

type Source string

const (
	SourceSpotify Source = "spotify"
	SourceYouTube Source = "youtube"
)

type Group struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   uuid.UUID `db:"owner_id" json:"ownerId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (g *Group) IsOwner(userID uuid.UUID) bool {
	return g.OwnerID == userID
}

type Member struct {
	GroupID  uuid.UUID `db:"group_id" json:"groupId"`
	UserID   uuid.UUID `db:"user_id" json:"userId"`
	Nickname string    `db:"nickname" json:"nickname"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// Album is the metadata a bracket was seeded from. A YouTube playlist is
// stored the same way, with the channel as the artist.
type Album struct {
	ID         string          `json:"id" bson:"id"`
	Name       string          `json:"name" bson:"name"`
	Artist     string          `json:"artist" bson:"artist"`
	ArtworkURL string          `json:"artworkUrl" bson:"artworkUrl"`
	Source     Source          `json:"source" bson:"source"`
	Tracks     []bracket.Track `json:"tracks" bson:"tracks"`
}

// BracketRecord is a bracket as it sits inside a group. Version is bumped on
// every save and guards against lost updates.
type BracketRecord struct {
	ID        uuid.UUID       `json:"id"`
	GroupID   uuid.UUID       `json:"groupId"`
	Placement Placement       `json:"placement"`
	Album     Album           `json:"album"`
	Bracket   bracket.Bracket `json:"bracket"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func NewPendingRecord(groupID uuid.UUID, album Album) *BracketRecord {
	id := uuid.New()
	now := time.Now().UTC()
	return &BracketRecord{
		ID:        id,
		GroupID:   groupID,
		Placement: PlacementPending,
		Album:     album,
		Bracket:   *bracket.NewPending(id.String()),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *BracketRecord) Title() string {
	if r.Album.Artist == "" {
		return r.Album.Name
	}
	return r.Album.Name + " by " + r.Album.Artist
}
