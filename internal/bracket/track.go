package bracket

// Track is a competitor. Tracks come from the metadata source and are never
// modified afterwards; two tracks are the same competitor when their IDs match.
type Track struct {
	ID          string  `json:"id" bson:"id"`
	Name        string  `json:"name" bson:"name"`
	TrackNumber int     `json:"trackNumber" bson:"trackNumber"`
	PreviewURL  *string `json:"previewUrl,omitempty" bson:"previewUrl,omitempty"`
}

func (t Track) Is(other Track) bool {
	return t.ID == other.ID
}

type SlotKind string

const (
	SlotEmpty SlotKind = "empty"
	SlotBye   SlotKind = "bye"
	SlotTrack SlotKind = "track"
)

// Slot is one side of a matchup. Empty means the feeder has not been decided
// yet, Bye means nobody will ever arrive.
type Slot struct {
	Kind  SlotKind `json:"kind" bson:"kind"`
	Track *Track   `json:"track,omitempty" bson:"track,omitempty"`
}

func TrackSlot(t Track) Slot {
	return Slot{Kind: SlotTrack, Track: &t}
}

func ByeSlot() Slot {
	return Slot{Kind: SlotBye}
}

func EmptySlot() Slot {
	return Slot{Kind: SlotEmpty}
}

func (s Slot) IsTrack() bool {
	return s.Kind == SlotTrack && s.Track != nil
}

func (s Slot) IsBye() bool {
	return s.Kind == SlotBye
}

func (s Slot) IsEmpty() bool {
	return !s.IsTrack() && !s.IsBye()
}

// Holds reports whether the slot is occupied by the track with the given id.
func (s Slot) Holds(trackID string) bool {
	return s.IsTrack() && s.Track.ID == trackID
}

func (s Slot) clone() Slot {
	if s.Track == nil {
		return Slot{Kind: s.Kind}
	}
	t := *s.Track
	return Slot{Kind: s.Kind, Track: &t}
}
