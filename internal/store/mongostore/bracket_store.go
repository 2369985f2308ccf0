package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BracketStore keeps each bracket record as one document in the "brackets"
// collection. UUIDs are stored as strings.
type BracketStore struct {
	Client     *mongo.Client
	Database   *mongo.Database
	Collection *mongo.Collection
}

var _ store.BracketRepository = (*BracketStore)(nil)

type bracketDoc struct {
	ID        string          `bson:"_id"`
	GroupID   string          `bson:"groupId"`
	Placement group.Placement `bson:"placement"`
	Album     group.Album     `bson:"album"`
	Bracket   bracket.Bracket `bson:"bracket"`
	Version   int             `bson:"version"`
	CreatedAt time.Time       `bson:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

func NewBracketStore(ctx context.Context, mongoURI, dbName string) (*BracketStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to reach mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &BracketStore{
		Client:     client,
		Database:   db,
		Collection: db.Collection("brackets"),
	}

	_, err = s.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "groupId", Value: 1}, {Key: "placement", Value: 1}}},
		{
			Keys: bson.D{{Key: "groupId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "placement", Value: group.PlacementActive}}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bracket indexes: %w", err)
	}
	return s, nil
}

func (s *BracketStore) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func (s *BracketStore) Create(ctx context.Context, rec *group.BracketRecord) error {
	_, err := s.Collection.InsertOne(ctx, toDoc(rec))
	return err
}

func (s *BracketStore) Get(ctx context.Context, id uuid.UUID) (*group.BracketRecord, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}}, "bracket "+id.String())
}

func (s *BracketStore) GetActive(ctx context.Context, groupID uuid.UUID) (*group.BracketRecord, error) {
	filter := bson.D{{Key: "groupId", Value: groupID.String()}, {Key: "placement", Value: group.PlacementActive}}
	return s.findOne(ctx, filter, "active bracket for group "+groupID.String())
}

func (s *BracketStore) ListByPlacement(ctx context.Context, groupID uuid.UUID, placement group.Placement) ([]group.BracketRecord, error) {
	filter := bson.D{{Key: "groupId", Value: groupID.String()}, {Key: "placement", Value: placement}}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cur, err := s.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing brackets: %w", err)
	}
	defer cur.Close(ctx)

	var docs []bracketDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]group.BracketRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := d.record()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *BracketStore) Save(ctx context.Context, rec *group.BracketRecord) error {
	now := time.Now().UTC()
	filter := bson.D{
		{Key: "_id", Value: rec.ID.String()},
		{Key: "version", Value: rec.Version},
		{Key: "placement", Value: group.PlacementActive},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "bracket", Value: rec.Bracket},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}

	res, err := s.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount != 1 {
		return fmt.Errorf("bracket %s: %w", rec.ID, store.ErrVersionConflict)
	}
	rec.Version++
	rec.UpdatedAt = now
	return nil
}

// Activate runs in a session transaction when the deployment supports it. A
// standalone server gets the updates in sequence, still guarded by the
// partial unique index on the active placement.
func (s *BracketStore) Activate(ctx context.Context, rec *group.BracketRecord) error {
	now := time.Now().UTC()

	sess, err := s.Client.StartSession()
	if err != nil {
		err = s.activateSequential(ctx, rec, now)
	} else {
		defer sess.EndSession(ctx)
		_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			if _, err := s.archiveActive(sc, rec.GroupID, now); err != nil {
				return nil, err
			}
			return nil, s.promote(sc, rec, now)
		})
		if err != nil && isTransactionUnsupported(err) {
			err = s.activateSequential(ctx, rec, now)
		}
	}
	if err != nil {
		return err
	}

	rec.Placement = group.PlacementActive
	rec.Version++
	rec.UpdatedAt = now
	return nil
}

// activateSequential archives the current active bracket, promotes rec and
// puts the old one back when the promotion fails.
func (s *BracketStore) activateSequential(ctx context.Context, rec *group.BracketRecord, now time.Time) error {
	prevID, err := s.archiveActive(ctx, rec.GroupID, now)
	if err != nil {
		return err
	}

	err = s.promote(ctx, rec, now)
	if err == nil || prevID == "" {
		return err
	}

	_, restoreErr := s.Collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: prevID}, {Key: "placement", Value: group.PlacementArchived}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "placement", Value: group.PlacementActive}}}},
	)
	if restoreErr != nil {
		return errors.Join(err, fmt.Errorf("failed to restore active bracket %s: %w", prevID, restoreErr))
	}
	return err
}

// archiveActive moves the group's active bracket, if any, to archived and
// returns its id.
func (s *BracketStore) archiveActive(ctx context.Context, groupID uuid.UUID, now time.Time) (string, error) {
	var prev struct {
		ID string `bson:"_id"`
	}
	err := s.Collection.FindOne(ctx,
		bson.D{{Key: "groupId", Value: groupID.String()}, {Key: "placement", Value: group.PlacementActive}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&prev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find active bracket: %w", err)
	}

	_, err = s.Collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: prev.ID}, {Key: "placement", Value: group.PlacementActive}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "placement", Value: group.PlacementArchived},
			{Key: "updatedAt", Value: now},
		}}},
	)
	if err != nil {
		return "", fmt.Errorf("failed to archive active bracket: %w", err)
	}
	return prev.ID, nil
}

func (s *BracketStore) promote(ctx context.Context, rec *group.BracketRecord, now time.Time) error {
	res, err := s.Collection.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: rec.ID.String()},
			{Key: "version", Value: rec.Version},
			{Key: "placement", Value: group.PlacementPending},
		},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "placement", Value: group.PlacementActive},
				{Key: "bracket", Value: rec.Bracket},
				{Key: "updatedAt", Value: now},
			}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to activate bracket: %w", err)
	}
	if res.MatchedCount != 1 {
		return fmt.Errorf("bracket %s: %w", rec.ID, store.ErrVersionConflict)
	}
	return nil
}

func (s *BracketStore) findOne(ctx context.Context, filter bson.D, what string) (*group.BracketRecord, error) {
	var d bracketDoc
	if err := s.Collection.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", what, store.ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching %s: %w", what, err)
	}
	return d.record()
}

// Standalone servers reject transactions with IllegalOperation (20).
func isTransactionUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 20
	}
	return false
}

func toDoc(rec *group.BracketRecord) bracketDoc {
	return bracketDoc{
		ID:        rec.ID.String(),
		GroupID:   rec.GroupID.String(),
		Placement: rec.Placement,
		Album:     rec.Album,
		Bracket:   rec.Bracket,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (d bracketDoc) record() (*group.BracketRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad bracket id %q: %w", d.ID, err)
	}
	groupID, err := uuid.Parse(d.GroupID)
	if err != nil {
		return nil, fmt.Errorf("bad group id %q: %w", d.GroupID, err)
	}

	rec := &group.BracketRecord{
		ID:        id,
		GroupID:   groupID,
		Placement: d.Placement,
		Album:     d.Album,
		Bracket:   d.Bracket,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if err := rec.Bracket.Validate(); err != nil {
		return nil, fmt.Errorf("bracket %s: %w", d.ID, err)
	}
	return rec, nil
}
