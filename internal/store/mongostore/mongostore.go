// Package mongostore keeps notes in a MongoDB collection with a unique
// index on the order field.
//
// Bulk reordering uses multi-document transactions, so the server must run
// as a replica set (a single-node replica set is enough).
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"noteboard/internal/models"
	"noteboard/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collectionName = "notes"
	orderIndexName = "order_unique"
	closeTimeout   = 5 * time.Second
)

type MongoStore struct {
	client *mongo.Client
	notes  *mongo.Collection
}

var _ store.Store = (*MongoStore)(nil)

// New connects to uri, verifies the connection and ensures the unique
// order index exists on database.notes.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{
		client: client,
		notes:  client.Database(database).Collection(collectionName),
	}

	_, err = s.notes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(orderIndexName),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create order index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrOrderConflict, err)
	default:
		return err
	}
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func (s *MongoStore) ListNotes(ctx context.Context) ([]models.Note, error) {
	cursor, err := s.notes.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return nil, err
	}
	notes := []models.Note{}
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].CreatedAt = notes[i].CreatedAt.UTC()
	}
	return notes, nil
}

func (s *MongoStore) GetNote(ctx context.Context, id string) (models.Note, error) {
	var n models.Note
	if err := s.notes.FindOne(ctx, byID(id)).Decode(&n); err != nil {
		return models.Note{}, translate(err)
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

// boundary returns the lowest (dir 1) or highest (dir -1) order in use,
// and false when the collection is empty.
func (s *MongoStore) boundary(ctx context.Context, dir int) (int64, bool, error) {
	var n models.Note
	opts := options.FindOne().
		SetSort(bson.D{{Key: "order", Value: dir}}).
		SetProjection(bson.D{{Key: "order", Value: 1}})
	err := s.notes.FindOne(ctx, bson.D{}, opts).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n.Order, true, nil
}

// AppendNote reads the current maximum and inserts right after it. Two
// concurrent appends can race for the same value; the loser gets
// ErrOrderConflict from the unique index.
func (s *MongoStore) AppendNote(ctx context.Context, n models.Note) (models.Note, error) {
	maxOrder, _, err := s.boundary(ctx, -1)
	if err != nil {
		return models.Note{}, err
	}
	if maxOrder >= models.MaxOrder {
		return models.Note{}, fmt.Errorf("%w: no order value left after %d", store.ErrOrderConflict, maxOrder)
	}
	n.Order = maxOrder + 1
	if _, err := s.notes.InsertOne(ctx, n); err != nil {
		return models.Note{}, translate(err)
	}
	return n, nil
}

func (s *MongoStore) CreateNote(ctx context.Context, n models.Note) error {
	_, err := s.notes.InsertOne(ctx, n)
	return translate(err)
}

func (s *MongoStore) UpdateNote(ctx context.Context, n models.Note) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: n.Content},
		{Key: "color", Value: n.Color},
		{Key: "order", Value: n.Order},
	}}}
	result, err := s.notes.UpdateOne(ctx, byID(n.ID), update)
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteNote(ctx context.Context, id string) error {
	result, err := s.notes.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ApplyOrders runs in a transaction. The unique index is enforced per
// write even inside a transaction, so affected notes are parked below the
// current minimum before they receive their final order.
func (s *MongoStore) ApplyOrders(ctx context.Context, assignments []models.OrderAssignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return 0, err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		minOrder, _, err := s.boundary(ctx, 1)
		if err != nil {
			return nil, err
		}
		park := min(minOrder, 0) - 1

		for i, a := range assignments {
			result, err := s.notes.UpdateOne(ctx, byID(a.ID),
				bson.D{{Key: "$set", Value: bson.D{{Key: "order", Value: park - int64(i)}}}})
			if err != nil {
				return nil, translate(err)
			}
			if result.MatchedCount == 0 {
				return nil, fmt.Errorf("%w: %s", store.ErrNotFound, a.ID)
			}
		}
		for _, a := range assignments {
			_, err := s.notes.UpdateOne(ctx, byID(a.ID),
				bson.D{{Key: "$set", Value: bson.D{{Key: "order", Value: a.Order}}}})
			if err != nil {
				return nil, translate(err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	return len(assignments), nil
}
