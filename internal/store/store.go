// Package store persists users, timeline items, and prescriptions in
// MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("store: not found")

// Store wraps the three collections the service uses.
type Store struct {
	client        *mongo.Client
	users         *mongo.Collection
	timeline      *mongo.Collection
	prescriptions *mongo.Collection
}

// Connect opens a client, verifies connectivity, and binds the collections.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:        client,
		users:         db.Collection("user_info"),
		timeline:      db.Collection("user_data"),
		prescriptions: db.Collection("prescriptions"),
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Reset drops every document from all three collections. Used by the demo
// seeder only.
func (s *Store) Reset(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.users, s.timeline, s.prescriptions} {
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("reset %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// EnsureIndexes creates the lookup indexes the API paths rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("user_info indexes: %w", err)
	}
	_, err = s.timeline.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "goal_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("user_data indexes: %w", err)
	}
	_, err = s.prescriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("prescriptions indexes: %w", err)
	}
	return nil
}

// CreateUser inserts a user and returns its hex id.
func (s *Store) CreateUser(ctx context.Context, u User) (string, error) {
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.InsertedID.(bson.ObjectID)
	return id.Hex(), nil
}

// UserByID looks a user up by hex object id.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var u User
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// UserByUsername looks a user up by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// AddTimelineItem appends one item to a user's timeline.
func (s *Store) AddTimelineItem(ctx context.Context, item TimelineItem) (string, error) {
	if item.Timestamp == 0 {
		item.Timestamp = time.Now().UnixMilli()
	}
	res, err := s.timeline.InsertOne(ctx, item)
	if err != nil {
		return "", fmt.Errorf("insert timeline item: %w", err)
	}
	id, _ := res.InsertedID.(bson.ObjectID)
	return id.Hex(), nil
}

// Timeline returns every item for the user, oldest first.
func (s *Store) Timeline(ctx context.Context, userID string) ([]TimelineItem, error) {
	cursor, err := s.timeline.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find timeline: %w", err)
	}
	var items []TimelineItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return items, nil
}

// Goals returns the user's goal items.
func (s *Store) Goals(ctx context.Context, userID string) ([]TimelineItem, error) {
	cursor, err := s.timeline.Find(ctx, bson.M{"user_id": userID, "type": TypeGoal})
	if err != nil {
		return nil, fmt.Errorf("find goals: %w", err)
	}
	var goals []TimelineItem
	if err := cursor.All(ctx, &goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	return goals, nil
}

// CompleteGoal marks the goal done and records a goal_completion timeline
// item alongside it.
func (s *Store) CompleteGoal(ctx context.Context, goalID string) error {
	oid, err := bson.ObjectIDFromHex(goalID)
	if err != nil {
		return ErrNotFound
	}
	now := time.Now().UnixMilli()

	var goal TimelineItem
	err = s.timeline.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "type": TypeGoal},
		bson.M{"$set": bson.M{"completed": true, "last_updated": now}},
	).Decode(&goal)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}

	completed := true
	_, err = s.timeline.InsertOne(ctx, TimelineItem{
		UserID:     goal.UserID,
		Type:       TypeGoalCompletion,
		Task:       goal.Text,
		GoalID:     oid,
		Completed:  &completed,
		Timestamp:  now,
	})
	if err != nil {
		return fmt.Errorf("insert goal completion: %w", err)
	}
	return nil
}

// AddPrescription inserts a prescription and returns its hex id.
func (s *Store) AddPrescription(ctx context.Context, p Prescription) (string, error) {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.LastUpdated = now
	res, err := s.prescriptions.InsertOne(ctx, p)
	if err != nil {
		return "", fmt.Errorf("insert prescription: %w", err)
	}
	id, _ := res.InsertedID.(bson.ObjectID)
	return id.Hex(), nil
}

// PrescriptionsByUser returns every prescription for the user.
func (s *Store) PrescriptionsByUser(ctx context.Context, userID string) ([]Prescription, error) {
	cursor, err := s.prescriptions.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("find prescriptions: %w", err)
	}
	var out []Prescription
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode prescriptions: %w", err)
	}
	return out, nil
}

// SpawnGoals creates one goal item per prescription task, mirroring how
// prescriptions turn into trackable daily or weekly goals.
func (s *Store) SpawnGoals(ctx context.Context, p Prescription, prescriptionID string) error {
	oid, err := bson.ObjectIDFromHex(prescriptionID)
	if err != nil {
		return fmt.Errorf("spawn goals: %w", err)
	}
	for _, task := range p.Tasks {
		frequency := "weekly"
		if task.Type == "medication" {
			frequency = "daily"
		}
		completed := task.Completed
		_, err := s.timeline.InsertOne(ctx, TimelineItem{
			UserID:         p.UserID,
			Type:           TypeGoal,
			Text:           task.Task,
			Details:        task.Details,
			Completed:      &completed,
			Frequency:      frequency,
			PrescriptionID: oid,
			Expiry:         p.Expiry,
			LastUpdated:    p.LastUpdated,
			Timestamp:      p.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
	}
	return nil
}
