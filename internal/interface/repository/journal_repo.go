package repository

import (
	"context"
	"fmt"
	"time"

	"passenger-service/internal/domain/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEventJournalRepository implements the EventJournalRepository interface
type MongoEventJournalRepository struct {
	collection *mongo.Collection
}

// NewMongoEventJournalRepository creates a new MongoDB journal repository and
// ensures its indexes exist
func NewMongoEventJournalRepository(ctx context.Context, db *mongo.Database) (*MongoEventJournalRepository, error) {
	collection := db.Collection("passengerEventJournal")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// History lookups are per passenger, newest first
	passengerIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "passengerId", Value: 1},
			{Key: "recordedAt", Value: -1},
		},
	}

	eventIDIndex := mongo.IndexModel{
		Keys: bson.M{"eventId": 1},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		passengerIndex,
		eventIDIndex,
	}); err != nil {
		return nil, fmt.Errorf("failed to create journal indexes: %w", err)
	}

	return &MongoEventJournalRepository{
		collection: collection,
	}, nil
}

// Record appends a delivery outcome
func (r *MongoEventJournalRepository) Record(ctx context.Context, entry *entity.JournalEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to journal event %s: %w", entry.EventID, err)
	}
	return nil
}

// FindByPassenger returns the most recent entries for a passenger
func (r *MongoEventJournalRepository) FindByPassenger(ctx context.Context, passengerID int64, limit int) ([]*entity.JournalEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "recordedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"passengerId": passengerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal for passenger %d: %w", passengerID, err)
	}
	defer cursor.Close(ctx)

	entries := make([]*entity.JournalEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode journal for passenger %d: %w", passengerID, err)
	}

	return entries, nil
}
