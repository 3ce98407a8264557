package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/peregrinelabs/warden/model"
)

// ThrottleFilter selects throttle entries of one tier. UserID and IP
// narrow the selection for the user and ip tiers; Since bounds the
// window.
type ThrottleFilter struct {
	Type   model.ThrottleType
	UserID string
	IP     string
	Since  time.Time
}

// ThrottleRepository defines the append-only attempt log operations.
type ThrottleRepository interface {
	CreateThrottle(ctx context.Context, entry *model.Throttle) (*model.Throttle, error)

	// CountThrottle counts entries matching the filter.
	CountThrottle(ctx context.Context, filter ThrottleFilter) (int64, error)

	// LastThrottle returns the most recent entry matching the filter.
	LastThrottle(ctx context.Context, filter ThrottleFilter) (*model.Throttle, error)

	DeleteThrottleByUser(ctx context.Context, userID string) (int64, error)

	// DeleteThrottleBefore removes entries older than the boundary. This
	// is an operator maintenance call, never part of evaluation.
	DeleteThrottleBefore(ctx context.Context, createdBefore time.Time) (int64, error)
}

const throttleCollection = "throttle"

type throttleMongoRepository struct {
	db *mongo.Database
}

// NewThrottleMongoRepository creates the MongoDB repository backing the
// attempt log and ensures its indexes.
func NewThrottleMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) ThrottleRepository {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	if _, err := db.Collection(throttleCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create throttle indexes")
	}

	return &throttleMongoRepository{db: db}
}

func (r *throttleMongoRepository) CreateThrottle(ctx context.Context, entry *model.Throttle) (*model.Throttle, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := r.db.Collection(throttleCollection).InsertOne(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *throttleMongoRepository) CountThrottle(ctx context.Context, filter ThrottleFilter) (int64, error) {
	return r.db.Collection(throttleCollection).CountDocuments(ctx, mongoThrottleFilter(filter))
}

func (r *throttleMongoRepository) LastThrottle(ctx context.Context, filter ThrottleFilter) (*model.Throttle, error) {
	result := r.db.Collection(throttleCollection).FindOne(
		ctx,
		mongoThrottleFilter(filter),
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var entry model.Throttle
	if err := result.Decode(&entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *throttleMongoRepository) DeleteThrottleByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Collection(throttleCollection).DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *throttleMongoRepository) DeleteThrottleBefore(ctx context.Context, createdBefore time.Time) (int64, error) {
	result, err := r.db.Collection(throttleCollection).DeleteMany(ctx, bson.M{
		"created_at": bson.M{"$lt": createdBefore},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func mongoThrottleFilter(filter ThrottleFilter) bson.M {
	m := bson.M{"type": filter.Type}
	if filter.UserID != "" {
		m["user_id"] = filter.UserID
	}
	if filter.IP != "" {
		m["ip"] = filter.IP
	}
	if !filter.Since.IsZero() {
		m["created_at"] = bson.M{"$gte": filter.Since}
	}
	return m
}
