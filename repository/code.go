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

// CodeRepository defines the store operations shared by activation and
// reminder codes. The two kinds live in separate collections but have
// identical shape and lifecycle.
type CodeRepository interface {
	CreateCode(ctx context.Context, code *model.Code) (*model.Code, error)

	// GetValidCode returns the most recent incomplete code for the user
	// created after the given boundary. A non-empty code value narrows
	// the lookup to an exact match.
	GetValidCode(ctx context.Context, userID, code string, createdAfter time.Time) (*model.Code, error)

	// CompleteCode marks a code completed if and only if it is still
	// incomplete. Reports whether this call won the transition.
	CompleteCode(ctx context.Context, id string, completedAt time.Time) (bool, error)

	// GetCompletedCode returns the user's completed code, if any.
	GetCompletedCode(ctx context.Context, userID string) (*model.Code, error)

	DeleteCode(ctx context.Context, id string) error

	// DeleteExpiredCodes removes incomplete codes created before the
	// boundary and reports how many were deleted.
	DeleteExpiredCodes(ctx context.Context, createdBefore time.Time) (int64, error)

	DeleteCodesByUser(ctx context.Context, userID string) (int64, error)
}

type codeMongoRepository struct {
	db         *mongo.Database
	collection string
}

// NewActivationMongoRepository creates the MongoDB repository backing
// account activation codes and ensures its indexes.
func NewActivationMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) CodeRepository {
	return newCodeMongoRepository(ctx, logger, db, "activations")
}

// NewReminderMongoRepository creates the MongoDB repository backing
// password reset codes and ensures its indexes.
func NewReminderMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) CodeRepository {
	return newCodeMongoRepository(ctx, logger, db, "reminders")
}

func newCodeMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	collection string,
) CodeRepository {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "completed", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Str("collection", collection).Msg("failed to create code indexes")
	}

	return &codeMongoRepository{db: db, collection: collection}
}

func (r *codeMongoRepository) CreateCode(ctx context.Context, code *model.Code) (*model.Code, error) {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	code.UpdatedAt = code.CreatedAt
	code.Completed = false

	if _, err := r.db.Collection(r.collection).InsertOne(ctx, code); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return code, nil
}

func (r *codeMongoRepository) GetValidCode(
	ctx context.Context,
	userID, code string,
	createdAfter time.Time,
) (*model.Code, error) {
	filter := bson.M{
		"user_id":    userID,
		"completed":  false,
		"created_at": bson.M{"$gt": createdAfter},
	}
	if code != "" {
		filter["code"] = code
	}

	result := r.db.Collection(r.collection).FindOne(
		ctx,
		filter,
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var rec model.Code
	if err := result.Decode(&rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *codeMongoRepository) CompleteCode(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	// Conditional update on completed=false; two racing completions
	// cannot both match.
	result, err := r.db.Collection(r.collection).UpdateOne(
		ctx,
		bson.M{"_id": id, "completed": false},
		bson.M{"$set": bson.M{
			"completed":    true,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		}},
	)
	if err != nil {
		return false, err
	}

	return result.ModifiedCount > 0, nil
}

func (r *codeMongoRepository) GetCompletedCode(ctx context.Context, userID string) (*model.Code, error) {
	result := r.db.Collection(r.collection).FindOne(ctx, bson.M{
		"user_id":   userID,
		"completed": true,
	})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var rec model.Code
	if err := result.Decode(&rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *codeMongoRepository) DeleteCode(ctx context.Context, id string) error {
	result, err := r.db.Collection(r.collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *codeMongoRepository) DeleteExpiredCodes(ctx context.Context, createdBefore time.Time) (int64, error) {
	result, err := r.db.Collection(r.collection).DeleteMany(ctx, bson.M{
		"completed":  false,
		"created_at": bson.M{"$lt": createdBefore},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *codeMongoRepository) DeleteCodesByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Collection(r.collection).DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
