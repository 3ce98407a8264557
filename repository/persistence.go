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

// PersistenceRepository defines the long-lived login token operations.
type PersistenceRepository interface {
	CreatePersistence(ctx context.Context, persistence *model.Persistence) (*model.Persistence, error)
	GetPersistenceByCode(ctx context.Context, code string) (*model.Persistence, error)
	DeletePersistenceByCode(ctx context.Context, code string) error
	DeletePersistencesByUser(ctx context.Context, userID string) (int64, error)
}

const persistenceCollection = "persistences"

type persistenceMongoRepository struct {
	db *mongo.Database
}

// NewPersistenceMongoRepository creates the MongoDB repository backing
// persistence tokens and ensures its indexes.
func NewPersistenceMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) PersistenceRepository {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	if _, err := db.Collection(persistenceCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create persistence indexes")
	}

	return &persistenceMongoRepository{db: db}
}

func (r *persistenceMongoRepository) CreatePersistence(
	ctx context.Context,
	persistence *model.Persistence,
) (*model.Persistence, error) {
	if persistence.ID == "" {
		persistence.ID = uuid.NewString()
	}
	if persistence.CreatedAt.IsZero() {
		persistence.CreatedAt = time.Now()
	}

	if _, err := r.db.Collection(persistenceCollection).InsertOne(ctx, persistence); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return persistence, nil
}

func (r *persistenceMongoRepository) GetPersistenceByCode(ctx context.Context, code string) (*model.Persistence, error) {
	result := r.db.Collection(persistenceCollection).FindOne(ctx, bson.M{"code": code})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var persistence model.Persistence
	if err := result.Decode(&persistence); err != nil {
		return nil, err
	}

	return &persistence, nil
}

func (r *persistenceMongoRepository) DeletePersistenceByCode(ctx context.Context, code string) error {
	result, err := r.db.Collection(persistenceCollection).DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *persistenceMongoRepository) DeletePersistencesByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Collection(persistenceCollection).DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
