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
	"github.com/peregrinelabs/warden/permission"
)

// RoleRepository defines the role and membership store operations.
type RoleRepository interface {
	CreateRole(ctx context.Context, role *model.Role) (*model.Role, error)
	GetRole(ctx context.Context, id string) (*model.Role, error)
	GetRoleBySlug(ctx context.Context, slug string) (*model.Role, error)

	// GetRolesForUser returns every role the user is a member of.
	GetRolesForUser(ctx context.Context, userID string) ([]*model.Role, error)

	UpdateRole(ctx context.Context, id string, params UpdateRoleParams) (*model.Role, error)

	AttachUser(ctx context.Context, roleID, userID string) error
	DetachUser(ctx context.Context, roleID, userID string) error

	// DetachUserFromAll removes the user from every role and reports how
	// many memberships were dropped.
	DetachUserFromAll(ctx context.Context, userID string) (int64, error)

	DeleteRole(ctx context.Context, id string) error
}

// UpdateRoleParams defines the optional parameters for updating a role.
// Only the fields that are not nil will be updated.
type UpdateRoleParams struct {
	Name        *string
	Permissions *permission.Map
}

const roleCollection = "roles"

type roleMongoRepository struct {
	db *mongo.Database
}

// NewRoleMongoRepository creates the MongoDB repository backing roles
// and ensures its indexes.
func NewRoleMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) RoleRepository {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_ids", Value: 1}},
		},
	}

	if _, err := db.Collection(roleCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create role indexes")
	}

	return &roleMongoRepository{db: db}
}

func (r *roleMongoRepository) CreateRole(ctx context.Context, role *model.Role) (*model.Role, error) {
	now := time.Now()
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.CreatedAt = now
	role.UpdatedAt = now

	if _, err := r.db.Collection(roleCollection).InsertOne(ctx, role); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return role, nil
}

func (r *roleMongoRepository) GetRole(ctx context.Context, id string) (*model.Role, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *roleMongoRepository) GetRoleBySlug(ctx context.Context, slug string) (*model.Role, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *roleMongoRepository) GetRolesForUser(ctx context.Context, userID string) ([]*model.Role, error) {
	cursor, err := r.db.Collection(roleCollection).Find(ctx, bson.M{"user_ids": userID})
	if err != nil {
		return nil, err
	}

	var roles []*model.Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}

	return roles, nil
}

func (r *roleMongoRepository) UpdateRole(ctx context.Context, id string, params UpdateRoleParams) (*model.Role, error) {
	updateMap := bson.M{}
	if params.Name != nil {
		updateMap["name"] = *params.Name
	}
	if params.Permissions != nil {
		updateMap["permissions"] = *params.Permissions
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no role fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(roleCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var role model.Role
	if err := result.Decode(&role); err != nil {
		return nil, err
	}

	return &role, nil
}

func (r *roleMongoRepository) AttachUser(ctx context.Context, roleID, userID string) error {
	result, err := r.db.Collection(roleCollection).UpdateOne(
		ctx,
		bson.M{"_id": roleID},
		bson.M{
			"$addToSet": bson.M{"user_ids": userID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *roleMongoRepository) DetachUser(ctx context.Context, roleID, userID string) error {
	result, err := r.db.Collection(roleCollection).UpdateOne(
		ctx,
		bson.M{"_id": roleID},
		bson.M{
			"$pull": bson.M{"user_ids": userID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *roleMongoRepository) DetachUserFromAll(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Collection(roleCollection).UpdateMany(
		ctx,
		bson.M{"user_ids": userID},
		bson.M{
			"$pull": bson.M{"user_ids": userID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *roleMongoRepository) DeleteRole(ctx context.Context, id string) error {
	result, err := r.db.Collection(roleCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *roleMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.Role, error) {
	result := r.db.Collection(roleCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, result.Err()
	}

	var role model.Role
	if err := result.Decode(&role); err != nil {
		return nil, err
	}

	return &role, nil
}
