package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

const identityCollection = "identities"

type identityMongoRepository struct {
	db      *mongo.Database
	timeout time.Duration
}

// NewIdentityMongoRepository returns the document-store IdentityRepository.
// Unique indexes mirror the relational schema; optional ids are sparse.
func NewIdentityMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	timeout time.Duration,
) IdentityRepository {
	collection := db.Collection(identityCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "github_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create identity indexes")
	}

	return &identityMongoRepository{db: db, timeout: timeout}
}

func (r *identityMongoRepository) collection() *mongo.Collection {
	return r.db.Collection(identityCollection)
}

func (r *identityMongoRepository) Create(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	if _, err := r.collection().InsertOne(ctx, identity); err != nil {
		return nil, translateMongoError(err)
	}

	return identity, nil
}

func (r *identityMongoRepository) FindAnyByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.findOne(ctx, false, bson.M{"_id": id})
}

func (r *identityMongoRepository) FindActiveByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.findOne(ctx, true, bson.M{"_id": id})
}

func (r *identityMongoRepository) FindAnyByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.findOne(ctx, false, bson.M{"email": email})
}

func (r *identityMongoRepository) FindActiveByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.findOne(ctx, true, bson.M{"email": email})
}

func (r *identityMongoRepository) FindAnyByPhone(ctx context.Context, phone string) (*model.Identity, error) {
	return r.findOne(ctx, false, bson.M{"phone_number": phone})
}

func (r *identityMongoRepository) FindActiveByPhone(ctx context.Context, phone string) (*model.Identity, error) {
	return r.findOne(ctx, true, bson.M{"phone_number": phone})
}

func (r *identityMongoRepository) FindByEmailOrProviderID(
	ctx context.Context,
	email string,
	provider model.AuthProvider,
	providerID string,
) (*model.Identity, error) {
	column := model.ProviderIDColumn(provider)
	if column == "" || providerID == "" {
		return r.findOne(ctx, false, bson.M{"email": email})
	}

	return r.findOne(ctx, false, bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{column: providerID},
	}})
}

func (r *identityMongoRepository) UpdateOAuthLink(
	ctx context.Context,
	id string,
	params UpdateOAuthLinkParams,
) (*model.Identity, error) {
	set, ok := params.columns()
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", params.Provider)
	}

	return r.findOneAndSet(ctx, bson.M{"_id": id}, bson.M(set))
}

func (r *identityMongoRepository) UpdatePasswordByIdentifier(
	ctx context.Context,
	identifier string,
	params UpdatePasswordParams,
) (*model.Identity, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"email": identifier},
			bson.M{"phone_number": identifier},
		},
		"is_deleted": false,
	}

	return r.findOneAndSet(ctx, filter, bson.M{
		"password_hash": params.PasswordHash,
		"salt":          params.Salt,
	})
}

func (r *identityMongoRepository) UpdateEmail(ctx context.Context, id, email string) (*model.Identity, error) {
	return r.findOneAndSet(ctx, bson.M{"_id": id}, bson.M{"email": email})
}

func (r *identityMongoRepository) UpdatePhone(ctx context.Context, id, phone string) (*model.Identity, error) {
	filter := bson.M{"_id": id, "is_active": true, "is_deleted": false}
	return r.findOneAndSet(ctx, filter, bson.M{"phone_number": phone})
}

func (r *identityMongoRepository) UpdateProfile(
	ctx context.Context,
	id string,
	params UpdateProfileParams,
) (*model.Identity, error) {
	// Build update query
	updateMap := bson.M{}
	if params.FirstName != nil {
		updateMap["first_name"] = *params.FirstName
	}
	if params.LastName != nil {
		updateMap["last_name"] = *params.LastName
	}
	if params.ProfileImage != nil {
		updateMap["profile_image"] = *params.ProfileImage
	}

	if len(updateMap) == 0 {
		return nil, ErrNothingToUpdate
	}

	return r.findOneAndSet(ctx, bson.M{"_id": id, "is_deleted": false}, updateMap)
}

func (r *identityMongoRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.collection().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, translateMongoError(err)
	}

	return n, nil
}

// WithinTransaction requires a replica set; standalone servers reject
// multi-document transactions.
func (r *identityMongoRepository) WithinTransaction(
	ctx context.Context,
	fn func(ctx context.Context, repo IdentityRepository) error,
) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return apperror.Dependency("identity store", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(sc, r)
	})

	return err
}

func (r *identityMongoRepository) findOne(ctx context.Context, activeOnly bool, filter bson.M) (*model.Identity, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if activeOnly {
		filter["is_active"] = true
		filter["is_deleted"] = false
	}

	var identity model.Identity
	if err := r.collection().FindOne(ctx, filter).Decode(&identity); err != nil {
		return nil, translateMongoError(err)
	}

	return &identity, nil
}

func (r *identityMongoRepository) findOneAndSet(ctx context.Context, filter, set bson.M) (*model.Identity, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	set["updated_at"] = time.Now()

	result := r.collection().FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var identity model.Identity
	if err := result.Decode(&identity); err != nil {
		return nil, translateMongoError(err)
	}

	return &identity, nil
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return apperror.Dependency("identity store", err)
	}
}
