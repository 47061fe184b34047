package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

type identityGormRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewIdentityGormRepository returns the relational IdentityRepository.
// When migrate is set the identities table is created or updated first.
func NewIdentityGormRepository(
	logger *zerolog.Logger,
	db *gorm.DB,
	timeout time.Duration,
	migrate bool,
) IdentityRepository {
	if migrate {
		if err := db.AutoMigrate(&model.Identity{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate identities table")
		}
	}

	return &identityGormRepository{db: db, timeout: timeout}
}

func (r *identityGormRepository) Create(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		return nil, translateGormError(err)
	}

	return identity, nil
}

func (r *identityGormRepository) FindAnyByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.findOne(ctx, false, "id = ?", id)
}

func (r *identityGormRepository) FindActiveByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.findOne(ctx, true, "id = ?", id)
}

func (r *identityGormRepository) FindAnyByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.findOne(ctx, false, "email = ?", email)
}

func (r *identityGormRepository) FindActiveByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.findOne(ctx, true, "email = ?", email)
}

func (r *identityGormRepository) FindAnyByPhone(ctx context.Context, phone string) (*model.Identity, error) {
	return r.findOne(ctx, false, "phone_number = ?", phone)
}

func (r *identityGormRepository) FindActiveByPhone(ctx context.Context, phone string) (*model.Identity, error) {
	return r.findOne(ctx, true, "phone_number = ?", phone)
}

func (r *identityGormRepository) FindByEmailOrProviderID(
	ctx context.Context,
	email string,
	provider model.AuthProvider,
	providerID string,
) (*model.Identity, error) {
	column := model.ProviderIDColumn(provider)
	if column == "" || providerID == "" {
		return r.findOne(ctx, false, "email = ?", email)
	}

	return r.findOne(ctx, false, fmt.Sprintf("email = ? OR %s = ?", column), email, providerID)
}

func (r *identityGormRepository) UpdateOAuthLink(
	ctx context.Context,
	id string,
	params UpdateOAuthLinkParams,
) (*model.Identity, error) {
	set, ok := params.columns()
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", params.Provider)
	}

	return r.updateReturning(ctx, set, "id = ?", id)
}

func (r *identityGormRepository) UpdatePasswordByIdentifier(
	ctx context.Context,
	identifier string,
	params UpdatePasswordParams,
) (*model.Identity, error) {
	return r.updateReturning(ctx, map[string]any{
		"password_hash": params.PasswordHash,
		"salt":          params.Salt,
	}, "(email = ? OR phone_number = ?) AND is_deleted = ?", identifier, identifier, false)
}

func (r *identityGormRepository) UpdateEmail(ctx context.Context, id, email string) (*model.Identity, error) {
	return r.updateReturning(ctx, map[string]any{"email": email}, "id = ?", id)
}

func (r *identityGormRepository) UpdatePhone(ctx context.Context, id, phone string) (*model.Identity, error) {
	return r.updateReturning(ctx, map[string]any{"phone_number": phone},
		"id = ? AND is_active = ? AND is_deleted = ?", id, true, false)
}

func (r *identityGormRepository) UpdateProfile(
	ctx context.Context,
	id string,
	params UpdateProfileParams,
) (*model.Identity, error) {
	if params.empty() {
		return nil, ErrNothingToUpdate
	}

	values := map[string]any{}
	if params.FirstName != nil {
		values["first_name"] = *params.FirstName
	}
	if params.LastName != nil {
		values["last_name"] = *params.LastName
	}
	if params.ProfileImage != nil {
		values["profile_image"] = *params.ProfileImage
	}

	return r.updateReturning(ctx, values, "id = ? AND is_deleted = ?", id, false)
}

func (r *identityGormRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Identity{}).Count(&n).Error; err != nil {
		return 0, translateGormError(err)
	}

	return n, nil
}

func (r *identityGormRepository) WithinTransaction(
	ctx context.Context,
	fn func(ctx context.Context, repo IdentityRepository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &identityGormRepository{db: tx, timeout: r.timeout})
	})
}

func (r *identityGormRepository) findOne(
	ctx context.Context,
	activeOnly bool,
	query string,
	args ...any,
) (*model.Identity, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	q := r.db.WithContext(ctx).Where(query, args...)
	if activeOnly {
		q = q.Where("is_active = ? AND is_deleted = ?", true, false)
	}

	var identity model.Identity
	if err := q.First(&identity).Error; err != nil {
		return nil, translateGormError(err)
	}

	return &identity, nil
}

// updateReturning applies values to the rows matching query and returns the
// first updated row using UPDATE ... RETURNING.
func (r *identityGormRepository) updateReturning(
	ctx context.Context,
	values map[string]any,
	query string,
	args ...any,
) (*model.Identity, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	values["updated_at"] = time.Now()

	var updated []model.Identity
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where(query, args...).
		Updates(values).Error
	if err != nil {
		return nil, translateGormError(err)
	}
	if len(updated) == 0 {
		return nil, ErrNotFound
	}

	return &updated[0], nil
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isGormDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return apperror.Dependency("identity store", err)
	}
}

func isGormDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
