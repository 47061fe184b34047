package repository

import (
	"context"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

var (
	ErrNotFound  = apperror.New(apperror.KindNotFound, "identity_not_found", "identity not found")
	ErrDuplicate = apperror.New(apperror.KindConflict, "identity_conflict", "identity already exists")

	ErrNothingToUpdate = apperror.Validation("empty_update", "no identity fields to update")
)

// IdentityRepository defines the interface for identity-related database operations.
//
// FindActive* methods only return identities that are active and not
// deleted; FindAny* methods apply no such filter.
type IdentityRepository interface {
	Create(ctx context.Context, identity *model.Identity) (*model.Identity, error)

	FindAnyByID(ctx context.Context, id string) (*model.Identity, error)
	FindActiveByID(ctx context.Context, id string) (*model.Identity, error)
	FindAnyByEmail(ctx context.Context, email string) (*model.Identity, error)
	FindActiveByEmail(ctx context.Context, email string) (*model.Identity, error)
	FindAnyByPhone(ctx context.Context, phone string) (*model.Identity, error)
	FindActiveByPhone(ctx context.Context, phone string) (*model.Identity, error)

	// FindByEmailOrProviderID returns the first identity whose email matches
	// or whose external id for provider matches, in a single query.
	FindByEmailOrProviderID(
		ctx context.Context,
		email string,
		provider model.AuthProvider,
		providerID string,
	) (*model.Identity, error)

	UpdateOAuthLink(ctx context.Context, id string, params UpdateOAuthLinkParams) (*model.Identity, error)

	// UpdatePasswordByIdentifier sets a new hash and salt on the identity
	// whose email or phone equals identifier and returns the updated row.
	UpdatePasswordByIdentifier(
		ctx context.Context,
		identifier string,
		params UpdatePasswordParams,
	) (*model.Identity, error)

	UpdateEmail(ctx context.Context, id, email string) (*model.Identity, error)
	UpdatePhone(ctx context.Context, id, phone string) (*model.Identity, error)
	UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (*model.Identity, error)

	Count(ctx context.Context) (int64, error)

	// WithinTransaction runs fn in one unit of work. fn receives a repository
	// bound to that unit; any error rolls the whole unit back.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repo IdentityRepository) error) error
}

// UpdateOAuthLinkParams defines the fields refreshed when an existing
// federated identity signs in again.
type UpdateOAuthLinkParams struct {
	Provider     model.AuthProvider
	ProviderID   string
	AccessToken  string
	// ProfileImage is left untouched when empty.
	ProfileImage string
}

// UpdatePasswordParams defines a replacement password hash.
type UpdatePasswordParams struct {
	PasswordHash string
	Salt         string
}

// UpdateProfileParams defines the optional parameters for updating a profile.
// Only the fields that are not nil will be updated.
type UpdateProfileParams struct {
	FirstName    *string
	LastName     *string
	ProfileImage *string
}

func (p UpdateProfileParams) empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.ProfileImage == nil
}

// columns returns the fields to set for the link, or false when the
// provider has no id column.
func (p UpdateOAuthLinkParams) columns() (map[string]any, bool) {
	var idColumn, tokenColumn string
	switch p.Provider {
	case model.ProviderGoogle:
		idColumn, tokenColumn = "google_id", "google_access_token"
	case model.ProviderGithub:
		idColumn, tokenColumn = "github_id", "github_access_token"
	default:
		return nil, false
	}

	set := map[string]any{
		idColumn:        p.ProviderID,
		tokenColumn:     p.AccessToken,
		"auth_provider": p.Provider,
	}
	if p.ProfileImage != "" {
		set["profile_image"] = p.ProfileImage
	}
	return set, true
}
