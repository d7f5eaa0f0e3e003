package courses

import (
	"context"

	"github.com/meltforce/fitcourse/internal/models"
	"github.com/meltforce/fitcourse/internal/remote"
)

// GetProfile returns the stored profile, falling back to what the identity
// carries when none was written yet.
func (r *Repository) GetProfile(ctx context.Context, id *models.Identity) (*models.User, error) {
	if id == nil {
		return nil, nil
	}
	u := models.User{UID: id.UID}
	ok, err := r.store.Read(ctx, remote.User(id.UID), &u)
	if err != nil {
		return nil, unavailable("fetching profile", err)
	}
	u.UID = id.UID
	if !ok {
		u.Email = id.Email
		u.DisplayName = id.DisplayName
	}
	return &u, nil
}

// EnsureProfile writes the initial profile node after sign-up. An existing
// profile is left untouched.
func (r *Repository) EnsureProfile(ctx context.Context, id *models.Identity) error {
	if id == nil {
		return nil
	}
	var existing models.User
	ok, err := r.store.Read(ctx, remote.User(id.UID), &existing)
	if err != nil {
		return unavailable("fetching profile", err)
	}
	if ok {
		return nil
	}
	u := models.User{Email: id.Email, DisplayName: id.DisplayName}
	if err := r.store.Write(ctx, remote.User(id.UID), u); err != nil {
		return unavailable("creating profile", err)
	}
	return nil
}

// SetDisplayName stores a custom display name. An empty name clears it.
func (r *Repository) SetDisplayName(ctx context.Context, id *models.Identity, name string) (*models.User, error) {
	u, err := r.GetProfile(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	u.CustomDisplayName = name
	if err := r.store.Write(ctx, remote.User(id.UID), u); err != nil {
		return nil, unavailable("updating profile", err)
	}
	return u, nil
}
