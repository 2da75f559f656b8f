// Package directory tracks who is registered and which group they belong to.
package directory

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flexway/flextea/internal/models"
	"github.com/flexway/flextea/internal/store"
)

// Directory maps user identities to verification status and group membership.
type Directory struct {
	store  store.DataStore
	logger zerolog.Logger
}

// New creates a Directory over the given store.
func New(s store.DataStore, logger zerolog.Logger) *Directory {
	return &Directory{store: s, logger: logger}
}

// Lookup returns the user's record, or nil if they have never registered.
func (d *Directory) Lookup(ctx context.Context, userID int64) (*models.User, error) {
	return d.store.GetUser(ctx, userID)
}

// IsRegistered reports whether the user has registered.
func (d *Directory) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	u, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// Register records the user as verified under groupName, overwriting any
// previous registration. Group names are not validated beyond trimming; any
// non-empty text is accepted, including accidental command text.
func (d *Directory) Register(ctx context.Context, userID int64, groupName string) (*models.User, error) {
	u := &models.User{
		ID:    userID,
		Group: strings.TrimSpace(groupName),
		Stage: models.StageIdle,
	}
	if err := d.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}

	d.logger.Info().
		Int64("user", userID).
		Str("group", u.Group).
		Msg("user registered")

	return u, nil
}

// Save persists an updated conversation state.
func (d *Directory) Save(ctx context.Context, u *models.User) error {
	return d.store.SaveUser(ctx, u)
}

// GroupOf returns the user's group, or "" if unregistered.
func (d *Directory) GroupOf(ctx context.Context, userID int64) (string, error) {
	u, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.Group, nil
}

// MembersOfGroup returns all user IDs registered under group.
func (d *Directory) MembersOfGroup(ctx context.Context, group string) ([]int64, error) {
	return d.store.MembersOfGroup(ctx, group)
}

// AllMembers returns every registered user ID.
func (d *Directory) AllMembers(ctx context.Context) ([]int64, error) {
	return d.store.AllMembers(ctx)
}
