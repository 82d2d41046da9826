// Package store persists users and posts. Slug and email uniqueness are
// enforced by the backing store itself, which is the sole arbiter when
// concurrent writers race.
package store

import (
	"context"
	"errors"

	"github.com/isdelr/nukta-be/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists user accounts keyed by id, with unique emails.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	FindUserByID(ctx context.Context, id string) (models.User, error)
}

// PostStore persists posts keyed by their unique slug.
type PostStore interface {
	FindBySlug(ctx context.Context, slug string) (models.Post, error)
	// FindMany returns matching posts, newest created first.
	FindMany(ctx context.Context, filter models.PostFilter) ([]models.Post, error)
	Insert(ctx context.Context, post models.Post) (models.Post, error)
	Update(ctx context.Context, slug string, upd models.PostUpdate) (models.Post, error)
	Delete(ctx context.Context, slug string) error
	// ListMediaRefs returns every featured image currently referenced by a post.
	ListMediaRefs(ctx context.Context) ([]string, error)
}

// Store is the full persistence handle injected at startup.
type Store interface {
	UserStore
	PostStore
	Close(ctx context.Context) error
}
