package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/isdelr/nukta-be/internal/database"
	"github.com/isdelr/nukta-be/internal/models"
	"github.com/isdelr/nukta-be/internal/store"
)

func newSQLStore(t *testing.T) store.Store {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() error = %v", err)
	}
	s := store.NewSQLStore(db)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

var backends = map[string]func(t *testing.T) store.Store{
	"memory": func(*testing.T) store.Store { return store.NewMemoryStore() },
	"sqlite": newSQLStore,
}

func seedUser(t *testing.T, s store.Store, id, email string) models.User {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{ID: id, Name: "User " + id, Email: email, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", id, err)
	}
	return user
}

func newPost(id, slug, owner, status string, created time.Time) models.Post {
	return models.Post{
		ID: id, Slug: slug, Title: "Title " + slug, Content: "<p>" + slug + "</p>",
		Status: status, UserID: owner, CreatedAt: created, UpdatedAt: created,
	}
}

func TestUsers(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			seedUser(t, s, "u1", "a@example.com")

			got, err := s.FindUserByEmail(ctx, "a@example.com")
			if err != nil || got.ID != "u1" {
				t.Fatalf("FindUserByEmail() = %+v, %v", got, err)
			}
			if got.PasswordHash != "hash" {
				t.Errorf("PasswordHash = %q, want hash", got.PasswordHash)
			}
			if _, err := s.FindUserByID(ctx, "u1"); err != nil {
				t.Errorf("FindUserByID() error = %v", err)
			}
			if _, err := s.FindUserByID(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("FindUserByID(missing) error = %v, want ErrNotFound", err)
			}

			dup := models.User{ID: "u2", Name: "Other", Email: "a@example.com", PasswordHash: "x"}
			if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
				t.Errorf("CreateUser(duplicate email) error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestInsertDuplicateSlug(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			seedUser(t, s, "u1", "a@example.com")
			now := time.Now().UTC()

			if _, err := s.Insert(ctx, newPost("p1", "hello-world", "u1", "active", now)); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			second := newPost("p2", "hello-world", "u1", "active", now)
			second.Title = "Impostor"
			if _, err := s.Insert(ctx, second); !errors.Is(err, store.ErrDuplicate) {
				t.Fatalf("Insert(duplicate slug) error = %v, want ErrDuplicate", err)
			}

			got, err := s.FindBySlug(ctx, "hello-world")
			if err != nil {
				t.Fatalf("FindBySlug() error = %v", err)
			}
			if got.ID != "p1" || got.Title != "Title hello-world" {
				t.Errorf("duplicate insert mutated storage: %+v", got)
			}
		})
	}
}

func TestFindManyOrderAndFilter(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			seedUser(t, s, "u1", "a@example.com")
			seedUser(t, s, "u2", "b@example.com")

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			inserts := []models.Post{
				newPost("p1", "first", "u1", "active", base),
				newPost("p2", "second", "u2", "inactive", base.Add(time.Hour)),
				newPost("p3", "third", "u1", "active", base.Add(2*time.Hour)),
				// Same timestamp as third: insertion order breaks the tie.
				newPost("p4", "fourth", "u2", "active", base.Add(2*time.Hour)),
			}
			for _, p := range inserts {
				if _, err := s.Insert(ctx, p); err != nil {
					t.Fatalf("Insert(%s) error = %v", p.Slug, err)
				}
			}

			cases := []struct {
				filter models.PostFilter
				want   []string
			}{
				{models.PostFilter{}, []string{"fourth", "third", "second", "first"}},
				{models.PostFilter{Status: "active"}, []string{"fourth", "third", "first"}},
				{models.PostFilter{OwnerID: "u1"}, []string{"third", "first"}},
				{models.PostFilter{Status: "inactive", OwnerID: "u1"}, []string{}},
			}
			for _, tc := range cases {
				posts, err := s.FindMany(ctx, tc.filter)
				if err != nil {
					t.Fatalf("FindMany(%+v) error = %v", tc.filter, err)
				}
				got := make([]string, len(posts))
				for i, p := range posts {
					got[i] = p.Slug
				}
				if len(got) != len(tc.want) {
					t.Errorf("FindMany(%+v) = %v, want %v", tc.filter, got, tc.want)
					continue
				}
				for i := range got {
					if got[i] != tc.want[i] {
						t.Errorf("FindMany(%+v) = %v, want %v", tc.filter, got, tc.want)
						break
					}
				}
			}
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			seedUser(t, s, "u1", "a@example.com")
			created := time.Now().UTC().Add(-time.Minute)
			post := newPost("p1", "hello-world", "u1", "active", created)
			post.FeaturedImage = "/uploads/old.png"
			if _, err := s.Insert(ctx, post); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}

			title, img := "New title", "/uploads/new.png"
			updated, err := s.Update(ctx, "hello-world", models.PostUpdate{Title: &title, FeaturedImage: &img})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if updated.Title != title || updated.FeaturedImage != img {
				t.Errorf("Update() = %+v", updated)
			}
			if updated.Content != post.Content || updated.Status != "active" {
				t.Errorf("Update() touched fields it was not given: %+v", updated)
			}
			if !updated.UpdatedAt.After(created) {
				t.Errorf("UpdatedAt = %v, want after %v", updated.UpdatedAt, created)
			}

			if _, err := s.Update(ctx, "missing", models.PostUpdate{Title: &title}); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
			}

			if err := s.Delete(ctx, "hello-world"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.FindBySlug(ctx, "hello-world"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("FindBySlug(deleted) error = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "hello-world"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListMediaRefs(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			seedUser(t, s, "u1", "a@example.com")
			now := time.Now().UTC()

			withImage := newPost("p1", "with-image", "u1", "active", now)
			withImage.FeaturedImage = "/uploads/a.png"
			other := newPost("p2", "other-image", "u1", "inactive", now)
			other.FeaturedImage = "/uploads/b.webp"
			for _, p := range []models.Post{withImage, other, newPost("p3", "plain", "u1", "active", now)} {
				if _, err := s.Insert(ctx, p); err != nil {
					t.Fatalf("Insert(%s) error = %v", p.Slug, err)
				}
			}

			refs, err := s.ListMediaRefs(ctx)
			if err != nil {
				t.Fatalf("ListMediaRefs() error = %v", err)
			}
			sort.Strings(refs)
			if len(refs) != 2 || refs[0] != "/uploads/a.png" || refs[1] != "/uploads/b.webp" {
				t.Errorf("ListMediaRefs() = %v", refs)
			}
		})
	}
}
