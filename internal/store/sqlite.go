package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/nukta-be/internal/models"
)

// SQLStore persists users and posts in SQLite through database/sql.
// Timestamps are stored as unix nanoseconds.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open, migrated database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const postColumns = "id, slug, title, content, featured_image, status, user_id, created_at, updated_at"

func (s *SQLStore) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users(id, name, email, password_hash, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt.UnixNano(), user.UpdatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = ?", email)
	return scanUser(row)
}

func (s *SQLStore) FindUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *SQLStore) FindBySlug(ctx context.Context, slug string) (models.Post, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE slug = ?", slug)
	return scanPost(row)
}

func (s *SQLStore) FindMany(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	query := "SELECT " + postColumns + " FROM posts"
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.OwnerID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (s *SQLStore) Insert(ctx context.Context, post models.Post) (models.Post, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts("+postColumns+") VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		post.ID, post.Slug, post.Title, post.Content, post.FeaturedImage, post.Status, post.UserID,
		post.CreatedAt.UnixNano(), post.UpdatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return models.Post{}, ErrDuplicate
		}
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

func (s *SQLStore) Update(ctx context.Context, slug string, upd models.PostUpdate) (models.Post, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().UnixNano()}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *upd.Content)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.FeaturedImage != nil {
		sets = append(sets, "featured_image = ?")
		args = append(args, *upd.FeaturedImage)
	}
	args = append(args, slug)

	res, err := s.db.ExecContext(ctx, "UPDATE posts SET "+strings.Join(sets, ", ")+" WHERE slug = ?", args...)
	if err != nil {
		return models.Post{}, fmt.Errorf("update post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Post{}, ErrNotFound
	}
	return s.FindBySlug(ctx, slug)
}

func (s *SQLStore) Delete(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE slug = ?", slug)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListMediaRefs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT featured_image FROM posts WHERE featured_image <> ''")
	if err != nil {
		return nil, fmt.Errorf("query media refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var created, updated int64
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = time.Unix(0, created).UTC()
	user.UpdatedAt = time.Unix(0, updated).UTC()
	return user, nil
}

func scanPost(row rowScanner) (models.Post, error) {
	var post models.Post
	var created, updated int64
	err := row.Scan(&post.ID, &post.Slug, &post.Title, &post.Content, &post.FeaturedImage,
		&post.Status, &post.UserID, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("scan post: %w", err)
	}
	post.CreatedAt = time.Unix(0, created).UTC()
	post.UpdatedAt = time.Unix(0, updated).UTC()
	return post, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
