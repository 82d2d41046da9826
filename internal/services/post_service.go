package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/media"
	"github.com/isdelr/nukta-be/internal/models"
	"github.com/isdelr/nukta-be/internal/store"
	"github.com/rs/zerolog/log"
)

// PostServiceProvider defines the post lifecycle operations.
type PostServiceProvider interface {
	Create(ctx context.Context, actor models.User, in CreatePostInput) (models.Post, error)
	Update(ctx context.Context, actor models.User, slug string, in UpdatePostInput) (models.Post, error)
	Delete(ctx context.Context, actor models.User, slug string) error
	Get(ctx context.Context, slug string) (models.Post, error)
	List(ctx context.Context, filter models.PostFilter) ([]models.Post, error)
}

// MediaStore holds featured image files.
type MediaStore interface {
	Store(ctx context.Context, up media.Upload) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Publisher receives post events after a mutation has been committed.
// Implementations must not block.
type Publisher interface {
	Publish(event models.PostEvent)
}

type CreatePostInput struct {
	Title   string
	Slug    string
	Content string
	Status  string
	Image   *media.Upload
}

// UpdatePostInput carries the requested changes. Empty strings leave a field unchanged.
type UpdatePostInput struct {
	Title   string
	Content string
	Status  string
	Image   *media.Upload
}

// PostService keeps post records and their featured images consistent.
//
// Media is written before the record that references it and removed only
// after the record no longer does. A failure between the two steps can
// leave an unreferenced file behind but never a record pointing at a
// missing file.
type PostService struct {
	posts     store.PostStore
	users     store.UserStore
	media     MediaStore
	publisher Publisher
}

// NewPostService creates a new PostService. publisher may be nil.
func NewPostService(posts store.PostStore, users store.UserStore, files MediaStore, publisher Publisher) *PostService {
	return &PostService{posts: posts, users: users, media: files, publisher: publisher}
}

// Create stores the optional image, then inserts the post.
func (s *PostService) Create(ctx context.Context, actor models.User, in CreatePostInput) (models.Post, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	rawSlug := strings.TrimSpace(in.Slug)
	if title == "" || rawSlug == "" || content == "" {
		return models.Post{}, apperror.NewValidation("Title, slug, and content are required")
	}

	postSlug := slug.Make(rawSlug)
	if postSlug == "" {
		return models.Post{}, apperror.NewValidation("Slug must contain letters or digits")
	}

	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = models.StatusActive
	}
	if !models.ValidStatus(status) {
		return models.Post{}, invalidStatus()
	}

	if _, err := s.posts.FindBySlug(ctx, postSlug); err == nil {
		return models.Post{}, apperror.NewConflict("Post with this slug already exists", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Post{}, err
	}

	var imageRef string
	if in.Image != nil {
		ref, err := s.media.Store(ctx, *in.Image)
		if err != nil {
			return models.Post{}, err
		}
		imageRef = ref
	}

	now := time.Now().UTC()
	post := models.Post{
		ID:            uuid.New().String(),
		Slug:          postSlug,
		Title:         title,
		Content:       content,
		FeaturedImage: imageRef,
		Status:        status,
		UserID:        actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.posts.Insert(ctx, post)
	if err != nil {
		if imageRef != "" {
			log.Warn().Err(err).Str("slug", postSlug).Str("media", imageRef).Msg("Post insert failed, stored media left orphaned")
		}
		if errors.Is(err, store.ErrDuplicate) {
			return models.Post{}, apperror.NewConflict("Post with this slug already exists", err)
		}
		return models.Post{}, err
	}

	log.Info().Str("slug", created.Slug).Str("user_id", actor.ID).Msg("Post created")
	s.publish(models.ActionPostCreated, created)
	created.Author = models.AuthorOf(actor)
	return created, nil
}

// Update applies the non-empty fields of in to the actor's own post. A new
// image replaces the old one, which is removed only after the record is saved.
func (s *PostService) Update(ctx context.Context, actor models.User, postSlug string, in UpdatePostInput) (models.Post, error) {
	existing, err := s.ownedPost(ctx, actor, postSlug, "update")
	if err != nil {
		return models.Post{}, err
	}

	var upd models.PostUpdate
	if title := strings.TrimSpace(in.Title); title != "" {
		upd.Title = &title
	}
	if content := strings.TrimSpace(in.Content); content != "" {
		upd.Content = &content
	}
	if status := strings.TrimSpace(in.Status); status != "" {
		if !models.ValidStatus(status) {
			return models.Post{}, invalidStatus()
		}
		upd.Status = &status
	}

	var newRef string
	if in.Image != nil {
		ref, err := s.media.Store(ctx, *in.Image)
		if err != nil {
			return models.Post{}, err
		}
		newRef = ref
		upd.FeaturedImage = &newRef
	}

	updated, err := s.posts.Update(ctx, existing.Slug, upd)
	if err != nil {
		if newRef != "" {
			log.Warn().Err(err).Str("slug", existing.Slug).Str("media", newRef).Msg("Post update failed, stored media left orphaned")
		}
		if errors.Is(err, store.ErrNotFound) {
			return models.Post{}, apperror.NewNotFound("Post not found")
		}
		return models.Post{}, err
	}

	if newRef != "" && existing.FeaturedImage != "" && existing.FeaturedImage != newRef {
		s.removeMedia(ctx, existing.FeaturedImage, existing.Slug)
	}

	log.Info().Str("slug", updated.Slug).Str("user_id", actor.ID).Msg("Post updated")
	s.publish(models.ActionPostUpdated, updated)
	updated.Author = models.AuthorOf(actor)
	return updated, nil
}

// Delete removes the actor's own post, then its image.
func (s *PostService) Delete(ctx context.Context, actor models.User, postSlug string) error {
	existing, err := s.ownedPost(ctx, actor, postSlug, "delete")
	if err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, existing.Slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Post not found")
		}
		return err
	}

	if existing.FeaturedImage != "" {
		s.removeMedia(ctx, existing.FeaturedImage, existing.Slug)
	}

	log.Info().Str("slug", existing.Slug).Str("user_id", actor.ID).Msg("Post deleted")
	s.publish(models.ActionPostDeleted, existing)
	return nil
}

// Get returns a post by slug. Reads are public.
func (s *PostService) Get(ctx context.Context, postSlug string) (models.Post, error) {
	post, err := s.posts.FindBySlug(ctx, postSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Post{}, apperror.NewNotFound("Post not found")
		}
		return models.Post{}, err
	}
	s.attachAuthors(ctx, []*models.Post{&post})
	return post, nil
}

// List returns every matching post, newest first.
func (s *PostService) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	posts, err := s.posts.FindMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	refs := make([]*models.Post, len(posts))
	for i := range posts {
		refs[i] = &posts[i]
	}
	s.attachAuthors(ctx, refs)
	return posts, nil
}

func (s *PostService) ownedPost(ctx context.Context, actor models.User, postSlug, verb string) (models.Post, error) {
	post, err := s.posts.FindBySlug(ctx, postSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Post{}, apperror.NewNotFound("Post not found")
		}
		return models.Post{}, err
	}
	if post.UserID != actor.ID {
		return models.Post{}, apperror.NewForbidden("You are not authorized to " + verb + " this post")
	}
	return post, nil
}

// removeMedia runs after the record change is committed, so failures are only logged.
func (s *PostService) removeMedia(ctx context.Context, ref, postSlug string) {
	if err := s.media.Remove(context.WithoutCancel(ctx), ref); err != nil {
		log.Warn().Err(err).Str("slug", postSlug).Str("media", ref).Msg("Failed to remove media file")
	}
}

func (s *PostService) publish(action string, post models.Post) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(models.PostEvent{
		Action: action,
		Slug:   post.Slug,
		Title:  post.Title,
		UserID: post.UserID,
	})
}

func (s *PostService) attachAuthors(ctx context.Context, posts []*models.Post) {
	authors := make(map[string]*models.Author)
	for _, p := range posts {
		author, ok := authors[p.UserID]
		if !ok {
			user, err := s.users.FindUserByID(ctx, p.UserID)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					log.Warn().Err(err).Str("user_id", p.UserID).Msg("Failed to load post author")
				}
			} else {
				author = models.AuthorOf(user)
			}
			authors[p.UserID] = author
		}
		p.Author = author
	}
}

func invalidStatus() error {
	return apperror.NewValidation("Status must be either active or inactive")
}
