package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/isdelr/nukta-be/internal/models"
)

type memoryPost struct {
	post models.Post
	seq  uint64
}

// MemoryStore keeps everything in process memory. It backs DATABASE_DRIVER=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	byEmail map[string]string
	posts   map[string]memoryPost
	seq     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		posts:   make(map[string]memoryPost),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return ErrDuplicate
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) FindBySlug(_ context.Context, slug string) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mp, ok := s.posts[slug]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	return mp.post, nil
}

func (s *MemoryStore) FindMany(_ context.Context, filter models.PostFilter) ([]models.Post, error) {
	s.mu.RLock()
	matched := make([]memoryPost, 0, len(s.posts))
	for _, mp := range s.posts {
		if filter.Status != "" && mp.post.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && mp.post.UserID != filter.OwnerID {
			continue
		}
		matched = append(matched, mp)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.post.CreatedAt.Equal(b.post.CreatedAt) {
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.seq > b.seq
	})

	posts := make([]models.Post, len(matched))
	for i, mp := range matched {
		posts[i] = mp.post
	}
	return posts, nil
}

func (s *MemoryStore) Insert(_ context.Context, post models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[post.Slug]; ok {
		return models.Post{}, ErrDuplicate
	}
	s.seq++
	s.posts[post.Slug] = memoryPost{post: post, seq: s.seq}
	return post, nil
}

func (s *MemoryStore) Update(_ context.Context, slug string, upd models.PostUpdate) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mp, ok := s.posts[slug]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	applyUpdate(&mp.post, upd)
	s.posts[slug] = mp
	return mp.post, nil
}

func (s *MemoryStore) Delete(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[slug]; !ok {
		return ErrNotFound
	}
	delete(s.posts, slug)
	return nil
}

func (s *MemoryStore) ListMediaRefs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]string, 0, len(s.posts))
	for _, mp := range s.posts {
		if mp.post.FeaturedImage != "" {
			refs = append(refs, mp.post.FeaturedImage)
		}
	}
	return refs, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

func applyUpdate(post *models.Post, upd models.PostUpdate) {
	if upd.Title != nil {
		post.Title = *upd.Title
	}
	if upd.Content != nil {
		post.Content = *upd.Content
	}
	if upd.Status != nil {
		post.Status = *upd.Status
	}
	if upd.FeaturedImage != nil {
		post.FeaturedImage = *upd.FeaturedImage
	}
	post.UpdatedAt = time.Now().UTC()
}
