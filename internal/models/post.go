package models

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ValidStatus reports whether s is a known post status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive
}

// Post is a blog post. FeaturedImage is the media ref of the post's own image, or empty.
type Post struct {
	ID            string    `json:"id" bson:"_id"`
	Slug          string    `json:"slug" bson:"slug"`
	Title         string    `json:"title" bson:"title"`
	Content       string    `json:"content" bson:"content"`
	FeaturedImage string    `json:"featuredImage,omitempty" bson:"featuredImage,omitempty"`
	Status        string    `json:"status" bson:"status"`
	UserID        string    `json:"userId" bson:"userId"`
	Author        *Author   `json:"author,omitempty" bson:"-"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// PostFilter narrows a post listing. Empty fields match everything.
type PostFilter struct {
	Status  string
	OwnerID string
}

// PostUpdate carries the fields an update may change. Nil fields are left alone.
type PostUpdate struct {
	Title         *string
	Content       *string
	Status        *string
	FeaturedImage *string
}

// Summary is the generated synopsis of a post. It is never stored.
type Summary struct {
	Summary   string `json:"summary"`
	PostTitle string `json:"postTitle"`
}
