package models

// Post feed actions.
const (
	ActionPostCreated = "post.created"
	ActionPostUpdated = "post.updated"
	ActionPostDeleted = "post.deleted"
)

// PostEvent announces a committed post mutation to live feed subscribers.
type PostEvent struct {
	Action string `json:"action"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	UserID string `json:"userId"`
}
