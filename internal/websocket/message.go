package websocket

import (
	"encoding/json"

	"github.com/isdelr/nukta-be/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// FeedPayload is the payload of post feed messages.
type FeedPayload struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	UserID string `json:"userId"`
}

// NewPostEventMessage encodes a post event for the wire.
func NewPostEventMessage(e models.PostEvent) ([]byte, error) {
	return json.Marshal(Message{
		Action:  e.Action,
		Payload: FeedPayload{Slug: e.Slug, Title: e.Title, UserID: e.UserID},
	})
}
