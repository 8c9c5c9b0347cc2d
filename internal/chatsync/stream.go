package chatsync

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	stream "github.com/GetStream/stream-chat-go/v5"
)

// StreamDirectory mirrors identities into Stream chat with the server-side
// client.
type StreamDirectory struct {
	client *stream.Client
}

// NewStreamDirectory builds the Stream client. An empty baseURL keeps the
// SDK default; a nil httpClient keeps the SDK's own.
func NewStreamDirectory(apiKey, apiSecret, baseURL string, httpClient *http.Client) (*StreamDirectory, error) {
	client, err := stream.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("stream client: %w", err)
	}
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		client.HTTP = httpClient
	}
	return &StreamDirectory{client: client}, nil
}

// Upsert creates or replaces the user in the chat directory.
func (d *StreamDirectory) Upsert(ctx context.Context, identity Identity) error {
	_, err := d.client.UpsertUser(ctx, &stream.User{
		ID:    identity.ID,
		Name:  identity.Name,
		Image: identity.Image,
	})
	if err != nil {
		return fmt.Errorf("stream upsert %s: %w", identity.ID, err)
	}
	return nil
}
