// ABOUTME: Storage interface for inbound agent messages
// ABOUTME: Defines the message record and the sentinel errors stores return

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// InboundMessage is a message delivered to this agent by a peer.
type InboundMessage struct {
	ID             string
	FromAgent      string
	SenderName     string
	ConversationID string
	Text           string
	Timestamp      time.Time
	// Rendered marks messages already handed to the UI poll endpoint.
	Rendered bool
}

// Store persists inbound messages for the UI.
type Store interface {
	// SaveInbound records a newly received message.
	SaveInbound(ctx context.Context, msg *InboundMessage) error

	// PopLatest returns the newest unrendered message and marks it rendered.
	// Returns ErrNotFound when everything has been rendered.
	PopLatest(ctx context.Context) (*InboundMessage, error)

	// ListRecent returns up to limit messages, newest first.
	ListRecent(ctx context.Context, limit int) ([]*InboundMessage, error)

	// Close releases the underlying resources.
	Close() error
}
