package store

import (
	"context"
	"time"
)

// Store is the persistence surface the ingestion engine runs against.
// PostgresStore implements it; tests substitute fakes.
type Store interface {
	// Channel registry
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	EnsureChannel(ctx context.Context, channelID, name string) (Channel, error)
	SetChannelWatermark(ctx context.Context, channelID string, fetchedAt time.Time) error

	// People
	GetPersonBySlackID(ctx context.Context, slackUserID string) (*Person, error)
	CreatePerson(ctx context.Context, slackUserID, name string) (Person, error)

	// Messages
	CreateMessage(ctx context.Context, msg Message) (bool, error)
	CountMessages(ctx context.Context, channelID string) (int, error)
	ListMessagesForIndex(ctx context.Context) ([]IndexedMessage, error)

	// WithTx runs fn against a view of the store bound to one transaction;
	// fn returning an error rolls the whole batch back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
