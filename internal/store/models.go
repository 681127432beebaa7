package store

import "time"

// Channel is a Slack channel tracked by the ingestor. LastFetchedAt is the
// watermark for the next incremental fetch; nil means never fetched.
type Channel struct {
	ID            int64
	ChannelID     string
	ChannelName   string
	LastFetchedAt *time.Time
}

// Person is a Slack user seen as a message author. Created lazily on first
// sight; the name is never re-synced afterwards.
type Person struct {
	ID          int64
	SlackUserID string
	Name        string
}

// Message is one archived Slack message. SlackMessageID is the message ts,
// which Slack guarantees unique per workspace, and is the dedup key.
// ProjectID is assigned by other parts of the product, never by the ingestor.
type Message struct {
	ID             int64
	SlackMessageID string
	ChannelID      string
	UserID         int64
	Content        string
	Timestamp      time.Time
	ThreadTS       *string
	ProjectID      *int64
}

// Project exists so messages and people can be grouped by the rest of the
// product; the ingestor only guarantees the referenced rows.
type Project struct {
	ID   int64
	Name string
}

// IndexedMessage is the denormalized shape handed to the search index.
type IndexedMessage struct {
	SlackMessageID string
	ChannelID      string
	ChannelName    string
	Author         string
	Content        string
	Timestamp      time.Time
}
