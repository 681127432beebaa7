// Package search maintains the optional Meilisearch index over the message
// archive. The ingestor only writes the index; querying belongs to the rest
// of the product.
package search

import "time"

const idxMessages = "backscroll_messages"

// MessageRecord is the document shape pushed to the message index.
// ID is the slack message ts with the dot replaced, since Meilisearch
// document ids only allow [a-zA-Z0-9_-].
type MessageRecord struct {
	ID          string    `json:"id"`
	SlackTS     string    `json:"slackTs"`
	ChannelID   string    `json:"channelId"`
	ChannelName string    `json:"channelName"`
	Author      string    `json:"author"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}
