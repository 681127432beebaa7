package search

import (
	"log"
	"strings"

	"backscroll/ingestor/internal/store"
)

// Service is the nil-tolerant indexing facade the ingestion coordinator
// talks to. meili may be nil when Meilisearch is not configured; every
// method degrades to a no-op then.
type Service struct {
	meili *Meili
}

func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// IndexMessages pushes freshly committed messages to the index. The write
// completes before returning so a batch run cannot exit with index writes
// still in flight; failures are logged, never surfaced.
func (s *Service) IndexMessages(records []MessageRecord) {
	if s == nil || s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	if err := s.meili.AddMessages(records); err != nil {
		log.Printf("search: index %d messages: %v", len(records), err)
	}
}

// ReindexIfEmpty rebuilds the index from the archive when the index has no
// documents, e.g. after Meilisearch was added to an existing deployment.
func (s *Service) ReindexIfEmpty(messages []store.IndexedMessage) {
	if s == nil || s.meili == nil || !s.meili.Healthy() || !s.meili.IndexEmpty() {
		return
	}
	records := make([]MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, RecordFromIndexed(m))
	}
	if err := s.meili.AddMessages(records); err != nil {
		log.Printf("search: reindex %d messages: %v", len(records), err)
		return
	}
	log.Printf("search: reindexed %d messages", len(records))
}

// RecordFromIndexed maps a stored message to its index document.
func RecordFromIndexed(m store.IndexedMessage) MessageRecord {
	return MessageRecord{
		ID:          DocumentID(m.SlackMessageID),
		SlackTS:     m.SlackMessageID,
		ChannelID:   m.ChannelID,
		ChannelName: m.ChannelName,
		Author:      m.Author,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
	}
}

// DocumentID converts a slack ts into a Meilisearch-safe document id.
func DocumentID(slackTS string) string {
	return strings.ReplaceAll(slackTS, ".", "-")
}
