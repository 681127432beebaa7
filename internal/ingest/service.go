// Package ingest is the ingestion engine: it discovers Slack channels,
// pages through their history since the last watermark, resolves authors,
// and persists messages idempotently, one transaction per channel.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"backscroll/ingestor/internal/search"
	"backscroll/ingestor/internal/slack"
	"backscroll/ingestor/internal/store"
)

const historyPageLimit = 1000

// SlackAPI is the remote surface the engine consumes. *slack.Client
// implements it; tests substitute fakes.
type SlackAPI interface {
	ListChannels(ctx context.Context) ([]slack.Channel, error)
	History(ctx context.Context, channelID string, oldest time.Time, cursor string, limit int) (slack.HistoryPage, error)
	UserInfo(ctx context.Context, userID string) (slack.User, error)
}

// ProfileCache is the optional cross-run cache for resolved display names.
type ProfileCache interface {
	GetName(ctx context.Context, slackUserID string) (string, error)
	SetName(ctx context.Context, slackUserID, name string) error
}

// Archiver is the optional raw-payload sink.
type Archiver interface {
	StoreFetch(ctx context.Context, channelID string, oldest time.Time, messages []slack.Message) (string, error)
}

// Service coordinates one ingestion run. It is not safe for concurrent use;
// create one per run.
type Service struct {
	store    store.Store
	api      SlackAPI
	retry    *Retryer
	profiles ProfileCache
	search   *search.Service
	archive  Archiver
	backfill time.Duration
	now      func() time.Time

	// names memoizes users.info results for the run. Only remote lookups
	// are memoized, never person rows: a cached row could have been rolled
	// back with its channel batch, the database stays the arbiter.
	names map[string]string
}

type Options struct {
	Retry          *Retryer
	Profiles       ProfileCache
	Search         *search.Service
	Archive        Archiver
	BackfillWindow time.Duration
	Now            func() time.Time
}

func New(st store.Store, api SlackAPI, opts Options) *Service {
	if opts.Retry == nil {
		opts.Retry = NewRetryer(0, 0)
	}
	if opts.BackfillWindow <= 0 {
		opts.BackfillWindow = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    st,
		api:      api,
		retry:    opts.Retry,
		profiles: opts.Profiles,
		search:   opts.Search,
		archive:  opts.Archive,
		backfill: opts.BackfillWindow,
		now:      opts.Now,
		names:    make(map[string]string),
	}
}

// ChannelResult is one channel's outcome within a run.
type ChannelResult struct {
	ChannelID   string
	ChannelName string
	NewMessages int
	Failed      bool
}

// RunStats aggregates a whole run.
type RunStats struct {
	RunID         string
	StartedAt     time.Time
	Channels      []ChannelResult
	TotalMessages int
}

// FetchAllChannels runs discovery and then fetches every discovered channel.
// A channel failing is logged and counted as zero progress; it never aborts
// the rest of the run.
func (s *Service) FetchAllChannels(ctx context.Context) (RunStats, error) {
	stats := RunStats{RunID: uuid.NewString(), StartedAt: s.now()}

	channels, err := s.DiscoverChannels(ctx)
	if err != nil {
		return stats, fmt.Errorf("discover channels: %w", err)
	}
	log.Printf("ingest: run %s discovered %d channels", stats.RunID, len(channels))

	for _, ch := range channels {
		count, err := s.FetchChannel(ctx, ch.ChannelID)
		if err != nil {
			log.Printf("ingest: channel %s (#%s): %v", ch.ChannelID, ch.ChannelName, err)
		}
		stats.Channels = append(stats.Channels, ChannelResult{
			ChannelID:   ch.ChannelID,
			ChannelName: ch.ChannelName,
			NewMessages: count,
			Failed:      err != nil,
		})
		stats.TotalMessages += count
	}
	return stats, nil
}

// FetchChannel ingests everything since the channel's watermark and returns
// the number of newly stored messages. The watermark only advances when the
// whole batch commits; any failure leaves it untouched so the next run
// retries the same window.
func (s *Service) FetchChannel(ctx context.Context, channelID string) (int, error) {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if channel == nil {
		log.Printf("ingest: channel %s not in registry, run discovery first", channelID)
		return 0, nil
	}

	oldest := s.fetchWindow(channel)
	messages, err := s.FetchHistory(ctx, channelID, oldest)
	if err != nil {
		if skipReason := channelSkipReason(err); skipReason != "" {
			log.Printf("ingest: skipping channel %s: %s", channelID, skipReason)
			return 0, nil
		}
		return 0, fmt.Errorf("fetch history for %s: %w", channelID, err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	// Watermark moves to "now", not to the newest message ts. The next run
	// re-fetches a small trailing window, and the idempotent insert absorbs
	// the duplicates; boundary-timestamp messages cannot be missed.
	fetchedAt := s.now()

	var indexed []search.MessageRecord
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		for _, msg := range messages {
			record, err := s.storeMessage(ctx, tx, channelID, channel.ChannelName, msg)
			if err != nil {
				return err
			}
			if record != nil {
				indexed = append(indexed, *record)
			}
		}
		return tx.SetChannelWatermark(ctx, channelID, fetchedAt)
	})
	if err != nil {
		return 0, fmt.Errorf("persist channel %s: %w", channelID, err)
	}

	s.search.IndexMessages(indexed)
	if s.archive != nil {
		if key, err := s.archive.StoreFetch(ctx, channelID, oldest, messages); err != nil {
			log.Printf("ingest: archive raw fetch for %s: %v", channelID, err)
		} else {
			log.Printf("ingest: archived raw fetch for %s as %s", channelID, key)
		}
	}
	return len(indexed), nil
}

// storeMessage persists one raw message. It returns the index record for a
// newly inserted row, nil for skips and benign duplicates.
func (s *Service) storeMessage(ctx context.Context, tx store.Store, channelID, channelName string, msg slack.Message) (*search.MessageRecord, error) {
	// Joins, topic changes and other events arrive without text or user;
	// they are not user messages and are dropped silently.
	if msg.Text == "" || msg.TS == "" || msg.User == "" {
		return nil, nil
	}
	ts := msg.Time()
	if ts.IsZero() {
		log.Printf("ingest: skipping message with malformed ts %q in %s", msg.TS, channelID)
		return nil, nil
	}

	person, err := s.resolvePerson(ctx, tx, msg.User)
	if err != nil {
		if isRemoteFailure(err) {
			log.Printf("ingest: skipping message %s, author unresolved: %v", msg.TS, err)
			return nil, nil
		}
		return nil, err
	}

	var threadTS *string
	if msg.ThreadTS != "" {
		threadTS = &msg.ThreadTS
	}
	inserted, err := tx.CreateMessage(ctx, store.Message{
		SlackMessageID: msg.TS,
		ChannelID:      channelID,
		UserID:         person.ID,
		Content:        msg.Text,
		Timestamp:      ts,
		ThreadTS:       threadTS,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return &search.MessageRecord{
		ID:          search.DocumentID(msg.TS),
		SlackTS:     msg.TS,
		ChannelID:   channelID,
		ChannelName: channelName,
		Author:      person.Name,
		Content:     msg.Text,
		Timestamp:   ts,
	}, nil
}

// fetchWindow is the lower bound of the next fetch: the stored watermark, or
// the backfill window for a channel never fetched before.
func (s *Service) fetchWindow(channel *store.Channel) time.Time {
	if channel.LastFetchedAt != nil {
		return *channel.LastFetchedAt
	}
	return s.now().Add(-s.backfill)
}

// channelSkipReason reports the human-readable reason when err means the
// channel itself is unreachable rather than the fetch being broken.
func channelSkipReason(err error) string {
	switch slack.APIReason(err) {
	case slack.ReasonNotInChannel:
		return "not a member"
	case slack.ReasonChannelNotFound:
		return "channel not found, may have been deleted"
	}
	return ""
}
