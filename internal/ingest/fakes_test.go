package ingest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"backscroll/ingestor/internal/slack"
	"backscroll/ingestor/internal/store"
)

// memStore is an in-memory store.Store with real transaction semantics:
// WithTx snapshots the state and restores it when fn fails, so rollback
// behavior is observable in tests.
type memStore struct {
	mu       sync.Mutex
	channels map[string]store.Channel
	people   map[string]store.Person
	messages map[string]store.Message
	nextID   int64

	// failOnMessageTS injects a store failure when that ts is inserted.
	failOnMessageTS string
}

func newMemStore() *memStore {
	return &memStore{
		channels: map[string]store.Channel{},
		people:   map[string]store.Person{},
		messages: map[string]store.Message{},
	}
}

func (m *memStore) addChannel(channelID, name string, lastFetchedAt *time.Time) {
	m.nextID++
	m.channels[channelID] = store.Channel{
		ID:            m.nextID,
		ChannelID:     channelID,
		ChannelName:   name,
		LastFetchedAt: lastFetchedAt,
	}
}

func (m *memStore) GetChannel(_ context.Context, channelID string) (*store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (m *memStore) ListChannels(context.Context) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Channel
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (m *memStore) EnsureChannel(_ context.Context, channelID, name string) (store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		if ch.ChannelName != name {
			ch.ChannelName = name
			m.channels[channelID] = ch
		}
		return ch, nil
	}
	m.nextID++
	ch := store.Channel{ID: m.nextID, ChannelID: channelID, ChannelName: name}
	m.channels[channelID] = ch
	return ch, nil
}

func (m *memStore) SetChannelWatermark(_ context.Context, channelID string, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s not found", channelID)
	}
	ch.LastFetchedAt = &fetchedAt
	m.channels[channelID] = ch
	return nil
}

func (m *memStore) GetPersonBySlackID(_ context.Context, slackUserID string) (*store.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[slackUserID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) CreatePerson(_ context.Context, slackUserID, name string) (store.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.people[slackUserID]; ok {
		return p, nil
	}
	m.nextID++
	p := store.Person{ID: m.nextID, SlackUserID: slackUserID, Name: name}
	m.people[slackUserID] = p
	return p, nil
}

func (m *memStore) CreateMessage(_ context.Context, msg store.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnMessageTS != "" && msg.SlackMessageID == m.failOnMessageTS {
		return false, errors.New("injected store failure")
	}
	if _, ok := m.messages[msg.SlackMessageID]; ok {
		return false, nil
	}
	m.nextID++
	msg.ID = m.nextID
	m.messages[msg.SlackMessageID] = msg
	return true, nil
}

func (m *memStore) CountMessages(_ context.Context, channelID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, msg := range m.messages {
		if msg.ChannelID == channelID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListMessagesForIndex(context.Context) ([]store.IndexedMessage, error) {
	return nil, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	m.mu.Lock()
	channels := maps.Clone(m.channels)
	people := maps.Clone(m.people)
	messages := maps.Clone(m.messages)
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.channels = channels
		m.people = people
		m.messages = messages
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// fakeAPI scripts the three Slack operations. History serves pages[channel]
// in order, handing out "cursor-N" cursors and validating the cursor the
// paginator sends back.
type fakeAPI struct {
	channels []slack.Channel
	listErr  error

	pages      map[string][]slack.HistoryPage
	historyErr map[string]error

	users   map[string]slack.User
	userErr map[string]error

	historyCalls  int
	userInfoCalls int
	lastOldest    time.Time
}

func (f *fakeAPI) ListChannels(context.Context) ([]slack.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeAPI) History(_ context.Context, channelID string, oldest time.Time, cursor string, _ int) (slack.HistoryPage, error) {
	f.historyCalls++
	f.lastOldest = oldest
	if err := f.historyErr[channelID]; err != nil {
		return slack.HistoryPage{}, err
	}

	pages := f.pages[channelID]
	idx := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor[len("cursor-"):])
		if err != nil {
			return slack.HistoryPage{}, fmt.Errorf("bad cursor %q", cursor)
		}
		idx = parsed
	}
	if idx >= len(pages) {
		return slack.HistoryPage{}, nil
	}

	page := pages[idx]
	if page.HasMore {
		page.NextCursor = "cursor-" + strconv.Itoa(idx+1)
	}
	return page, nil
}

func (f *fakeAPI) UserInfo(_ context.Context, userID string) (slack.User, error) {
	f.userInfoCalls++
	if err := f.userErr[userID]; err != nil {
		return slack.User{}, err
	}
	user, ok := f.users[userID]
	if !ok {
		return slack.User{}, &slack.APIError{Reason: "user_not_found"}
	}
	return user, nil
}

// memProfileCache is an in-memory ProfileCache.
type memProfileCache struct {
	names map[string]string
	gets  int
	sets  int
}

func (c *memProfileCache) GetName(_ context.Context, slackUserID string) (string, error) {
	c.gets++
	return c.names[slackUserID], nil
}

func (c *memProfileCache) SetName(_ context.Context, slackUserID, name string) error {
	c.sets++
	if c.names == nil {
		c.names = map[string]string{}
	}
	c.names[slackUserID] = name
	return nil
}

// noSleep makes a retryer synchronous and records requested delays.
func noSleep(r *Retryer) *[]time.Duration {
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func msg(ts, user, text string) slack.Message {
	return slack.Message{Type: "message", TS: ts, User: user, Text: text}
}
