package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// querier is the overlap of *sql.DB and *sql.Tx the store needs, so the same
// methods serve both direct and transaction-scoped access.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// WithTx runs fn against a store view bound to a single transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	const query = `
		SELECT id, channel_id, channel_name, last_fetched_at
		FROM slack_channels WHERE channel_id = $1
	`
	var ch Channel
	err := s.q.QueryRowContext(ctx, query, channelID).Scan(&ch.ID, &ch.ChannelID, &ch.ChannelName, &ch.LastFetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup channel %s: %w", channelID, err)
	}
	return &ch, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, channel_id, channel_name, last_fetched_at
		FROM slack_channels ORDER BY channel_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.ChannelID, &ch.ChannelName, &ch.LastFetchedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// EnsureChannel creates the channel on first discovery and renames it when
// the remote name has drifted. The ingestor is the sole writer of
// channel_name, so last-writer-wins is safe.
func (s *PostgresStore) EnsureChannel(ctx context.Context, channelID, name string) (Channel, error) {
	existing, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return Channel{}, err
	}
	if existing != nil {
		if existing.ChannelName == name {
			return *existing, nil
		}
		if _, err := s.q.ExecContext(ctx, `
			UPDATE slack_channels SET channel_name = $2, updated_at = NOW() WHERE channel_id = $1
		`, channelID, name); err != nil {
			return Channel{}, fmt.Errorf("rename channel %s: %w", channelID, err)
		}
		existing.ChannelName = name
		return *existing, nil
	}

	const insert = `
		INSERT INTO slack_channels (channel_id, channel_name)
		VALUES ($1, $2)
		ON CONFLICT (channel_id) DO UPDATE SET channel_name = EXCLUDED.channel_name, updated_at = NOW()
		RETURNING id, channel_id, channel_name, last_fetched_at
	`
	var ch Channel
	if err := s.q.QueryRowContext(ctx, insert, channelID, name).Scan(&ch.ID, &ch.ChannelID, &ch.ChannelName, &ch.LastFetchedAt); err != nil {
		return Channel{}, fmt.Errorf("insert channel %s: %w", channelID, err)
	}
	return ch, nil
}

func (s *PostgresStore) SetChannelWatermark(ctx context.Context, channelID string, fetchedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE slack_channels SET last_fetched_at = $2, updated_at = NOW() WHERE channel_id = $1
	`, channelID, fetchedAt)
	if err != nil {
		return fmt.Errorf("set watermark for %s: %w", channelID, err)
	}
	return nil
}

func (s *PostgresStore) GetPersonBySlackID(ctx context.Context, slackUserID string) (*Person, error) {
	var p Person
	err := s.q.QueryRowContext(ctx, `
		SELECT id, slack_user_id, name FROM people WHERE slack_user_id = $1
	`, slackUserID).Scan(&p.ID, &p.SlackUserID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup person %s: %w", slackUserID, err)
	}
	return &p, nil
}

// CreatePerson inserts a person, returning the existing row when another
// writer got there first. The unique index on slack_user_id is the arbiter.
func (s *PostgresStore) CreatePerson(ctx context.Context, slackUserID, name string) (Person, error) {
	const insert = `
		INSERT INTO people (slack_user_id, name)
		VALUES ($1, $2)
		ON CONFLICT (slack_user_id) DO NOTHING
		RETURNING id, slack_user_id, name
	`
	var p Person
	err := s.q.QueryRowContext(ctx, insert, slackUserID, name).Scan(&p.ID, &p.SlackUserID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		existing, lookupErr := s.GetPersonBySlackID(ctx, slackUserID)
		if lookupErr != nil {
			return Person{}, lookupErr
		}
		if existing == nil {
			return Person{}, fmt.Errorf("person %s vanished after conflicting insert", slackUserID)
		}
		return *existing, nil
	}
	if err != nil {
		return Person{}, fmt.Errorf("insert person %s: %w", slackUserID, err)
	}
	return p, nil
}

// CreateMessage inserts a message and reports whether a row was actually
// written. A conflicting slack_message_id is a benign duplicate, not an error.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg Message) (bool, error) {
	const insert = `
		INSERT INTO messages (slack_message_id, channel_id, user_id, content, timestamp, thread_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slack_message_id) DO NOTHING
	`
	result, err := s.q.ExecContext(ctx, insert,
		msg.SlackMessageID, msg.ChannelID, msg.UserID, msg.Content, msg.Timestamp, msg.ThreadTS,
	)
	if err != nil {
		return false, fmt.Errorf("insert message %s: %w", msg.SlackMessageID, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message %s: %w", msg.SlackMessageID, err)
	}
	return inserted > 0, nil
}

func (s *PostgresStore) CountMessages(ctx context.Context, channelID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE channel_id = $1`, channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages for %s: %w", channelID, err)
	}
	return count, nil
}

// ListMessagesForIndex reads the full archive in the denormalized shape the
// search index wants. Used for reindexing after the index was wiped or added.
func (s *PostgresStore) ListMessagesForIndex(ctx context.Context) ([]IndexedMessage, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT m.slack_message_id, m.channel_id, c.channel_name, p.name, m.content, m.timestamp
		FROM messages m
		JOIN people p ON p.id = m.user_id
		JOIN slack_channels c ON c.channel_id = m.channel_id
		ORDER BY m.timestamp
	`)
	if err != nil {
		return nil, fmt.Errorf("list messages for index: %w", err)
	}
	defer rows.Close()

	var out []IndexedMessage
	for rows.Next() {
		var im IndexedMessage
		if err := rows.Scan(&im.SlackMessageID, &im.ChannelID, &im.ChannelName, &im.Author, &im.Content, &im.Timestamp); err != nil {
			return nil, fmt.Errorf("scan indexed message: %w", err)
		}
		out = append(out, im)
	}
	return out, rows.Err()
}
