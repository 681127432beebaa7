package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"backscroll/ingestor/internal/slack"
	"backscroll/ingestor/internal/store"
)

// resolvePerson maps a Slack user ID to a person row, creating the row on
// first sight. The display name comes from the run memo, then the optional
// Redis cache, then users.info; the database unique constraint decides who
// wins when parallel writers race on the same new user.
func (s *Service) resolvePerson(ctx context.Context, tx store.Store, slackUserID string) (store.Person, error) {
	existing, err := tx.GetPersonBySlackID(ctx, slackUserID)
	if err != nil {
		return store.Person{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	name, err := s.lookupDisplayName(ctx, slackUserID)
	if err != nil {
		return store.Person{}, fmt.Errorf("resolve user %s: %w", slackUserID, err)
	}

	return tx.CreatePerson(ctx, slackUserID, name)
}

func (s *Service) lookupDisplayName(ctx context.Context, slackUserID string) (string, error) {
	if name, ok := s.names[slackUserID]; ok {
		return name, nil
	}

	if s.profiles != nil {
		name, err := s.profiles.GetName(ctx, slackUserID)
		if err != nil {
			log.Printf("ingest: profile cache read for %s: %v", slackUserID, err)
		} else if name != "" {
			s.names[slackUserID] = name
			return name, nil
		}
	}

	var user slack.User
	err := s.retry.Do(ctx, func() error {
		var infoErr error
		user, infoErr = s.api.UserInfo(ctx, slackUserID)
		return infoErr
	})
	if err != nil {
		return "", err
	}

	name := user.DisplayName()
	s.names[slackUserID] = name
	if s.profiles != nil {
		if err := s.profiles.SetName(ctx, slackUserID, name); err != nil {
			log.Printf("ingest: profile cache write for %s: %v", slackUserID, err)
		}
	}
	return name, nil
}

// isRemoteFailure reports whether err came from the Slack API or transport
// rather than from the local store. Remote author-resolution failures skip
// the single message; store failures roll back the channel batch.
func isRemoteFailure(err error) bool {
	if errors.Is(err, ErrRetryExhausted) {
		return true
	}
	if slack.IsRateLimited(err) || slack.IsTransport(err) {
		return true
	}
	return slack.APIReason(err) != ""
}
