package ingest

import (
	"context"
	"fmt"

	"backscroll/ingestor/internal/slack"
	"backscroll/ingestor/internal/store"
)

// DiscoverChannels lists the channels the token is a member of and reconciles
// each against the registry: created on first sight, renamed when the remote
// name has drifted. Each reconciliation commits independently; the whole
// operation is idempotent and order-independent.
func (s *Service) DiscoverChannels(ctx context.Context) ([]store.Channel, error) {
	var remote []slack.Channel
	err := s.retry.Do(ctx, func() error {
		var listErr error
		remote, listErr = s.api.ListChannels(ctx)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	var channels []store.Channel
	for _, rc := range remote {
		if !rc.IsMember || rc.IsArchived {
			continue
		}
		ch, err := s.store.EnsureChannel(ctx, rc.ID, rc.Name)
		if err != nil {
			return nil, fmt.Errorf("reconcile channel %s: %w", rc.ID, err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
