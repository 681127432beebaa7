package ingest

import (
	"context"
	"time"

	"backscroll/ingestor/internal/slack"
)

// FetchHistory pulls every message in a channel with timestamp >= oldest,
// following the pagination cursor until the API reports no more pages. The
// result is fully materialized because persistence batches one transaction
// per channel. Each page request retries independently; a page failing after
// retries fails the whole fetch with no data, leaving the watermark for the
// next run.
func (s *Service) FetchHistory(ctx context.Context, channelID string, oldest time.Time) ([]slack.Message, error) {
	var all []slack.Message
	cursor := ""

	for {
		var page slack.HistoryPage
		err := s.retry.Do(ctx, func() error {
			var pageErr error
			page, pageErr = s.api.History(ctx, channelID, oldest, cursor, historyPageLimit)
			return pageErr
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Messages...)
		if !page.HasMore {
			return all, nil
		}
		cursor = page.NextCursor
	}
}
