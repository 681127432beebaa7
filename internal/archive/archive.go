// Package archive writes the raw history payload of each successful channel
// fetch to object storage, one JSON object per fetch, so the original API
// responses stay replayable independent of the relational schema.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"backscroll/ingestor/internal/slack"
)

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Service{client: client, bucket: bucket}, nil
}

// fetchPayload is the archived shape: enough context to replay the fetch.
type fetchPayload struct {
	ChannelID string          `json:"channelId"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Oldest    time.Time       `json:"oldest"`
	Messages  []slack.Message `json:"messages"`
}

// StoreFetch writes one channel fetch's raw messages under
// <channel>/<timestamp>-<id>.json and returns the object key.
func (s *Service) StoreFetch(ctx context.Context, channelID string, oldest time.Time, messages []slack.Message) (string, error) {
	payload, err := json.Marshal(fetchPayload{
		ChannelID: channelID,
		FetchedAt: time.Now().UTC(),
		Oldest:    oldest.UTC(),
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal fetch payload: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s.json",
		channelID,
		time.Now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
