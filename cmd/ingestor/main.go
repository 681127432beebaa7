package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"backscroll/ingestor/internal/archive"
	"backscroll/ingestor/internal/cache"
	"backscroll/ingestor/internal/config"
	"backscroll/ingestor/internal/ingest"
	"backscroll/ingestor/internal/search"
	"backscroll/ingestor/internal/slack"
	"backscroll/ingestor/internal/store"
)

func main() {
	channelFlag := flag.String("channel", "", "fetch a single channel by its Slack ID (skips discovery)")
	flag.Parse()

	cfg := config.Load()
	if cfg.SlackToken == "" {
		log.Fatal("SLACK_API_TOKEN is required")
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	client := slack.NewClient(cfg.SlackAPIURL, cfg.SlackToken)

	opts := ingest.Options{
		Retry:          ingest.NewRetryer(cfg.RetryAttempts, cfg.RetryBaseDelay),
		BackfillWindow: cfg.BackfillWindow,
	}

	if cfg.RedisURL != "" {
		profiles, err := cache.NewProfileStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer profiles.Close()
		opts.Profiles = profiles
	}

	if cfg.MeiliURL != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchService := search.NewService(meiliClient)
		if indexed, err := dataStore.ListMessagesForIndex(ctx); err != nil {
			log.Printf("search: load messages for reindex: %v", err)
		} else {
			searchService.ReindexIfEmpty(indexed)
		}
		opts.Search = searchService
	}

	if cfg.MinioEndpoint != "" {
		raw, err := archive.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		opts.Archive = raw
	}

	engine := ingest.New(dataStore, client, opts)

	if *channelFlag != "" {
		count, err := engine.FetchChannel(ctx, *channelFlag)
		if err != nil {
			log.Fatalf("fetch channel %s: %v", *channelFlag, err)
		}
		fmt.Printf("%s: %d new messages\n", *channelFlag, count)
		return
	}

	stats, err := engine.FetchAllChannels(ctx)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	for i, ch := range stats.Channels {
		status := ""
		if ch.Failed {
			status = " (failed)"
		}
		fmt.Printf("[%d/%d] #%s (%s): %d new messages%s\n",
			i+1, len(stats.Channels), ch.ChannelName, ch.ChannelID, ch.NewMessages, status)
	}
	fmt.Printf("fetched %d total messages from %d channels\n", stats.TotalMessages, len(stats.Channels))
}
