package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

const (
	defaultBatchSize = 10
	defaultBlock     = 5 * time.Second
)

// Subscriber reads the ledger stream through a consumer group with
// at-least-once delivery: handler failures leave the message un-ACKed so the
// group redelivers it.
type Subscriber struct {
	client *redis.Client
	cfg    SubscriberConfig
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
}

func NewSubscriber(client *redis.Client, cfg SubscriberConfig) *Subscriber {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = defaultBlock
	}
	return &Subscriber{client: client, cfg: cfg}
}

// Start creates the consumer group if needed and consumes until ctx is
// cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Printf("Subscriber started: stream=%s, group=%s, consumer=%s",
		s.cfg.Stream, s.cfg.Group, s.cfg.Consumer)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Subscriber stopping: %s", s.cfg.Stream)
			return ctx.Err()
		default:
			if err := s.consumeBatch(ctx); err != nil {
				log.Printf("Error reading messages: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) consumeBatch(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.BatchSize,
		Block:    s.cfg.BlockDuration,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := s.dispatch(ctx, message); err != nil {
				// Left un-ACKed for redelivery.
				log.Printf("Failed to process message %s: %v", message.ID, err)
				continue
			}
			if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, message.ID).Err(); err != nil {
				log.Printf("Failed to ACK message %s: %v", message.ID, err)
			}
		}
	}
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, message redis.XMessage) error {
	payload, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return s.cfg.Handler(ctx, event)
}
