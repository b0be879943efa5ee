// Package redis publishes learning events to a Redis pub/sub channel so that
// notification services can react to rewards, broken streaks and mastered items.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/lexis-api/internal/events"
)

// publishClient is the subset of *goredis.Client the publisher needs.
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Publisher implements events.EventHandler by publishing each event as JSON.
type Publisher struct {
	client  publishClient
	channel string
	logger  *slog.Logger
}

// Options configures Connect.
type Options struct {
	Addr        string
	Channel     string
	DialTimeout time.Duration
}

// Connect dials Redis, checks the connection and returns a Publisher along
// with the client so that the caller can close it on shutdown.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*Publisher, *goredis.Client, error) {
	if opts.Addr == "" {
		return nil, nil, fmt.Errorf("missing redis address")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		DialTimeout: opts.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewPublisher(rdb, opts.Channel, logger), rdb, nil
}

// NewPublisher creates a Publisher over an existing client.
func NewPublisher(client publishClient, channel string, logger *slog.Logger) *Publisher {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if channel == "" {
		channel = "lexis.events"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "redis_publisher")),
	}
}

// HandleEvent implements events.EventHandler.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	p.logger.Debug("published event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("channel", p.channel))
	return nil
}

var _ events.EventHandler = (*Publisher)(nil)
