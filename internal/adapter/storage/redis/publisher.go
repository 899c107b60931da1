package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Publisher implements ports.RealtimePublisher over Redis pub/sub. Each
// auction has its own channel; the WebSocket edge subscribes and relays.
type Publisher struct {
	client *goredis.Client
	prefix string
}

// NewPublisher creates a Redis-backed realtime publisher.
func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{
		client: client,
		prefix: "auction:",
	}
}

// Channel returns the pub/sub channel name for an auction.
func (p *Publisher) Channel(auctionID uuid.UUID) string {
	return p.prefix + auctionID.String()
}

// envelope is the wire format on auction channels.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func (p *Publisher) publish(ctx context.Context, auctionID uuid.UUID, eventType string, payload interface{}) error {
	msg, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if err := p.client.Publish(ctx, p.Channel(auctionID), msg).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// PublishLeaderboardUpdate pushes the current top-K after a change.
func (p *Publisher) PublishLeaderboardUpdate(ctx context.Context, event domain.LeaderboardUpdateEvent) error {
	return p.publish(ctx, event.AuctionID, domain.EventLeaderboardUpdate, event)
}

// PublishRoundExtended announces an anti-sniping extension.
func (p *Publisher) PublishRoundExtended(ctx context.Context, event domain.RoundExtendedEvent) error {
	return p.publish(ctx, event.AuctionID, domain.EventRoundExtended, event)
}

// PublishRoundClosed announces closure with the full winner list.
func (p *Publisher) PublishRoundClosed(ctx context.Context, event domain.RoundClosedEvent) error {
	return p.publish(ctx, event.AuctionID, domain.EventRoundClosed, event)
}
