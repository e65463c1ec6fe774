package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/queue"
)

// EventPublisher announces committed supply changes.  Failures are logged
// by the service and never fail the operation that triggered them.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// defaultDialTimeout bounds the broker dial when ctx carries no deadline.
const defaultDialTimeout = 3 * time.Second

// AMQPPublisher publishes JSON events to the supply.events topic exchange.
// It dials per publish, so a broker outage only costs the event.  The dial
// gives up at the ctx deadline.
type AMQPPublisher struct {
	URL string
}

func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{URL: url} }

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout(ctx)),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := queue.DeclareTopology(ch); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return ch.PublishWithContext(ctx, queue.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func dialTimeout(ctx context.Context) time.Duration {
	d, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout
	}
	if left := time.Until(d); left > 0 {
		return left
	}
	return time.Millisecond
}

func (s *SupplyService) publish(ctx context.Context, routingKey string, event any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		log.Printf("supply: publish %s failed: %v", routingKey, err)
	}
}

func (s *SupplyService) publishJoined(ctx context.Context, p *model.Participation, created bool) {
	s.publish(ctx, queue.RoutingJoined, queue.SupplyJoinedEvent{
		EventID:         uuid.NewString(),
		PostID:          p.PostID,
		ParticipationID: p.ID,
		UserID:          p.UserID,
		UnitAmount:      p.UnitAmount,
		Created:         created,
		JoinedAt:        p.JoinedAt.UTC().Format(time.RFC3339),
	})
}

func (s *SupplyService) publishStatusChange(ctx context.Context, postID uint64, c statusChange) {
	s.publish(ctx, queue.RoutingStatusChanged, queue.SupplyStatusChangedEvent{
		EventID:   uuid.NewString(),
		PostID:    postID,
		From:      c.from.String(),
		To:        c.to.String(),
		Reason:    c.reason,
		ChangedAt: s.now().UTC().Format(time.RFC3339),
	})
}
