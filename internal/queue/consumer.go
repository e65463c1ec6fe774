package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogQueue is the durable queue the event logger reads from.
const LogQueue = "supply.events.log"

// DeclareTopology declares the topic exchange and the logger queue bound to
// every supply.* routing key.  It is idempotent and used by both sides.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(LogQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(LogQueue, "supply.#", Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// Consumer appends supply events to LogDir/supply.log, one line each.
// Redelivered events are recognized by event_id and written once.
type Consumer struct {
	URL    string
	LogDir string

	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
}

const seenCapacity = 4096

func NewConsumer(url, logDir string) *Consumer {
	return &Consumer{URL: url, LogDir: logDir, seen: make(map[string]struct{})}
}

// Run connects and consumes forever, reconnecting with exponential backoff
// when the broker goes away.
func (c *Consumer) Run() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("event-logger: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(conn); err != nil {
			log.Printf("event-logger: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func (c *Consumer) consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("event-logger: set QoS failed: %v", err)
	}
	if err := DeclareTopology(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(LogQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := c.Handle(d.RoutingKey, d.Body); err != nil {
			log.Printf("event-logger: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one delivery and appends it to the log file.
func (c *Consumer) Handle(routingKey string, body []byte) error {
	id, line, err := FormatLine(routingKey, body)
	if err != nil {
		return err
	}
	if !c.markSeen(id) {
		return nil
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, "supply.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// markSeen records id and reports whether it was new.  Only the most recent
// seenCapacity ids are remembered.
func (c *Consumer) markSeen(id string) bool {
	if id == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; ok {
		return false
	}
	c.seen[id] = struct{}{}
	c.ring = append(c.ring, id)
	if len(c.ring) > seenCapacity {
		delete(c.seen, c.ring[0])
		c.ring = c.ring[1:]
	}
	return true
}

// FormatLine renders an event as a single log line and returns its id.
func FormatLine(routingKey string, body []byte) (string, string, error) {
	switch routingKey {
	case RoutingJoined:
		var ev SupplyJoinedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", "", fmt.Errorf("unmarshal: %w", err)
		}
		kind := "rejoined"
		if ev.Created {
			kind = "joined"
		}
		return ev.EventID, fmt.Sprintf("[%s] Supply %s | post_id=%d | participation_id=%d | user_id=%d | unit_amount=%d | event_id=%s\n",
			ev.JoinedAt, kind, ev.PostID, ev.ParticipationID, ev.UserID, ev.UnitAmount, ev.EventID), nil
	case RoutingStatusChanged:
		var ev SupplyStatusChangedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", "", fmt.Errorf("unmarshal: %w", err)
		}
		return ev.EventID, fmt.Sprintf("[%s] Supply status changed | post_id=%d | %s -> %s | reason=%s | event_id=%s\n",
			ev.ChangedAt, ev.PostID, ev.From, ev.To, ev.Reason, ev.EventID), nil
	}
	return "", "", fmt.Errorf("unknown routing key %q", routingKey)
}
