package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const activityQueueName = "marketplace.activity"

// ActivityLog appends one line per event to a file.  Writes are serialized
// so lines never interleave.
type ActivityLog struct {
	mu   sync.Mutex
	path string
}

// NewActivityLog returns a log writing to dir/activity.log.
func NewActivityLog(dir string) *ActivityLog {
	return &ActivityLog{path: filepath.Join(dir, "activity.log")}
}

// StartActivityConsumer connects to RabbitMQ, binds a durable queue to every
// key on exchange, and appends each message to the activity log.  It runs a
// reconnect loop and only returns when ctx is cancelled.
func StartActivityConsumer(ctx context.Context, url, exchange string, out *ActivityLog) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("activity consumer: failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, exchange, out)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("activity consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, exchange string, out *ActivityLog) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("activity consumer: set QoS failed", "error", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(activityQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "#", exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := out.Record(d.RoutingKey, d.Body); err != nil {
			slog.Warn("activity consumer: handle message failed", "error", err, "routing_key", d.RoutingKey)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Record formats one event and appends it to the log file.
func (l *ActivityLog) Record(key string, body []byte) error {
	line, err := FormatEvent(key, body)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders a single human-friendly line for the event body.
// Unknown keys are rejected.
func FormatEvent(key string, body []byte) (string, error) {
	switch key {
	case KeyRequestCreated, KeyRequestAccepted, KeyRequestRejected:
		var ev RequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] %s | request_id=%d | user_id=%d | provider_user_id=%d | status=%s\n",
			ev.OccurredAt, key, ev.RequestID, ev.UserID, ev.ProviderUserID, ev.Status), nil
	case KeyUserPurged:
		var ev UserPurgedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] %s | user_id=%d | email=%q | admin_id=%d | requests_deleted=%d | image_released=%t\n",
			ev.OccurredAt, key, ev.UserID, ev.Email, ev.AdminID, ev.RequestsDeleted, ev.ImageReleased), nil
	}
	return "", fmt.Errorf("unknown routing key %q", key)
}
