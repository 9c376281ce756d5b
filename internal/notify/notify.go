// Package notify hands created notifications to whatever delivers them to
// users. Delivery is best effort: the notification row is already stored.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"booking-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// Message is the wire form published for every notification.
type Message struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"userId"`
	BookingID string                  `json:"bookingId"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	FiredAt   time.Time               `json:"firedAt"`
}

func newMessage(n *models.Notification) Message {
	return Message{
		ID:        n.ID,
		UserID:    n.RecipientUserID,
		BookingID: n.BookingID,
		Type:      n.Type,
		Message:   n.Message,
		FiredAt:   n.FiredAt,
	}
}

// RedisPublisher publishes notifications on a per-user pub/sub channel
// "<prefix>:<userId>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(userID string) string {
	return fmt.Sprintf("%s:%s", p.prefix, userID)
}

func (p *RedisPublisher) Deliver(ctx context.Context, n *models.Notification) error {
	const op = "notify.RedisPublisher.Deliver"

	data, err := json.Marshal(newMessage(n))
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	if err := p.client.Publish(ctx, p.Channel(n.RecipientUserID), data).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogNotifier writes notifications to the log. Used when Redis is off.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Deliver(_ context.Context, n *models.Notification) error {
	l.log.Info("notification",
		slog.String("id", n.ID),
		slog.String("user_id", n.RecipientUserID),
		slog.String("booking_id", n.BookingID),
		slog.String("type", string(n.Type)),
		slog.String("message", n.Message),
	)

	return nil
}
