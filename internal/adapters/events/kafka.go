// Package events publishes task lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"mealsfly_review/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes one JSON message per event, keyed by restaurant id so that
// every event for a restaurant lands on the same partition in order.
type Kafka struct {
	w messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

type wireEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	RestaurantID int64     `json:"restaurantId"`
	TaskID       int64     `json:"taskId,omitempty"`
	UserID       int64     `json:"userId,omitempty"`
	OldStatus    string    `json:"oldStatus,omitempty"`
	NewStatus    string    `json:"newStatus,omitempty"`
	ActorID      int64     `json:"actorId"`
	At           time.Time `json:"at"`
}

func encode(e domain.TaskEvent) (kafka.Message, error) {
	b, err := json.Marshal(wireEvent{
		ID:           e.ID,
		Type:         e.Type,
		RestaurantID: e.RestaurantID,
		TaskID:       e.TaskID,
		UserID:       e.UserID,
		OldStatus:    string(e.OldStatus),
		NewStatus:    string(e.NewStatus),
		ActorID:      e.ActorID,
		At:           e.At.UTC(),
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(strconv.FormatInt(e.RestaurantID, 10)),
		Value:   b,
		Time:    e.At,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, e domain.TaskEvent) error {
	m, err := encode(e)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, m)
}

func (k *Kafka) Close() error { return k.w.Close() }

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.TaskEvent) error { return nil }
func (Noop) Close() error                                    { return nil }
