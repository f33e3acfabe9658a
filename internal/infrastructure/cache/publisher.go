package cache

import (
	"context"
	"encoding/json"
	"time"

	"zkloan/internal/domain/event"

	"github.com/redis/go-redis/v9"
)

const EventsChannel = "zkloan:events"

var _ event.Publisher = (*Publisher)(nil)

type envelope struct {
	ID        string          `json:"id"`
	Kind      event.Kind      `json:"kind"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher fans committed events out over Redis pub/sub, on the shared
// channel and on a per-account channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = EventsChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

func (p *Publisher) SubjectChannel(subject string) string { return p.channel + ":" + subject }

func (p *Publisher) Publish(ctx context.Context, evs ...event.Event) error {
	if len(evs) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range evs {
			b, err := json.Marshal(envelope{
				ID:        e.ID,
				Kind:      e.Kind,
				Subject:   e.Subject,
				Payload:   json.RawMessage(e.Payload),
				CreatedAt: e.CreatedAt,
			})
			if err != nil {
				return err
			}
			pipe.Publish(ctx, p.channel, b)
			if e.Subject != "" {
				pipe.Publish(ctx, p.SubjectChannel(e.Subject), b)
			}
		}
		return nil
	})
	return err
}
