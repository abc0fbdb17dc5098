package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisPublisher broadcasts change events over a redis pub/sub channel so
// subscribers in other processes observe mutations.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	channel string
	log     *logrus.Entry
}

// NewRedisPublisher creates a publisher on an existing redis connection.
func NewRedisPublisher(rdb redis.UniversalClient, channel string, log *logrus.Entry) *RedisPublisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisPublisher{rdb: rdb, channel: channel, log: log}
}

// Publish sends the JSON-encoded event after the delay elapses. Delivery is
// fire-and-forget: a publish failure after the delay is logged, not
// returned, because the caller has long since moved on.
func (p *RedisPublisher) Publish(ctx context.Context, msg EntityChanged, delay time.Duration) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return p.rdb.Publish(ctx, p.channel, payload).Err()
	}
	time.AfterFunc(delay, func() {
		if err := p.rdb.Publish(context.Background(), p.channel, payload).Err(); err != nil {
			p.log.WithError(err).WithField("channel", p.channel).Warn("delayed publish failed")
		}
	})
	return nil
}
