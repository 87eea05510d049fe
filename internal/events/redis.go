package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "attendance:lesson_events"

// RedisPublisher складывает события JSON-ом в Redis список (LPUSH).
// Потребитель забирает их через BRPOP.
type RedisPublisher struct {
	client *redis.Client
	key    string
}

// NewRedisPublisher публикатор поверх готового клиента
func NewRedisPublisher(client *redis.Client, key string) *RedisPublisher {
	if key == "" {
		key = defaultKey
	}
	return &RedisPublisher{client: client, key: key}
}

// NewRedisClient клиент с короткими таймаутами: публикация не должна
// задерживать переходы состояний
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

func (p *RedisPublisher) Publish(ctx context.Context, event model.LessonEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.LPush(ctx, p.key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", p.key, err)
	}
	return nil
}

// Healthy проверяет доступность Redis
func (p *RedisPublisher) Healthy(ctx context.Context) bool {
	return p.client.Ping(ctx).Err() == nil
}

// Consume читает события из списка до отмены ctx
func (p *RedisPublisher) Consume(ctx context.Context) <-chan model.LessonEvent {
	out := make(chan model.LessonEvent)
	go func() {
		defer close(out)
		for {
			res, err := p.client.BRPop(ctx, 5*time.Second, p.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			event, err := Decode([]byte(res[1]))
			if err != nil {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Encode сериализует событие
func Encode(event model.LessonEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode lesson event: %w", err)
	}
	return payload, nil
}

// Decode разбирает событие из JSON
func Decode(payload []byte) (model.LessonEvent, error) {
	var event model.LessonEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return model.LessonEvent{}, fmt.Errorf("decode lesson event: %w", err)
	}
	return event, nil
}
