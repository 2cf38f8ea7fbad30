package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/companion/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrMalformedEvent is returned by Pop for a payload that could not be
// decoded. The raw payload has been moved to the dead-letter list.
var ErrMalformedEvent = errors.New("malformed relationship event")

// EventQueue is a Redis list carrying relationship events from the API
// to the historian.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	return &EventQueue{rdb: rdb, name: name}
}

// DeadLetter is the list holding payloads Pop could not decode.
func (q *EventQueue) DeadLetter() string {
	return q.name + ":dead"
}

// PublishRelationshipEvent serializes the event and pushes it to the tail of the queue.
func (q *EventQueue) PublishRelationshipEvent(ctx context.Context, ev models.RelationshipEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RelationshipEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next event. It returns (nil, nil) when
// the wait timed out with an empty queue.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RelationshipEvent, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the queue name and res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}
	var ev models.RelationshipEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		if dlErr := q.rdb.RPush(ctx, q.DeadLetter(), res[1]).Err(); dlErr != nil {
			return nil, fmt.Errorf("%w: %v (dead-letter push failed: %v)", ErrMalformedEvent, err, dlErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &ev, nil
}
