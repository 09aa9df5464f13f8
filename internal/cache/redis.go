// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/redis/go-redis/v9"
)

// OnlineTTL is how long a presence heartbeat keeps a user online.
const OnlineTTL = 90 * time.Second

// Redis wraps the go-redis client with the chat fan-out channel and presence keys.
type Redis struct {
	Rdb     *redis.Client
	Channel string
}

// Connect dials addr and pings it with a 5 second timeout.
func Connect(ctx context.Context, addr string, db int, channel string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Redis{Rdb: rdb, Channel: channel}, nil
}

func (r *Redis) Close() error {
	return r.Rdb.Close()
}

// Publish sends payload to every instance subscribed to the chat channel.
func (r *Redis) Publish(ctx context.Context, payload []byte) error {
	if err := r.Rdb.Publish(ctx, r.Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", r.Channel, err)
	}
	return nil
}

// Subscribe calls handle for every payload on the chat channel until ctx ends.
func (r *Redis) Subscribe(ctx context.Context, handle func([]byte)) error {
	sub := r.Rdb.Subscribe(ctx, r.Channel)
	defer sub.Close()

	// wait for the subscription confirmation so no early message is lost
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", r.Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}

func onlineKey(id uuid.UUID) string { return "lovetree:presence:online:" + id.String() }
func seenKey(id uuid.UUID) string   { return "lovetree:presence:seen:" + id.String() }

// Touch marks userID online for OnlineTTL.
func (r *Redis) Touch(ctx context.Context, userID uuid.UUID) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	_, err := r.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, onlineKey(userID), 1, OnlineTTL)
		p.Set(ctx, seenKey(userID), now, 0)
		return nil
	})
	return err
}

// Leave clears the online flag and stamps last-seen.
func (r *Redis) Leave(ctx context.Context, userID uuid.UUID) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	_, err := r.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, onlineKey(userID))
		p.Set(ctx, seenKey(userID), now, 0)
		return nil
	})
	return err
}

// Presence reports the status of each id.
func (r *Redis) Presence(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	out := make(map[uuid.UUID]models.Presence, len(ids))
	for _, id := range ids {
		var p models.Presence

		n, err := r.Rdb.Exists(ctx, onlineKey(id)).Result()
		if err != nil {
			return nil, err
		}
		p.Online = n > 0

		seen, err := r.Rdb.Get(ctx, seenKey(id)).Int64()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return nil, err
		default:
			t := time.Unix(seen, 0).UTC()
			p.LastSeen = &t
		}
		out[id] = p
	}
	return out, nil
}
