package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Inbox keeps the latest notifications of each user in a Redis list, newest
// first, for the in-app bell.
type Inbox struct {
	Redis *redis.Client
	Limit int
	TTL   time.Duration
}

func NewInbox(client *redis.Client, limit int, ttl time.Duration) *Inbox {
	return &Inbox{Redis: client, Limit: limit, TTL: ttl}
}

func InboxKey(userID string) string {
	return fmt.Sprintf("notifications:user:%s", userID)
}

func (in *Inbox) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := InboxKey(n.UserID)

	if err := in.Redis.LPush(ctx, key, string(body)).Err(); err != nil {
		return fmt.Errorf("inbox push: %w", err)
	}
	if in.Limit > 0 {
		if err := in.Redis.LTrim(ctx, key, 0, int64(in.Limit-1)).Err(); err != nil {
			return fmt.Errorf("inbox trim: %w", err)
		}
	}
	if in.TTL > 0 {
		if err := in.Redis.Expire(ctx, key, in.TTL).Err(); err != nil {
			return fmt.Errorf("inbox expire: %w", err)
		}
	}
	return nil
}

// List returns up to n notifications for userID, newest first.
func (in *Inbox) List(ctx context.Context, userID string, n int) ([]Notification, error) {
	if n <= 0 {
		return []Notification{}, nil
	}
	raw, err := in.Redis.LRange(ctx, InboxKey(userID), 0, int64(n-1)).Result()
	if err == redis.Nil {
		return []Notification{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, r := range raw {
		var item Notification
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
