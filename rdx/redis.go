package rdx

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"cropconnect/utils"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("resource is locked")

// Client wraps a go-redis client with the helpers the services need.
type Client struct {
	Conn *redis.Client
}

func Connect(ctx context.Context, addr, password string) (*Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Printf("[rdx] connected to %s", addr)
	return &Client{Conn: conn}, nil
}

func (c *Client) Close() error {
	return c.Conn.Close()
}

// unlockScript deletes the key only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock acquires key with SETNX and returns a release func.
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := utils.GetUUID()
	ok, err := c.Conn.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	release := func() {
		if err := unlockScript.Run(context.Background(), c.Conn, []string{"lock:" + key}, token).Err(); err != nil {
			log.Printf("[rdx] unlock %s failed: %v", key, err)
		}
	}
	return release, nil
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Conn.Publish(ctx, channel, payload).Err()
}

// Subscribe delivers message payloads on the returned channel until ctx is done.
func (c *Client) Subscribe(ctx context.Context, channel string) <-chan []byte {
	sub := c.Conn.Subscribe(ctx, channel)
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// CacheGet returns the cached bytes and whether they were present.
func (c *Client) CacheGet(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.Conn.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[rdx] get %s: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

func (c *Client) CacheSet(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := c.Conn.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Printf("[rdx] set %s: %v", key, err)
	}
}

func (c *Client) CacheDel(ctx context.Context, keys ...string) {
	if err := c.Conn.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[rdx] del %v: %v", keys, err)
	}
}

// Revoke marks a token id as logged out until its expiry.
func (c *Client) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.Conn.Set(ctx, "revoked:"+jti, "1", ttl).Err()
}

func (c *Client) IsRevoked(ctx context.Context, jti string) bool {
	n, err := c.Conn.Exists(ctx, "revoked:"+jti).Result()
	if err != nil {
		log.Printf("[rdx] revoked lookup: %v", err)
		return false
	}
	return n > 0
}
