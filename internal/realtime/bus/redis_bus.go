package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/checklist-advisor/internal/platform/envutil"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime"
)

const defaultPrefix = "checklist-advisor:sse"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the pub/sub topics; each hub channel maps to
	// "<prefix>:<channel>".
	Prefix string
}

func RedisConfigFromEnv() RedisConfig {
	return RedisConfig{
		Addr:     envutil.String("REDIS_ADDR", ""),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
		Prefix:   envutil.String("REDIS_TOPIC_PREFIX", defaultPrefix),
	}
}

// envelope is the wire form; Origin identifies the publishing process.
type envelope struct {
	Origin  string              `json:"origin"`
	SentAt  time.Time           `json:"sent_at"`
	Message realtime.SSEMessage `json:"message"`
}

type redisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	origin string
}

func NewRedisBus(cfg RedisConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, errors.New("redis bus: logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis bus: REDIS_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis bus: ping %s: %w", addr, err)
	}

	b := newRedisBus(rdb, cfg.Prefix, log)
	b.log.Info("redis progress bus connected", "addr", addr, "prefix", b.prefix, "origin", b.origin)
	return b, nil
}

func newRedisBus(rdb *goredis.Client, prefix string, log *logger.Logger) *redisBus {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	host, _ := os.Hostname()
	return &redisBus{
		log:    log.With("service", "RedisProgressBus"),
		rdb:    rdb,
		prefix: prefix,
		origin: fmt.Sprintf("%s/%s", host, uuid.NewString()[:8]),
	}
}

func (b *redisBus) topic(channel string) string {
	return b.prefix + ":" + channel
}

func (b *redisBus) encode(msg realtime.SSEMessage) ([]byte, error) {
	return json.Marshal(envelope{Origin: b.origin, SentAt: time.Now().UTC(), Message: msg})
}

func decode(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return envelope{}, err
	}
	if env.Message.Channel == "" {
		return envelope{}, errors.New("message has no channel")
	}
	return env, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if msg.Channel == "" {
		return errors.New("redis bus: message has no channel")
	}
	raw, err := b.encode(msg)
	if err != nil {
		return fmt.Errorf("redis bus: encode: %w", err)
	}
	return b.rdb.Publish(ctx, b.topic(msg.Channel), raw).Err()
}

// StartForwarder pattern-subscribes to every topic under the prefix and hands
// decoded messages to onMsg until ctx ends.
func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return errors.New("redis bus: forwarder callback required")
	}
	sub := b.rdb.PSubscribe(ctx, b.topic("*"))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis bus: subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				env, err := decode(m.Payload)
				if err != nil {
					b.log.Warn("dropping malformed progress message", "topic", m.Channel, "error", err)
					continue
				}
				b.log.Debug("forwarding progress", "channel", env.Message.Channel, "origin", env.Origin)
				onMsg(env.Message)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
