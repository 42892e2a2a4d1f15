package notify

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// publisher is the slice of *redis.Client the publisher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards registry events to a Redis channel so other
// processes can follow the market.
type RedisPublisher struct {
	client  publisher
	channel string
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	logger  *logging.Logger
}

func NewRedisPublisher(client publisher, channel string, breaker resilience.CircuitBreakerConfig, logger *logging.Logger) *RedisPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	if channel == "" {
		channel = "auctions"
	}
	if breaker.OnStateChange == nil {
		breaker.OnStateChange = func(from, to resilience.CircuitState) {
			logger.Warn("redis circuit breaker state changed", "channel", channel, "from", from, "to", to)
		}
	}

	p := &RedisPublisher{
		client:  client,
		channel: channel,
		retry: resilience.RetryPolicy{
			Attempts:        3,
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     200 * time.Millisecond,
		},
		breaker: breaker.Build(),
		logger:  logger,
	}
	return p
}

// Run publishes every event from events until the channel closes or ctx is
// done. Failed events are logged and skipped.
func (p *RedisPublisher) Run(ctx context.Context, events <-chan auction.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := p.Publish(ctx, ev); err != nil {
				p.logger.WarnContext(ctx, "publish auction event failed",
					"auction_id", ev.AuctionID,
					"sequence", ev.Sequence,
					"channel", p.channel,
					"error", err,
				)
			}
		}
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev auction.Event) error {
	payload, err := sonic.Marshal(usecase.NewAuctionEventMessage(ev))
	if err != nil {
		return crerr.Wrap(err, "marshal auction event")
	}

	send := func() error {
		return p.client.Publish(ctx, p.channel, payload).Err()
	}
	err = p.retry.Do(ctx, isRetryable, func(int) error {
		if p.breaker != nil {
			return p.breaker.Do(send, nil)
		}
		return send()
	})
	if err != nil {
		return crerr.Wrapf(err, "publish to %s", p.channel)
	}
	return nil
}

func isRetryable(err error) bool {
	return !crerr.Is(err, resilience.ErrCircuitOpen) &&
		!crerr.Is(err, context.Canceled) &&
		!crerr.Is(err, context.DeadlineExceeded)
}
