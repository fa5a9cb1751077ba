package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// streamBlock is how long a stream read blocks waiting for new entries.
	streamBlock = time.Second * 2
	// streamBackoff is the pause after a failed stream read.
	streamBackoff = time.Millisecond * 500
)

// RedisFeedConfig represents the configuration of a redis stream candle feed.
type RedisFeedConfig struct {
	// Client is the redis client.
	Client *redis.Client
	// Stream is the stream 5-minute candles are published to.
	Stream string
	// Market is the traded instrument name.
	Market string
	// SendCandle relays the provided closed 5-minute candle.
	SendCandle func(candle shared.Candle)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RedisFeedConfig) Validate() error {
	var errs error

	if cfg.Client == nil {
		errs = errors.Join(errs, fmt.Errorf("redis client cannot be nil"))
	}
	if cfg.Stream == "" {
		errs = errors.Join(errs, fmt.Errorf("stream cannot be an empty string"))
	}
	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.SendCandle == nil {
		errs = errors.Join(errs, fmt.Errorf("send candle function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// RedisFeed relays 5-minute candles published to a redis stream by an upstream market data
// pipeline.
type RedisFeed struct {
	cfg    *RedisFeedConfig
	lastID string
}

// NewRedisFeed initializes a new redis stream candle feed. Only entries added after the feed
// starts are relayed.
func NewRedisFeed(cfg *RedisFeedConfig) (*RedisFeed, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &RedisFeed{cfg: cfg, lastID: "$"}, nil
}

// ParseStreamCandle parses a candle from a stream entry. The entry's "data" field holds the
// candle as JSON with an RFC3339 "ts" bucket start.
func ParseStreamCandle(values map[string]any, market string) (shared.Candle, error) {
	var candle shared.Candle

	data, ok := values["data"].(string)
	if !ok {
		return candle, fmt.Errorf("stream entry has no data field")
	}
	if !gjson.Valid(data) {
		return candle, fmt.Errorf("stream entry data is not valid json")
	}

	res := gjson.Parse(data)
	date, err := time.Parse(time.RFC3339, res.Get("ts").String())
	if err != nil {
		return candle, fmt.Errorf("parsing stream candle time: %w", err)
	}

	candle.Market = market
	candle.Open = res.Get("open").Float()
	candle.High = res.Get("high").Float()
	candle.Low = res.Get("low").Float()
	candle.Close = res.Get("close").Float()
	candle.Volume = res.Get("volume").Float()
	candle.Date = date.In(shared.IST)

	return candle, nil
}

// Run reads the stream until the context is done.
func (f *RedisFeed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			// fallthrough
		}

		results, err := f.cfg.Client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{f.cfg.Stream, f.lastID},
			Count:   16,
			Block:   streamBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			f.cfg.Logger.Error().Msgf("reading stream %s: %v", f.cfg.Stream, err)
			time.Sleep(streamBackoff)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				f.lastID = msg.ID
				candle, err := ParseStreamCandle(msg.Values, f.cfg.Market)
				if err != nil {
					f.cfg.Logger.Error().Msgf("skipping stream entry %s: %v", msg.ID, err)
					continue
				}
				f.cfg.SendCandle(candle)
			}
		}
	}
}
