// Package enrich resolves open-interest and volume figures for option
// symbols from the redis cache populated by the overnight loaders.
package enrich

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"main/internal/symbols"
)

// Store reads enrichment hashes keyed by trade date and underlying
// ticker, e.g. 20150114_AAPL_oi, with the full option symbol as field.
type Store struct {
	client *redis.Client
}

// NewStore wraps an existing redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Enrich looks up open interest and volume for the symbol at the
// trade's date. A missing field or the literal "null" resolves to -1;
// redis errors (including the caller's deadline) are returned so the
// caller can fall back to unknown values.
func (s *Store) Enrich(ctx context.Context, symbol string, tradeTime int64) (int64, int64, error) {
	date := time.UnixMilli(tradeTime).Format("20060102")
	ticker := symbols.Ticker(symbol)

	openInterest, err := s.lookup(ctx, fmt.Sprintf("%s_%s_oi", date, ticker), symbol)
	if err != nil {
		return -1, -1, err
	}
	volume, err := s.lookup(ctx, fmt.Sprintf("%s_%s_volume", date, ticker), symbol)
	if err != nil {
		return -1, -1, err
	}
	return openInterest, volume, nil
}

func (s *Store) lookup(ctx context.Context, key, field string) (int64, error) {
	values, err := s.client.HMGet(ctx, key, field).Result()
	if err != nil {
		return -1, fmt.Errorf("hmget %s: %w", key, err)
	}
	if len(values) == 0 || values[0] == nil {
		return -1, nil
	}
	raw, ok := values[0].(string)
	if !ok || raw == "null" {
		return -1, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1, nil
	}
	return parsed, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
