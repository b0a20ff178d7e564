package bankholidays

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	cacheKey       = "bank-holidays:england-and-wales"
	defaultTimeout = 10 * time.Second
)

// Config contains the GOV.UK endpoint and cache policy.
type Config struct {
	URL      string
	CacheTTL time.Duration
}

// Client fetches the GOV.UK bank-holiday feed and caches the
// england-and-wales date set in Redis with a bounded TTL.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *redis.Client
	logger zerolog.Logger
}

// New constructs a bank-holiday client.
func New(cfg Config, cache *redis.Client, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("bank holiday url must be provided")
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: defaultTimeout},
		cache:  cache,
		logger: logger.With().Str("component", "bank_holidays").Logger(),
	}, nil
}

type feed struct {
	EnglandAndWales division `json:"england-and-wales"`
}

type division struct {
	Events []event `json:"events"`
}

type event struct {
	Date string `json:"date"`
}

// Holidays returns the set of bank-holiday dates, keyed by YYYY-MM-DD.
// A cached set is served until its TTL lapses; a fetch failure with no
// cached copy is surfaced to the caller, which treats it as fatal at startup.
func (c *Client) Holidays(ctx context.Context) (map[string]struct{}, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey).Result(); err == nil {
			var dates []string
			if unmarshalErr := json.Unmarshal([]byte(cached), &dates); unmarshalErr == nil {
				c.logger.Debug().Int("holidays", len(dates)).Msg("bank holiday cache hit")
				return toSet(dates), nil
			}
		} else if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("failed to read bank holiday cache")
		}
	}

	dates, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if payload, marshalErr := json.Marshal(dates); marshalErr == nil {
			if err := c.cache.Set(ctx, cacheKey, payload, c.cfg.CacheTTL).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("failed to store bank holiday cache")
			}
		}
	}

	return toSet(dates), nil
}

func (c *Client) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bank holiday request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank holidays: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bank holiday feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank holiday feed: %w", err)
	}

	var parsed feed
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed bank holiday feed: %w", err)
	}

	dates := make([]string, 0, len(parsed.EnglandAndWales.Events))
	for _, e := range parsed.EnglandAndWales.Events {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			return nil, fmt.Errorf("malformed bank holiday date %q: %w", e.Date, err)
		}
		dates = append(dates, e.Date)
	}

	c.logger.Info().Int("holidays", len(dates)).Msg("bank holiday feed refreshed")

	return dates, nil
}

func toSet(dates []string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}
