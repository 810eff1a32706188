package livetimes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mybus-data/internal/common/logger"
	model "github.com/mybus-data/pkg/livetimes"
	"github.com/sourcegraph/conc/pool"
)

const UserAgent = "mybus-data/1.0"

// maxCachedStops bounds the per-stop cache.
const maxCachedStops = 2048

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Departures int
	// CacheExpiry is how long a stop's departures are served from memory.
	// Zero disables caching.
	CacheExpiry time.Duration
	// MaxParallel bounds concurrent requests in BusTimesForStops.
	MaxParallel int
}

// Client fetches live departures over HTTP.
type Client struct {
	config     ClientConfig
	urls       *URLBuilder
	parser     Parser
	httpClient *http.Client
	logger     logger.Logger
	cache      *stopCache
}

type stopCache struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
}

type cacheEntry struct {
	// stop is nil when the service had nothing for the code.
	stop             *model.LiveBusStop
	receiveTime      time.Time
	globalDisruption bool
	timestamp        time.Time
}

func NewClient(cfg ClientConfig, log logger.Logger) (*Client, error) {
	urls, err := NewURLBuilder(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}

	return &Client{
		config: cfg,
		urls:   urls,
		parser: NewJSONParser(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: log,
		cache:  newStopCache(),
	}, nil
}

func newStopCache() *stopCache {
	return &stopCache{
		data: make(map[string]*cacheEntry),
	}
}

// SetParser swaps the response parser.
func (c *Client) SetParser(p Parser) {
	c.parser = p
}

// BusTimes returns live departures for a single stop.
func (c *Client) BusTimes(ctx context.Context, stopCode string) (*model.LiveBusTimes, error) {
	return c.BusTimesForStops(ctx, []string{stopCode})
}

// BusTimesForStops returns live departures for every stop in stopCodes.
// Stops still in the cache are not requested again; the rest are fetched in
// batches of MaxStopsPerRequest, several batches at a time.
func (c *Client) BusTimesForStops(ctx context.Context, stopCodes []string) (*model.LiveBusTimes, error) {
	codes := dedupe(stopCodes)
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: no stop codes", ErrInvalidParameter)
	}

	entries := make(map[string]*cacheEntry, len(codes))
	var missing []string
	for _, code := range codes {
		if entry := c.cache.fresh(code, c.config.CacheExpiry); entry != nil {
			entries[code] = entry
			continue
		}
		missing = append(missing, code)
	}

	if len(missing) > 0 {
		c.logger.Debug("Fetching live times", "stops", len(missing), "cached", len(entries))

		p := pool.NewWithResults[map[string]*cacheEntry]().
			WithContext(ctx).
			WithMaxGoroutines(c.config.MaxParallel).
			WithCancelOnError()

		for _, batch := range batches(missing, MaxStopsPerRequest) {
			p.Go(func(ctx context.Context) (map[string]*cacheEntry, error) {
				times, err := c.fetchBusTimes(ctx, batch)
				if err != nil {
					return nil, err
				}
				return entriesFor(batch, times), nil
			})
		}

		fetched, err := p.Wait()
		if err != nil {
			return nil, err
		}

		for _, batch := range fetched {
			for code, entry := range batch {
				entries[code] = entry
				c.cache.set(code, entry, c.config.CacheExpiry)
			}
		}
	}

	return assemble(entries)
}

// JourneyTimes returns the remaining calls of journeyID from stopCode. Journeys
// are not cached.
func (c *Client) JourneyTimes(ctx context.Context, stopCode, journeyID string) (*model.Journey, error) {
	reqURL, err := c.urls.JourneyTimesURL(stopCode, journeyID)
	if err != nil {
		return nil, err
	}

	var journey *model.Journey
	err = c.get(ctx, reqURL, func(body io.Reader) error {
		var err error
		journey, err = c.parser.ParseJourneyTimes(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched journey times",
		"journey_id", journeyID,
		"departures", len(journey.Departures()))
	return journey, nil
}

func (c *Client) fetchBusTimes(ctx context.Context, stopCodes []string) (*model.LiveBusTimes, error) {
	reqURL, err := c.urls.BusTimesURL(stopCodes, c.config.Departures)
	if err != nil {
		return nil, err
	}

	var times *model.LiveBusTimes
	err = c.get(ctx, reqURL, func(body io.Reader) error {
		var err error
		times, err = c.parser.ParseBusTimes(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Successfully fetched live times", "stops", len(stopCodes), "returned", times.Size())
	return times, nil
}

func (c *Client) get(ctx context.Context, reqURL string, parse func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch live times: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrSystemOverloaded, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrServerError, resp.StatusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUnknown, resp.StatusCode)
	}

	return parse(resp.Body)
}

func entriesFor(stopCodes []string, times *model.LiveBusTimes) map[string]*cacheEntry {
	now := time.Now()
	out := make(map[string]*cacheEntry, len(stopCodes))
	for _, code := range stopCodes {
		out[code] = &cacheEntry{
			stop:             times.BusStop(code),
			receiveTime:      times.ReceiveTime(),
			globalDisruption: times.HasGlobalDisruption(),
			timestamp:        now,
		}
	}
	return out
}

func assemble(entries map[string]*cacheEntry) (*model.LiveBusTimes, error) {
	stops := make(map[string]*model.LiveBusStop, len(entries))
	var (
		receiveTime time.Time
		global      bool
	)
	for code, entry := range entries {
		if entry.stop != nil {
			stops[code] = entry.stop
		}
		if receiveTime.IsZero() || entry.receiveTime.Before(receiveTime) {
			receiveTime = entry.receiveTime
		}
		global = global || entry.globalDisruption
	}

	return model.LiveBusTimesBuilder{
		BusStops:         stops,
		ReceiveTime:      receiveTime,
		GlobalDisruption: global,
	}.Build()
}

func (sc *stopCache) get(key string) *cacheEntry {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.data[key]
}

func (sc *stopCache) fresh(key string, expiry time.Duration) *cacheEntry {
	if expiry <= 0 {
		return nil
	}
	entry := sc.get(key)
	if entry == nil || time.Since(entry.timestamp) >= expiry {
		return nil
	}
	return entry
}

// set stores entry under key, dropping expired entries first. Nothing is kept
// when caching is disabled or the cache is full of live entries.
func (sc *stopCache) set(key string, entry *cacheEntry, expiry time.Duration) {
	if expiry <= 0 {
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, ok := sc.data[key]; !ok && len(sc.data) >= maxCachedStops {
		sc.evictExpired(expiry)
		if len(sc.data) >= maxCachedStops {
			return
		}
	}
	sc.data[key] = entry
}

func (sc *stopCache) evictExpired(expiry time.Duration) {
	for key, entry := range sc.data {
		if time.Since(entry.timestamp) >= expiry {
			delete(sc.data, key)
		}
	}
}

func (sc *stopCache) size() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.data)
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, strings.Clone(code))
	}
	return out
}

func batches(codes []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(codes); start += size {
		end := min(start+size, len(codes))
		out = append(out, codes[start:end])
	}
	return out
}
