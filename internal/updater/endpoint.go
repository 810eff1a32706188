package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mybus-data/internal/common/logger"
)

const (
	httpTimeout       = 30 * time.Second
	defaultMaxRetries = 3
)

type EndpointConfig struct {
	URL    string
	APIKey string
	// MaxRetries bounds retries after transport errors and 5xx answers.
	MaxRetries uint64
	// InitialBackoff is the first retry delay. Zero uses the library default.
	InitialBackoff time.Duration
}

// HTTPEndpoint asks the version endpoint which database is current.
type HTTPEndpoint struct {
	config EndpointConfig
	client *http.Client
	logger logger.Logger
}

func NewHTTPEndpoint(config EndpointConfig, logger logger.Logger) *HTTPEndpoint {
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
	return &HTTPEndpoint{
		config: config,
		client: &http.Client{
			Timeout: httpTimeout,
		},
		logger: logger,
	}
}

func (e *HTTPEndpoint) DatabaseVersion(ctx context.Context, schemaName string) (*DatabaseVersion, error) {
	reqURL, err := e.requestURL(schemaName)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Fetching database version", "url", e.config.URL, "schema", schemaName)

	var version *DatabaseVersion
	operation := func() error {
		v, err := e.fetch(ctx, reqURL)
		if err != nil {
			return err
		}
		version = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Database version request failed, retrying",
			"error", err,
			"retry_in", wait)
	}

	if err := backoff.RetryNotify(operation, e.newBackOff(ctx), notify); err != nil {
		return nil, err
	}

	e.logger.Info("Database version fetched",
		"schema", version.SchemaName,
		"topology_id", version.TopologyID)

	return version, nil
}

func (e *HTTPEndpoint) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if e.config.InitialBackoff > 0 {
		b.InitialInterval = e.config.InitialBackoff
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, e.config.MaxRetries), ctx)
}

func (e *HTTPEndpoint) requestURL(schemaName string) (string, error) {
	u, err := url.Parse(e.config.URL)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint url: %w", err)
	}
	q := u.Query()
	q.Set("schemaType", schemaName)
	if e.config.APIKey != "" {
		q.Set("key", e.config.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetch performs one request. Errors that retrying cannot fix are wrapped in
// backoff.Permanent.
func (e *HTTPEndpoint) fetch(ctx context.Context, reqURL string) (*DatabaseVersion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		e.logger.Error("Database version endpoint rejected request",
			"status_code", resp.StatusCode,
			"response_body", string(body))
		return nil, backoff.Permanent(err)
	}

	var version DatabaseVersion
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: decoding response: %v", ErrInvalidResponse, err))
	}

	if err := version.validate(); err != nil {
		return nil, backoff.Permanent(err)
	}
	return &version, nil
}

func (v *DatabaseVersion) validate() error {
	var missing []string
	if v.SchemaName == "" {
		missing = append(missing, "db_schema_version")
	}
	if v.TopologyID == "" {
		missing = append(missing, "topo_id")
	}
	if v.URL == "" {
		missing = append(missing, "db_url")
	}
	if v.Checksum == "" {
		missing = append(missing, "checksum")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}
	return nil
}
