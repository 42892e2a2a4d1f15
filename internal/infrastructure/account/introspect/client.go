package introspect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/fantasy-auction/internal/domain/user"
	"github.com/riskibarqy/fantasy-auction/internal/platform/cache"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

var errTransient = crerr.New("account service transient failure")

type Config struct {
	BaseURL        string
	IntrospectPath string
	AdminKey       string
	CacheTTL       time.Duration
	CacheMaxItems  int
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client verifies bearer tokens against the account service introspection
// endpoint. Verified principals are cached by token hash, and concurrent
// lookups for one token share a single request.
type Client struct {
	httpClient    *http.Client
	introspectURL string
	adminKey      string
	breaker       *resilience.CircuitBreaker
	flight        resilience.SingleFlight[user.Principal]
	cache         *cache.TTLMap[user.Principal]
	cacheTTL      time.Duration
	logger        *logging.Logger
}

func NewClient(httpClient *http.Client, cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	if cfg.CacheMaxItems <= 0 {
		cfg.CacheMaxItems = 10000
	}
	if cfg.CircuitBreaker.OnStateChange == nil {
		cfg.CircuitBreaker.OnStateChange = func(from, to resilience.CircuitState) {
			logger.Warn("account circuit breaker state changed", "from", from, "to", to)
		}
	}

	return &Client{
		httpClient:    httpClient,
		introspectURL: joinURL(cfg.BaseURL, cfg.IntrospectPath),
		adminKey:      strings.TrimSpace(cfg.AdminKey),
		breaker:       cfg.CircuitBreaker.Build(),
		cache:         cache.NewTTLMap[user.Principal](cfg.CacheTTL, cfg.CacheMaxItems),
		cacheTTL:      cfg.CacheTTL,
		logger:        logger,
	}
}

func (c *Client) VerifyAccessToken(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}

	key := tokenKey(token)
	if c.cacheTTL > 0 {
		if principal, ok := c.cache.Get(key); ok {
			return principal, nil
		}
	}

	principal, err, shared := c.flight.Do(key, func() (user.Principal, error) {
		var principal user.Principal
		call := func() error {
			var err error
			principal, err = c.introspect(ctx, token)
			return err
		}

		var err error
		if c.breaker != nil {
			err = c.breaker.Do(call, func(err error) bool { return crerr.Is(err, errTransient) })
		} else {
			err = call()
		}
		if err != nil {
			return user.Principal{}, err
		}
		if c.cacheTTL > 0 {
			c.cache.Set(key, principal)
		}
		return principal, nil
	})
	if err != nil {
		switch {
		case crerr.Is(err, usecase.ErrUnauthorized):
			return user.Principal{}, err
		case crerr.Is(err, resilience.ErrCircuitOpen), crerr.Is(err, errTransient):
			c.logger.WarnContext(ctx, "account introspection unavailable", "error", err, "shared", shared)
			return user.Principal{}, fmt.Errorf("%w: %v", usecase.ErrDependencyUnavailable, err)
		default:
			return user.Principal{}, err
		}
	}
	return principal, nil
}

func (c *Client) introspect(ctx context.Context, token string) (user.Principal, error) {
	encoded, err := sonic.Marshal(introspectRequest{Token: token})
	if err != nil {
		return user.Principal{}, crerr.Wrap(err, "marshal introspect request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectURL, bytes.NewReader(encoded))
	if err != nil {
		return user.Principal{}, crerr.Wrap(err, "create introspect request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.adminKey != "" {
		req.Header.Set("x-admin-key", c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return user.Principal{}, crerr.Mark(crerr.Wrap(err, "request introspection"), errTransient)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return user.Principal{}, fmt.Errorf("%w: introspection denied", usecase.ErrUnauthorized)
	case http.StatusForbidden:
		// the admin key was refused; no caller token can pass until it is fixed.
		return user.Principal{}, fmt.Errorf("%w: introspection forbidden", usecase.ErrDependencyUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return user.Principal{}, crerr.Mark(crerr.Wrap(err, "read introspect response"), errTransient)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		c.logger.WarnContext(ctx, "account introspection failed", "status_code", resp.StatusCode)
		return user.Principal{}, crerr.Wrapf(errTransient, "introspection status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return user.Principal{}, crerr.Newf("introspection failed with status %d", resp.StatusCode)
	}

	var decoded introspectResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return user.Principal{}, crerr.Wrap(err, "unmarshal introspect response")
	}
	if !decoded.Active {
		return user.Principal{}, fmt.Errorf("%w: inactive token", usecase.ErrUnauthorized)
	}
	if strings.TrimSpace(decoded.UserID) == "" {
		return user.Principal{}, crerr.New("invalid introspect response: user_id is empty")
	}

	return user.Principal{
		UserID: decoded.UserID,
		Email:  decoded.Email,
	}, nil
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// tokenKey hashes token for use as the cache and single-flight key.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// joinURL resolves path against baseURL unless path is already absolute.
func joinURL(baseURL, path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if path == "" {
		return baseURL
	}
	return baseURL + "/" + strings.TrimLeft(path, "/")
}
