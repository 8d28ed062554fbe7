package keepa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ls5986/habexa-backend/internal/pkg/httpx"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// ProductBatchLimit is the most ASINs the provider accepts per request.
const ProductBatchLimit = 100

// Client is the secondary provider: catalog attributes, tracked price
// history and sales estimates.
type Client interface {
	GetProducts(ctx context.Context, asins []string) ([]Product, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	domain     int
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("KEEPA_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing KEEPA_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("KEEPA_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.keepa.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	domain := 1
	if v := os.Getenv("KEEPA_DOMAIN"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			domain = parsed
		}
	}

	timeoutSec := 60
	if v := os.Getenv("KEEPA_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("KEEPA_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "KeepaClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		domain:     domain,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

// HTTPError carries the provider status code so retry classification can see it.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("keepa http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// DecodeError marks a malformed provider payload.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("keepa decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (c *client) doOnce(ctx context.Context, path string, query url.Values) (*http.Response, []byte, error) {
	query.Set("key", c.apiKey)
	query.Set("domain", strconv.Itoa(c.domain))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, path string, query url.Values, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, query)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return &DecodeError{Raw: raw, Err: uErr}
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 30*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Keepa request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) GetProducts(ctx context.Context, asins []string) ([]Product, error) {
	if len(asins) == 0 {
		return []Product{}, nil
	}
	if len(asins) > ProductBatchLimit {
		return nil, fmt.Errorf("keepa product batch %d exceeds limit %d", len(asins), ProductBatchLimit)
	}

	query := url.Values{}
	query.Set("asin", strings.Join(asins, ","))
	query.Set("stats", "90")
	query.Set("history", "1")

	var resp productResponse
	if err := c.do(ctx, "/product", query, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}
