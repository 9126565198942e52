package printify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"printsync/internal/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNetwork classifies transport failures, timeouts and non-2xx responses from Printify
var ErrNetwork = errors.New("printify request failed")

// Client talks to the Printify REST API for a single shop
type Client struct {
	baseURL    string
	shopID     string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ProductPage is one page of the shop's product listing
type ProductPage struct {
	CurrentPage int               `json:"current_page"`
	LastPage    int               `json:"last_page"`
	Data        []json.RawMessage `json:"data"`
}

// NewClient creates a rate-limited Printify client
func NewClient(cfg config.PrintifyConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 600
	}

	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		shopID:   cfg.ShopID,
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 10),
		logger:  logger,
	}
}

// GetProduct returns the raw product-detail JSON for one product
func (c *Client) GetProduct(ctx context.Context, productID string) ([]byte, error) {
	path := fmt.Sprintf("/shops/%s/products/%s.json", url.PathEscape(c.shopID), url.PathEscape(productID))
	return c.get(ctx, path)
}

// ListProducts returns one page of the shop's products
func (c *Client) ListProducts(ctx context.Context, page, limit int) (*ProductPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	path := fmt.Sprintf("/shops/%s/products.json?%s", url.PathEscape(c.shopID), query.Encode())
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var result ProductPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode product page: %w", err)
	}
	return &result, nil
}

// ListProductIDs walks every page of the listing and collects product ids
func (c *Client) ListProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		result, err := c.ListProducts(ctx, page, 50)
		if err != nil {
			return nil, err
		}

		for _, raw := range result.Data {
			var item struct {
				ID ID `json:"id"`
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to decode product summary: %w", err)
			}
			if item.ID != "" {
				ids = append(ids, string(item.ID))
			}
		}

		if result.LastPage == 0 || page >= result.LastPage {
			return ids, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "printsync")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrNetwork, err)
	}

	c.logger.Debug("Printify request completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrNetwork, resp.StatusCode, truncate(body, 512))
	}

	return body, nil
}

func truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
