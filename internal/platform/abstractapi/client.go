// Package abstractapi wraps the outbound calls to the AbstractAPI
// providers: IP geolocation, holiday calendar, and email validation.
//
// Each call is a single GET returning the raw status code and body.
// The client performs no retries and no status interpretation; those
// decisions belong to the callers (the enrichment tasks and the signup
// handler), which keeps the retry policy in one place and the transport
// trivially mockable.
package abstractapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/phrazzld/social-text-api/internal/config"
)

// Client calls the configured AbstractAPI endpoints.
type Client struct {
	httpClient *http.Client
	cfg        config.AbstractAPIConfig
	logger     *slog.Logger
}

// NewClient creates a new Client from the provider configuration.
// If httpClient is nil, a client with a 10 second timeout is used.
func NewClient(cfg config.AbstractAPIConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "abstractapi_client")),
	}
}

// GetGeolocation looks up the geolocation of an IP address.
// Returns the raw HTTP status code and response body.
func (c *Client) GetGeolocation(ctx context.Context, ipAddress string) (int, []byte, error) {
	params := url.Values{}
	params.Set("api_key", c.cfg.GeolocationKey)
	params.Set("ip_address", ipAddress)

	return c.get(ctx, c.cfg.GeolocationURL, params)
}

// GetHolidays looks up the public holidays for a country on a specific
// local date. Returns the raw HTTP status code and response body; an
// empty JSON array means the date is not a holiday.
func (c *Client) GetHolidays(ctx context.Context, countryCode string, year, month, day int) (int, []byte, error) {
	params := url.Values{}
	params.Set("api_key", c.cfg.HolidayKey)
	params.Set("country", countryCode)
	params.Set("year", strconv.Itoa(year))
	params.Set("month", strconv.Itoa(month))
	params.Set("day", strconv.Itoa(day))

	return c.get(ctx, c.cfg.HolidayURL, params)
}

// GetEmailValidation checks the deliverability of an email address.
// Returns the raw HTTP status code and response body.
func (c *Client) GetEmailValidation(ctx context.Context, email string) (int, []byte, error) {
	params := url.Values{}
	params.Set("api_key", c.cfg.EmailKey)
	params.Set("email", email)

	return c.get(ctx, c.cfg.EmailURL, params)
}

// get performs a single GET request and returns the status and body
// verbatim. A non-nil error means the request never produced an HTTP
// response (timeout, connection failure).
func (c *Client) get(ctx context.Context, baseURL string, params url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("outbound request failed",
			slog.String("url", baseURL),
			slog.String("error", err.Error()))
		return 0, nil, fmt.Errorf("request to %s failed: %w", baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}
