package ripestat

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Client represents a RIPE Stat API client
type Client struct {
	// BaseURL is the base URL of the RIPE Stat API
	BaseURL string
	// HTTPClient is the HTTP client used for API requests
	HTTPClient *http.Client
	// SourceApp is the name of the application to identify to RIPE
	SourceApp string
	// BaseBackoff is the first retry delay; it doubles on every attempt
	BaseBackoff time.Duration
	limiter     *rate.Limiter
}

// statusError is returned for non-2xx HTTP responses
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf(ErrHTTPStatusCode, e.code)
}

// NewRipeStatClient creates a new RIPE Stat API client with the given source application name
// If sourceApp is empty, DefaultSourceApp will be used
func NewRipeStatClient(sourceApp string) *Client {
	if sourceApp == "" {
		sourceApp = DefaultSourceApp
	}

	return &Client{
		BaseURL:     DefaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		SourceApp:   sourceApp,
		BaseBackoff: 200 * time.Millisecond,
		limiter:     rate.NewLimiter(DefaultRateLimit, DefaultBurst),
	}
}

// GetAbuseContacts retrieves abuse contact information for the given IP address or prefix
func (c *Client) GetAbuseContacts(ctx context.Context, resource string) ([]string, error) {
	var data abuseContactData
	if err := c.send(ctx, "abuse-contact-finder", resource, &data); err != nil {
		return nil, fmt.Errorf(ErrFailedGetAbuse, resource, err)
	}
	return data.AbuseContacts, nil
}

// GetNetworkInfo retrieves the announcing prefix and origin ASNs for the given IP address
func (c *Client) GetNetworkInfo(ctx context.Context, ip string) (*NetworkInfo, error) {
	var data networkInfoData
	if err := c.send(ctx, "network-info", ip, &data); err != nil {
		return nil, fmt.Errorf(ErrFailedGetNetInfo, ip, err)
	}
	return &NetworkInfo{Prefix: data.Prefix, ASNs: data.ASNs}, nil
}

// GetASOverview retrieves AS overview information for the given AS number
func (c *Client) GetASOverview(ctx context.Context, asn int) (*ASOverview, error) {
	var data asOverviewData
	if err := c.send(ctx, "as-overview", fmt.Sprintf("AS%d", asn), &data); err != nil {
		return nil, fmt.Errorf(ErrFailedGetASInfo, asn, err)
	}

	return &ASOverview{
		Holder:    data.Holder,
		ASNumber:  ASN(asn),
		Announced: data.Announced,
	}, nil
}

// GetGeolocationData retrieves geolocation data for the given IP address or prefix
func (c *Client) GetGeolocationData(ctx context.Context, resource string) (*MaxmindGeoLite, error) {
	var data geolocationData
	if err := c.send(ctx, "maxmind-geo-lite", resource, &data); err != nil {
		return nil, fmt.Errorf(ErrFailedGeoData, resource, err)
	}

	for _, located := range data.LocatedResources {
		for _, location := range located.Locations {
			// The enricher converts empty strings to "unknown"
			return &MaxmindGeoLite{
				City:        location.City,
				CountryCode: location.Country,
			}, nil
		}
	}

	return nil, fmt.Errorf(ErrNoGeoData, resource)
}

// send makes a request to the RIPE Stat API with exponential backoff retry logic
// and decodes the data section of the response into data
func (c *Client) send(ctx context.Context, endpoint, resource string, data interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		body, err := c.sendRequest(ctx, endpoint, resource)
		if err == nil {
			return parseResponse(body, data)
		}

		lastErr = err
		if ctx.Err() != nil || !isRetriableError(err) {
			return err
		}
		logrus.Debugf("ripestat: send - attempt %d for %s/%s failed: %v", attempt+1, endpoint, resource, err)
	}

	return fmt.Errorf(ErrMaxRetries, lastErr)
}

// calculateBackoff calculates the backoff duration with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt == 0 {
		return 0
	}

	baseBackoff := float64(c.BaseBackoff) * math.Pow(2, float64(attempt-1))

	// Add jitter (±20%)
	jitter := (rand.Float64() * 0.4) - 0.2
	backoff := baseBackoff * (1 + jitter)

	// Cap at 10 seconds
	maxBackoff := float64(10 * time.Second)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return time.Duration(backoff)
}

// isRetriableError reports whether a failed request is worth repeating:
// timeouts, refused connections, 429 and 5xx responses
func isRetriableError(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code == http.StatusTooManyRequests || statusErr.code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// sendRequest sends a request to the RIPE Stat API and returns the response body
func (c *Client) sendRequest(ctx context.Context, endpoint, resource string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf(ErrRateLimit, err)
	}

	params := url.Values{}
	params.Set("resource", resource)
	params.Set("sourceapp", c.SourceApp)
	requestURL := fmt.Sprintf("%s/%s/data.json?%s", c.BaseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf(ErrCreateRequest, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(ErrRequestFailed, err)
	}
	defer func() {
		// Drain and close the body to ensure connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

// parseResponse checks the response status and unmarshals its data section
func parseResponse(body []byte, data interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf(ErrParseResponse, err)
	}

	if env.Status != "ok" {
		return fmt.Errorf(ErrNonOkStatus, env.Status)
	}

	if env.Cached {
		logrus.Debug("ripestat: parseResponse - served from RIPE Stat cache")
	}

	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf(ErrParseResponse, err)
	}
	return nil
}
