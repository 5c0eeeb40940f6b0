package ipinfo

/*
* https://www.DIVD.nl
* released under the Apache 2.0 license
* https://www.apache.org/licenses/LICENSE-2.0
 */

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/ipinfo/go/v2/ipinfo"
	"github.com/ipinfo/go/v2/ipinfo/cache"
	"github.com/sirupsen/logrus"
)

// Error messages
var (
	ErrInvalidIP    = errors.New("invalid IP address format")
	ErrNoAbuseEmail = errors.New("ipinfo abuse email not found")
)

// Client wraps the IPInfo API client with retries and a response cache
type Client struct {
	*ipinfo.Client
	MaxRetries int
	// RetryWait is the delay before the first retry; it doubles on every attempt
	RetryWait time.Duration
}

// Location is the geolocation part of an ipinfo response
type Location struct {
	City    string
	Country string
	Org     string
}

// NewIpInfoClient creates a new IPInfo client with the specified token and retry settings
func NewIpInfoClient(maxRetries int, ipInfoToken string) *Client {
	return &Client{
		Client:     ipinfo.NewClient(nil, ipinfo.NewCache(cache.NewInMemory()), ipInfoToken),
		MaxRetries: maxRetries,
		RetryWait:  500 * time.Millisecond,
	}
}

// GetAbuseContact retrieves the abuse contact email for the given IP address
func (c *Client) GetAbuseContact(ctx context.Context, ipAddr string) (string, error) {
	info, err := c.lookup(ctx, ipAddr)
	if err != nil {
		return "", err
	}
	if info.Abuse == nil || info.Abuse.Email == "" {
		return "", ErrNoAbuseEmail
	}
	return info.Abuse.Email, nil
}

// GetLocation retrieves city, country code and organisation for the given IP address
func (c *Client) GetLocation(ctx context.Context, ipAddr string) (*Location, error) {
	info, err := c.lookup(ctx, ipAddr)
	if err != nil {
		return nil, err
	}
	return &Location{City: info.City, Country: info.Country, Org: info.Org}, nil
}

// lookup queries ipinfo, retrying up to MaxRetries times with exponential backoff
func (c *Client) lookup(ctx context.Context, ipAddr string) (*ipinfo.Core, error) {
	parsedIP := net.ParseIP(ipAddr)
	if parsedIP == nil {
		return nil, ErrInvalidIP
	}

	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	waitTime := c.RetryWait

	for i := 0; i < attempts; i++ {
		if i > 0 {
			// Add jitter to prevent thundering herd
			jitter := time.Duration(rand.Int63n(int64(waitTime)/2 + 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime + jitter):
			}
			waitTime *= 2
		}

		info, err := c.Client.GetIPInfo(parsedIP)
		if err == nil {
			logrus.Debugf("[ipinfo] Found info for %s: %+v", ipAddr, info)
			return info, nil
		}

		logrus.Warnf("[ipinfo] Failed to get info for %s: %s", ipAddr, err)
		lastErr = err
	}

	logrus.Warnf("[ipinfo] Giving up on %s after %d attempts", ipAddr, attempts)
	return nil, lastErr
}
