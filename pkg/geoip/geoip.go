// Package geoip resolves public IP addresses to coarse locations using an
// ip-api.com style JSON endpoint.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/util"
)

// NA marks a location field that could not be resolved
const NA = "N/A"

// ErrNotRoutable is returned for addresses that cannot be located
var ErrNotRoutable = errors.New("address is not publicly routable")

type (
	// Location is the subset of the lookup response exposed by the API
	Location struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		ISP     string `json:"isp"`
	}

	// Locator resolves an IP address to a Location
	Locator interface {
		Lookup(ctx context.Context, ip string) (Location, error)
	}

	// Client queries the configured lookup service over HTTP
	Client struct {
		url        string
		httpClient *http.Client
	}

	// response mirrors the lookup service JSON body
	response struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		City       string `json:"city"`
		RegionName string `json:"regionName"`
		Country    string `json:"country"`
		ISP        string `json:"isp"`
	}
)

// NotAvailable returns a Location with every field set to N/A
func NotAvailable() Location {
	return Location{City: NA, Region: NA, Country: NA, ISP: NA}
}

// NewClient builds a Client from the GeoIP configuration
func NewClient(cfg config.GeoIPStaticCfg) *Client {
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Lookup performs GET <url><ip>. Missing fields in a successful response are
// reported as N/A. Private and reserved addresses fail without a request.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	if !util.IPIsPubliclyRoutable(net.ParseIP(ip)) {
		return NotAvailable(), ErrNotRoutable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+ip, nil)
	if err != nil {
		return NotAvailable(), err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NotAvailable(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NotAvailable(), fmt.Errorf("geolocation lookup for %s returned %s", ip, resp.Status)
	}

	var body response
	if err := jsoniter.NewDecoder(resp.Body).Decode(&body); err != nil {
		return NotAvailable(), fmt.Errorf("could not decode geolocation for %s: %w", ip, err)
	}
	if body.Status != "success" {
		return NotAvailable(), fmt.Errorf("geolocation lookup for %s failed: %s", ip, body.Message)
	}

	return Location{
		City:    orNA(body.City),
		Region:  orNA(body.RegionName),
		Country: orNA(body.Country),
		ISP:     orNA(body.ISP),
	}, nil
}

// Disabled is a Locator that never performs lookups
type Disabled struct{}

// Lookup always reports N/A
func (Disabled) Lookup(context.Context, string) (Location, error) {
	return NotAvailable(), nil
}

// NewLocator returns a Client, or Disabled when lookups are turned off
func NewLocator(cfg config.GeoIPStaticCfg) Locator {
	if !cfg.Enabled {
		return Disabled{}
	}
	return NewClient(cfg)
}

func orNA(value string) string {
	if value == "" {
		return NA
	}
	return value
}

// defaultTimeout bounds lookups when the configuration leaves Timeout unset
const defaultTimeout = 3 * time.Second

// WithTimeout returns ctx bounded by timeout, or by the default when timeout
// is not positive
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
