// Package geocode resolves addresses to coordinates and back using Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "canvass/1.0"
)

// ErrNotFound is returned when the geocoder has no match.
var ErrNotFound = errors.New("address not found")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Address is the postal address parts returned by a reverse lookup.
// Any field may be empty.
type Address struct {
	HouseNumber string `json:"houseNumber"`
	StreetName  string `json:"streetName"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
}

// Client talks to a Nominatim-compatible HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	email      string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header. Nominatim rejects generic agents.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithEmail adds a contact address to every request.
func WithEmail(email string) Option {
	return func(c *Client) {
		c.email = email
	}
}

// WithRateLimit sets the maximum requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a geocoding client. The default limit is one request per
// second, per the public Nominatim usage policy.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Forward geocodes a one-line address.
func (c *Client) Forward(ctx context.Context, address string) (Point, error) {
	if strings.TrimSpace(address) == "" {
		return Point{}, fmt.Errorf("address is required")
	}

	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}

	var results []searchResult
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return Point{}, fmt.Errorf("forward geocode: %w", err)
	}

	if len(results) == 0 {
		return Point{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parsing latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parsing longitude %q: %w", results[0].Lon, err)
	}

	return Point{Lat: lat, Lon: lon}, nil
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address *struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
	} `json:"address"`
}

// Reverse looks up the postal address nearest to a coordinate.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	params := url.Values{
		"format": {"json"},
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
	}

	var resp reverseResponse
	if err := c.get(ctx, "/reverse", params, &resp); err != nil {
		return Address{}, fmt.Errorf("reverse geocode: %w", err)
	}

	if resp.Error != "" || resp.Address == nil {
		return Address{}, fmt.Errorf("%w: %g,%g", ErrNotFound, lat, lon)
	}

	a := resp.Address
	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}

	return Address{
		HouseNumber: a.HouseNumber,
		StreetName:  a.Road,
		City:        city,
		State:       a.State,
		Zip:         a.Postcode,
	}, nil
}

// get issues a rate-limited GET and decodes the JSON body into dst.
func (c *Client) get(ctx context.Context, path string, params url.Values, dst interface{}) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
