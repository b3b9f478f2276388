// Package client provides an HTTP client for the canvass REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is an HTTP client for the canvass API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Point is a map coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Style is the presentation of a color category.
type Style struct {
	Color      string `json:"color"`
	Pin        string `json:"pin"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Entry is one visit in an address history.
type Entry struct {
	Timestamp int64    `json:"timestamp"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Results   []string `json:"results"`
	VisitedBy string   `json:"visitedBy"`
	Comment   string   `json:"comment"`
	Style     Style    `json:"style"`
}

// Time returns the visit time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Fields is the postal address of a record.
type Fields struct {
	HouseNumber string `json:"houseNumber"`
	StreetName  string `json:"streetName"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
}

// Address is an address record as returned by the API.
type Address struct {
	ID string `json:"id"`
	Fields
	Address     string   `json:"address"`
	Coordinates *Point   `json:"coordinates"`
	UpdatedAt   int64    `json:"updatedAt"`
	Results     []string `json:"results"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	VisitedBy   string   `json:"visitedBy"`
	Comment     string   `json:"comment"`
	History     []Entry  `json:"history"`
	Color       string   `json:"color"`
	Style       Style    `json:"style"`
	Visible     bool     `json:"visible"`
}

// Visit is the body of a new history entry.
type Visit struct {
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Results   []string `json:"results"`
	VisitedBy string   `json:"visitedBy,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

// AddRequest creates an address with its first visit.
type AddRequest struct {
	Fields
	Coordinates *Point `json:"coordinates,omitempty"`
	Visit
}

// Filter is the visibility filter state.
type Filter struct {
	Enabled   []string `json:"enabled"`
	Filtering bool     `json:"filtering"`
}

// ReverseResult is the address found at a coordinate.
type ReverseResult struct {
	Address     Fields `json:"address"`
	Coordinates Point  `json:"coordinates"`
}

// Health is the /health response.
type Health struct {
	Status    string `json:"status"`
	Addresses int    `json:"addresses"`
}

// ListAddresses returns every address, or only visible ones.
func (c *Client) ListAddresses(ctx context.Context, visibleOnly bool) ([]Address, error) {
	path := "/api/addresses"
	if visibleOnly {
		path += "?visible=true"
	}
	var out []Address
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAddress returns one address with its history.
func (c *Client) GetAddress(ctx context.Context, id string) (*Address, error) {
	var a Address
	if err := c.get(ctx, "/api/addresses/"+url.PathEscape(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AddAddress creates an address. The server geocodes it when no
// coordinates are given.
func (c *Client) AddAddress(ctx context.Context, req AddRequest) (*Address, error) {
	var a Address
	if err := c.post(ctx, "/api/addresses", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAddress removes an address and its history.
func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/api/addresses/"+url.PathEscape(id))
}

// AddVisit records another visit at an address.
func (c *Client) AddVisit(ctx context.Context, id string, v Visit) (*Address, error) {
	var a Address
	if err := c.post(ctx, "/api/addresses/"+url.PathEscape(id)+"/history", v, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Reverse looks up the address at a coordinate.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	q := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	var r ReverseResult
	if err := c.get(ctx, "/api/geocode/reverse?"+q.Encode(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetFilter returns the visibility filter.
func (c *Client) GetFilter(ctx context.Context) (*Filter, error) {
	var f Filter
	if err := c.get(ctx, "/api/filter", &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ToggleFilter flips one color category.
func (c *Client) ToggleFilter(ctx context.Context, color string) (*Filter, error) {
	var f Filter
	if err := c.post(ctx, "/api/filter/"+url.PathEscape(color)+"/toggle", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// SetFilter replaces the enabled color categories.
func (c *Client) SetFilter(ctx context.Context, colors []string) (*Filter, error) {
	var f Filter
	body := map[string][]string{"enabled": colors}
	if err := c.send(ctx, http.MethodPut, "/api/filter", body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ResetFilter enables every color category.
func (c *Client) ResetFilter(ctx context.Context) (*Filter, error) {
	var f Filter
	if err := c.post(ctx, "/api/filter/reset", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Outcome is a selectable visit result and the color it maps to alone.
type Outcome struct {
	Tag   string `json:"tag"`
	Color string `json:"color"`
}

// Colors returns the legend in display order.
func (c *Client) Colors(ctx context.Context) ([]Style, error) {
	var out []Style
	if err := c.get(ctx, "/api/colors", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Outcomes returns the outcome vocabulary in form order.
func (c *Client) Outcomes(ctx context.Context) ([]Outcome, error) {
	var out []Outcome
	if err := c.get(ctx, "/api/outcomes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Backfill asks the server to geocode an address that has no coordinates.
func (c *Client) Backfill(ctx context.Context, id string) (*Address, error) {
	var a Address
	if err := c.post(ctx, "/api/addresses/"+url.PathEscape(id)+"/coordinates", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.send(ctx, http.MethodGet, path, nil, result)
}

// post performs a POST request with a JSON body and decodes the response.
func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

// doDelete performs a DELETE request.
func (c *Client) doDelete(ctx context.Context, path string) error {
	return c.send(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) (err error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: "server error: " + http.StatusText(resp.StatusCode)}
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else if msg := strings.TrimSpace(string(respBody)); msg != "" && len(msg) < 200 {
			apiErr.Message = msg
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
