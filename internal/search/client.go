package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://j4cswgw8gwk8wcs4o4ww0oks.fonz.pt"

	StatusNoResults = "no results found"
	StatusNonJSON   = "api returned non-json response"

	acceptHeader = "application/json, text/plain, */*"
	// maxBodyBytes bounds how much of a response is read into memory.
	maxBodyBytes = 4 << 20
)

// Item is one comparable listing returned by the search API.
// A nil Price means the field was absent; zero is a real price.
type Item struct {
	Title string   `json:"title"`
	Image string   `json:"image"`
	URL   string   `json:"url"`
	Price *float64 `json:"price,omitempty"`
}

// UnmarshalJSON decodes a listing leniently. Fields of the wrong type are
// dropped instead of failing the whole result list: a numeric title is kept
// as its text, a numeric string price is parsed, and an element that is not
// an object becomes an empty item.
func (it *Item) UnmarshalJSON(data []byte) error {
	*it = Item{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil
	}

	it.Title = textField(fields["title"])
	it.Image = textField(fields["image"])
	it.URL = textField(fields["url"])
	it.Price = priceField(fields["price"])
	return nil
}

func textField(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// priceField reads a number or a numeric string; anything else is absent.
func priceField(raw json.RawMessage) *float64 {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

// Result is either a non-empty item list or a status message for the user.
type Result struct {
	Items  []Item
	Status string
}

// APIError is returned when the search API answers with a non-2xx status.
type APIError struct {
	Host   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API returned %d from %s", e.Status, e.Host)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Searcher looks up comparable listings for a product title.
type Searcher interface {
	Search(ctx context.Context, query string) (*Result, error)
}

// Client talks to the price-comparison API.
type Client struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	client    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search issues GET {BaseURL}/search/?q=<query>.
// Transport failures and non-2xx answers are errors; every other outcome is a Result.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	// Spaces as %20, the way browsers encode a URI component.
	endpoint := c.BaseURL + "/search/?q=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search: failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request to %s failed: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Host: c.BaseURL, Status: resp.StatusCode}
		if readErr == nil {
			apiErr.Body = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}

	if readErr != nil {
		return nil, fmt.Errorf("search: failed to read response: %w", readErr)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = StatusNonJSON
		}
		return &Result{Status: text}, nil
	}

	return decode(body), nil
}

func decode(body []byte) *Result {
	trimmed := bytes.TrimSpace(body)

	var raw json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return invalidJSON(trimmed, err)
	}

	// Valid JSON that is not an array carries no listings.
	if len(raw) == 0 || raw[0] != '[' {
		return &Result{Status: StatusNoResults}
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return invalidJSON(trimmed, err)
	}
	if len(items) == 0 {
		return &Result{Status: StatusNoResults}
	}
	return &Result{Items: items}
}

func invalidJSON(body []byte, err error) *Result {
	if len(body) > 0 {
		return &Result{Status: "api returned invalid json: " + string(body)}
	}
	return &Result{Status: "api returned invalid json: " + err.Error()}
}
