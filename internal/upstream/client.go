package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"pwscache/internal/weather"
)

const (
	UserAgent = "pws-cache/1.0"
	Timeout   = 5 * time.Second
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the weather.com API on behalf of one station.
type Client struct {
	baseURL    string
	stationID  string
	apiKey     string
	units      string
	httpClient *http.Client
}

func NewClient(baseURL, stationID, apiKey, units string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		stationID: stationID,
		apiKey:    apiKey,
		units:     units,
		httpClient: &http.Client{
			Timeout: Timeout,
		},
	}
}

// Fetch issues exactly one GET for res and returns the body, which must be
// valid JSON. values are paired with res.Params in order.
func (c *Client) Fetch(ctx context.Context, res weather.Resource, values ...string) (json.RawMessage, error) {
	if len(values) != len(res.Params) {
		return nil, fmt.Errorf("%s: want %d parameters, got %d", res.Name, len(res.Params), len(values))
	}

	reqURL := c.buildURL(res, values)
	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", res.Name, err)
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", res.Name, err)
	}
	return raw, nil
}

func (c *Client) buildURL(res weather.Resource, values []string) string {
	params := url.Values{}
	for k, v := range res.Query {
		params[k] = append([]string(nil), v...)
	}
	for i, name := range res.Params {
		params.Set(name, values[i])
	}
	if res.StationScoped {
		params.Set("stationId", c.stationID)
	}
	params.Set("units", c.units)
	params.Set("apiKey", c.apiKey)

	return c.baseURL + res.Path + "?" + params.Encode()
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, redactError(err)
	}
	// Setting Accept-Encoding ourselves turns off transparent decompression
	// in net/http, so gzip bodies are decoded below.
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, redactError(err)
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(r, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return io.ReadAll(r)
}

// redactError strips the apiKey from the URL that *url.Error embeds in its
// message.
func redactError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = redact(uerr.URL)
	}
	return err
}

func redact(reqURL string) string {
	u, err := url.Parse(reqURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "[redacted]")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
