package nasa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"neofeed/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const DefaultFeedURL = "https://api.nasa.gov/neo/rest/v1/feed"

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neofeed_fetch_total",
		Help: "Feed requests by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "neofeed_fetch_duration_seconds",
		Help:    "Duration of feed requests",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
	})
)

// Client fetches the NEO feed for one date range per call
type Client struct {
	apiKey  string
	feedURL string
	http    *http.Client
}

type Option func(*Client)

// WithFeedURL points the client at another feed endpoint
func WithFeedURL(feedURL string) Option {
	return func(c *Client) {
		if feedURL != "" {
			c.feedURL = feedURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		feedURL: DefaultFeedURL,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestURL builds the GET target for a range
func (c *Client) RequestURL(r models.DateRange) string {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		// Keep the raw endpoint, the request itself will surface the error
		u = &url.URL{Path: c.feedURL}
	}
	q := u.Query()
	q.Set("start_date", r.StartString())
	q.Set("end_date", r.EndString())
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch performs exactly one round trip for the range and decodes the body.
// Transport and HTTP status failures are *NetworkError, undecodable bodies
// are *FormatError.
func (c *Client) Fetch(ctx context.Context, r models.DateRange) (*models.FeedResponse, error) {
	start := time.Now()
	resp, err := c.fetch(ctx, r)
	fetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case IsNetworkError(err):
		fetchTotal.WithLabelValues("network_error").Inc()
	case IsFormatError(err):
		fetchTotal.WithLabelValues("format_error").Inc()
	default:
		fetchTotal.WithLabelValues("ok").Inc()
	}
	return resp, err
}

func (c *Client) fetch(ctx context.Context, r models.DateRange) (*models.FeedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(r), nil)
	if err != nil {
		return nil, &NetworkError{Range: r, Err: fmt.Errorf("creating request: %w", err)}
	}

	log.WithFields(log.Fields{
		"start_date": r.StartString(),
		"end_date":   r.EndString(),
	}).Info("Fetching feed")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Range: r, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &NetworkError{Range: r, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Range: r, Err: fmt.Errorf("reading response body: %w", err)}
	}

	feed, err := models.DecodeFeedResponse(body)
	if err != nil {
		return nil, &FormatError{Range: r, Err: err}
	}

	log.WithFields(log.Fields{
		"start_date":    r.StartString(),
		"end_date":      r.EndString(),
		"element_count": feed.ElementCount,
		"bytes":         len(body),
	}).Debug("Decoded feed")

	return feed, nil
}
