// Package slowpics publishes screenshot batches as slow.pics comparisons.
//
// Every request is sequential. A run opens a session (GET /comparison for the
// XSRF cookie), creates the collection in one multipart request, then uploads
// each image on its own. When creating the whole batch fails with a retryable
// status the batch is split into a few chunks, each its own collection.
package slowpics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/metrics"
)

// DefaultBaseURL is the public slow.pics service
const DefaultBaseURL = "https://slow.pics"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"

// MaxTracks is the most sources one comparison can hold
const MaxTracks = 10

// Config holds publishing settings
type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration

	// MaxAttempts bounds session and create requests, first try included
	MaxAttempts int

	// RetryBaseDelay is the first backoff; each retry doubles it
	RetryBaseDelay time.Duration

	// UploadDelay is the pause between image uploads
	UploadDelay time.Duration

	// ChunkTarget is the image count each fallback chunk aims for
	ChunkTarget int
	MinChunks   int
	MaxChunks   int
}

// DefaultConfig returns the settings used against the public service
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		HTTPTimeout:    120 * time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: 5 * time.Second,
		UploadDelay:    500 * time.Millisecond,
		ChunkTarget:    400,
		MinChunks:      3,
		MaxChunks:      5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.UploadDelay < 0 {
		c.UploadDelay = 0
	}
	if c.ChunkTarget <= 0 {
		c.ChunkTarget = d.ChunkTarget
	}
	if c.MinChunks <= 1 {
		c.MinChunks = d.MinChunks
	}
	if c.MaxChunks < c.MinChunks {
		c.MaxChunks = max(d.MaxChunks, c.MinChunks)
	}
	return c
}

// ProgressFunc is called after every uploaded image
type ProgressFunc func(done, total int)

// Client publishes batches to slow.pics
type Client struct {
	cfg       Config
	log       *zap.Logger
	transport http.RoundTripper
	progress  ProgressFunc
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithTransport sets the round tripper used by every session
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithProgress reports image upload progress
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

// New creates a slow.pics client
func New(cfg Config, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:   cfg.withDefaults(),
		log:   log.Named("slowpics"),
		sleep: sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectionURL is the public address of a collection key
func (c *Client) CollectionURL(key string) string {
	return c.cfg.BaseURL + "/c/" + key
}

// retry runs fn up to MaxAttempts times, doubling the delay after each
// retryable failure.
func (c *Client) retry(ctx context.Context, stage Stage, retryable func(*StatusError) bool, fn func() error) error {
	delay := c.cfg.RetryBaseDelay

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var se *StatusError
		if !errors.As(err, &se) || !retryable(se) || attempt >= c.cfg.MaxAttempts {
			return err
		}

		metrics.UploadRetriesTotal.WithLabelValues(string(stage)).Inc()
		c.log.Warn("request failed, retrying",
			zap.String("stage", string(stage)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// transportError wraps a failed round trip, flagging timeouts
func transportError(stage Stage, err error) *StatusError {
	se := &StatusError{Stage: stage, Err: err}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		se.Timeout = true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		se.Timeout = true
	}
	metrics.UploadRequestsTotal.WithLabelValues(string(stage), "error").Inc()
	return se
}

func observe(stage Stage, resp *http.Response) {
	metrics.UploadRequestsTotal.WithLabelValues(string(stage), strconv.Itoa(resp.StatusCode)).Inc()
}
