package slowpics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const xsrfCookie = "XSRF-TOKEN"

// session is one cookie jar plus the identifiers slow.pics ties uploads to.
// Each collection, chunks included, gets its own session.
type session struct {
	client    *Client
	http      *http.Client
	base      *url.URL
	browserID string
}

// openSession loads /comparison until the XSRF cookie shows up
func (c *Client) openSession(ctx context.Context) (*session, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	s := &session{
		client: c,
		http: &http.Client{
			Jar:       jar,
			Timeout:   c.cfg.HTTPTimeout,
			Transport: c.transport,
		},
		base:      base,
		browserID: uuid.NewString(),
	}

	sessionRetryable := func(se *StatusError) bool {
		return se.Timeout || se.StatusCode == http.StatusTooManyRequests
	}

	err = c.retry(ctx, StageSession, sessionRetryable, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("/comparison"), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		s.browserHeaders(req)

		resp, err := s.http.Do(req)
		if err != nil {
			return transportError(StageSession, err)
		}
		defer resp.Body.Close()
		observe(StageSession, resp)

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &StatusError{Stage: StageSession, StatusCode: resp.StatusCode, Body: string(body)}
		}
		io.Copy(io.Discard, resp.Body)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	if s.token() == "" {
		return nil, ErrNoToken
	}

	c.log.Debug("session established", zap.String("browser_id", s.browserID))
	return s, nil
}

func (s *session) endpoint(path string) string {
	return s.base.ResolveReference(&url.URL{Path: path}).String()
}

func (s *session) token() string {
	for _, ck := range s.http.Jar.Cookies(s.base) {
		if ck.Name == xsrfCookie {
			return ck.Value
		}
	}
	return ""
}

func (s *session) browserHeaders(req *http.Request) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", userAgent)
}

// post sends a multipart body with the headers slow.pics checks
func (s *session) post(ctx context.Context, stage Stage, path, contentType string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.browserHeaders(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Origin", s.client.cfg.BaseURL+"/")
	req.Header.Set("Referer", s.client.cfg.BaseURL+"/comparison")
	req.Header.Set("X-XSRF-TOKEN", s.token())

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, transportError(stage, err)
	}
	defer resp.Body.Close()
	observe(stage, resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, transportError(stage, err)
	}
	return resp.StatusCode, respBody, nil
}
