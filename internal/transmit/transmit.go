// Package transmit delivers snapshots to the remote endpoint.
package transmit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/snapshot"
	"github.com/grovetools/marksync/logging"
	"github.com/sirupsen/logrus"
)

// SourceAutoSync marks envelopes sent by the coalescer. Interactive sends
// leave Source empty and the field is omitted.
const SourceAutoSync = "auto_sync"

// timestampLayout matches JavaScript's Date.prototype.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Envelope is the POST body.
type Envelope struct {
	Bookmarks []snapshot.Descriptor `json:"bookmarks"`
	Timestamp string                `json:"timestamp"`
	Count     int                   `json:"count"`
	Source    string                `json:"source,omitempty"`
}

// NewEnvelope wraps descriptors, stamping at with millisecond precision in UTC.
func NewEnvelope(descriptors []snapshot.Descriptor, source string, at time.Time) Envelope {
	if descriptors == nil {
		descriptors = []snapshot.Descriptor{}
	}
	return Envelope{
		Bookmarks: descriptors,
		Timestamp: at.UTC().Format(timestampLayout),
		Count:     len(descriptors),
		Source:    source,
	}
}

// Target is the part of the record the transmitter needs, re-read for
// every send.
type Target struct {
	EndpointURL  string
	SharedSecret string
}

// BuildURL appends the shared secret as the password query parameter. The
// endpoint is otherwise left untouched.
func BuildURL(endpoint, secret string) string {
	if secret == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "password=" + EncodeURIComponent(secret)
}

// EncodeURIComponent percent-encodes s the way JavaScript's
// encodeURIComponent does: everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return componentReplacer.Replace(escaped)
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Result is a successful delivery.
type Result struct {
	Status int         `json:"status"`
	Data   interface{} `json:"data"`
}

// Option configures a Transmitter.
type Option func(*Transmitter)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transmitter) { t.client = c }
}

// WithTimeout bounds each request. Zero keeps the client's default, which
// has no timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transmitter) { t.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *Transmitter) { t.userAgent = ua }
}

// WithNow injects the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(t *Transmitter) { t.now = now }
}

// Transmitter performs one POST per call. There are no retries.
type Transmitter struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	now       func() time.Time
	logger    *logrus.Entry
}

// New creates a Transmitter.
func New(opts ...Option) *Transmitter {
	t := &Transmitter{
		client: http.DefaultClient,
		now:    time.Now,
		logger: logging.NewLogger("transmit"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send wraps descriptors in an envelope and posts it to the target.
func (t *Transmitter) Send(ctx context.Context, target Target, descriptors []snapshot.Descriptor, source string) (*Result, error) {
	env := NewEnvelope(descriptors, source, t.now())
	return t.Post(ctx, BuildURL(target.EndpointURL, target.SharedSecret), env)
}

// Post sends env to requestURL. Statuses outside 200-399, network errors and
// non-JSON bodies are transmission failures.
func (t *Transmitter) Post(ctx context.Context, requestURL string, env Envelope) (*Result, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, errors.TransmissionFailed(fmt.Errorf("encode envelope: %w", err))
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.TransmissionFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	logger := t.logger.WithFields(logrus.Fields{
		"count":  env.Count,
		"source": env.Source,
		"url":    redact(requestURL),
	})
	logger.Debug("Sending snapshot")

	resp, err := t.client.Do(req)
	if err != nil {
		logger.WithError(err).Warn("Transmission failed")
		return nil, errors.TransmissionFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		logger.WithField("status", resp.StatusCode).Warn("Endpoint rejected snapshot")
		return nil, errors.HTTPStatus(resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.TransmissionFailed(fmt.Errorf("read response: %w", err))
	}
	var data interface{}
	if err := json.Unmarshal(respBody, &data); err != nil {
		logger.WithError(err).Warn("Endpoint returned a non-JSON body")
		return nil, errors.TransmissionFailed(fmt.Errorf("invalid JSON response: %w", err)).
			WithDetail("status", resp.StatusCode)
	}

	logger.WithField("status", resp.StatusCode).Info("Snapshot delivered")
	return &Result{Status: resp.StatusCode, Data: data}, nil
}

// redact hides the password query parameter.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable>"
	}
	q := u.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
