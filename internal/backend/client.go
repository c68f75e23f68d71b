// Package backend is the HTTP client for the gazette processing backend of record.
package backend

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/metrics"
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

// ErrBackendReported matches a response that arrived with a success status but
// carries an application-level "error" field.
var ErrBackendReported = errors.New("backend reported an error")

// ReportedError carries the backend's own error message.
type ReportedError struct {
	Op      string
	Message string
}

func (e *ReportedError) Error() string {
	return fmt.Sprintf("%s: backend error: %s", e.Op, e.Message)
}

func (e *ReportedError) Is(target error) bool {
	return target == ErrBackendReported
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend status %d: %s", e.Op, e.Status, e.Body)
}

type Options struct {
	Timeout    time.Duration
	RetryMax   int
	HTTPClient *http.Client
	Logger     *logrus.Entry
	Metrics    *metrics.Metrics
}

// Client talks to the backend. Reads are retried on transport errors and 5xx
// responses; writes are sent once.
type Client struct {
	baseURL string
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
	log     *logrus.Entry
	metrics *metrics.Metrics
}

func New(baseURL string, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "backend")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	build := func(retryMax int) *retryablehttp.Client {
		c := retryablehttp.NewClient()
		if opts.HTTPClient != nil {
			c.HTTPClient = opts.HTTPClient
		}
		c.HTTPClient.Timeout = timeout
		c.RetryMax = retryMax
		c.RetryWaitMin = 100 * time.Millisecond
		c.RetryWaitMax = 2 * time.Second
		c.Logger = retryLogger{log: log}
		c.ErrorHandler = retryablehttp.PassthroughErrorHandler
		return c
	}

	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		reads:   build(retryMax),
		writes:  build(0),
		log:     log,
		metrics: metrics.OrDiscard(opts.Metrics),
	}
}

// retryLogger adapts logrus to retryablehttp's leveled logger. Per-attempt
// chatter goes to debug and trace.
type retryLogger struct {
	log *logrus.Entry
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.log.WithFields(kvFields(kv)).Error(msg) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.log.WithFields(kvFields(kv)).Warn(msg) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.log.WithFields(kvFields(kv)).Debug(msg) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.log.WithFields(kvFields(kv)).Trace(msg) }

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// do performs one call and returns the raw body of a 2xx response. Bodies that
// are JSON objects with a non-empty "error" field become a *ReportedError.
func (c *Client) do(ctx context.Context, op, method, target string, body any) (json.RawMessage, error) {
	started := time.Now()
	raw, err := c.roundTrip(ctx, op, method, target, body)
	c.metrics.BackendLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
	c.metrics.BackendRequests.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "method": method, "url": target}).WithError(err).Debug("backend call failed")
	}
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, target string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		var payload []byte
		switch v := body.(type) {
		case []byte:
			payload = v
		case json.RawMessage:
			payload = v
		default:
			encoded, err := json.Marshal(body)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: encode body", op)
			}
			payload = encoded
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.writes
	if method == http.MethodGet {
		client = c.reads
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: request", op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read body", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: truncate(string(data), 512)}
	}
	if msg, ok := reportedError(data); ok {
		return nil, &ReportedError{Op: op, Message: msg}
	}
	return data, nil
}

func reportedError(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return "", false
	}
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil || len(probe.Error) == 0 || string(probe.Error) == "null" {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(probe.Error, &msg); err != nil {
		msg = string(probe.Error)
	}
	if strings.TrimSpace(msg) == "" {
		return "", false
	}
	return msg, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FetchState returns the committed roster as of the gazette.
func (c *Client) FetchState(ctx context.Context, scope roster.Scope, date, number string) (*roster.Snapshot, error) {
	raw, err := c.do(ctx, "fetch_state", http.MethodGet, c.endpoint(string(scope), "state", date, number), nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		State *roster.Snapshot `json:"state"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrap(err, "fetch_state: decode")
	}
	if body.State == nil {
		return roster.EmptySnapshot(), nil
	}
	return body.State, nil
}

// FetchRaw returns the machine-extracted transactions of a gazette.
func (c *Client) FetchRaw(ctx context.Context, scope roster.Scope, format roster.Format, date, number string) (json.RawMessage, error) {
	target := c.endpoint(string(roster.ScopePerson), date, number)
	if scope == roster.ScopeOrg {
		if format != roster.FormatInitial && format != roster.FormatAmendment {
			return nil, errors.Errorf("fetch_raw: organizational gazette %s needs a format", number)
		}
		target = c.endpoint(string(roster.ScopeOrg), string(format), date, number)
	}
	return c.do(ctx, "fetch_raw", http.MethodGet, target, nil)
}

// Commit posts a commit payload to the endpoint for scope and format.
func (c *Client) Commit(ctx context.Context, scope roster.Scope, format roster.Format, date, number string, payload any) error {
	var target string
	switch {
	case scope == roster.ScopePerson:
		target = c.endpoint(string(roster.ScopePerson), date, number)
	case format == roster.FormatInitial || format == roster.FormatAmendment:
		target = c.endpoint(string(roster.ScopeOrg), string(format), date, number)
	default:
		return errors.Errorf("commit: organizational gazette %s needs a format", number)
	}
	_, err := c.do(ctx, "commit", http.MethodPost, target, payload)
	return err
}

// FetchDraft returns the stored draft document, unwrapped by draft.Decode.
func (c *Client) FetchDraft(ctx context.Context, number string) (json.RawMessage, error) {
	return c.do(ctx, "fetch_draft", http.MethodGet, c.endpoint("transactions", number), nil)
}

func (c *Client) SaveDraft(ctx context.Context, number string, body []byte) error {
	_, err := c.do(ctx, "save_draft", http.MethodPost, c.endpoint("transactions", number), json.RawMessage(body))
	return err
}

func (c *Client) SetWarning(ctx context.Context, number string, warning bool) error {
	_, err := c.do(ctx, "set_warning", http.MethodPost, c.endpoint("transactions", number, "warning"), map[string]bool{"warning": warning})
	return err
}

// DownloadURL builds the CSV export link for one transaction kind. The link is
// handed to the browser, never fetched here.
func (c *Client) DownloadURL(number, date string, scope roster.Scope, kind string) string {
	return c.endpoint("download", number, date, string(scope), kind)
}
