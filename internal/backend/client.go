// Package backend is the only place that talks to the CMS REST API. Every
// call takes the caller's bearer token explicitly; the client itself holds no
// session state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/platform/tracer"
	"inkwell/pkg/platform/circuit"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/requestcontext"
)

// maxResponseBytes bounds how much of a backend response is read.
const maxResponseBytes = 8 << 20

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer records one finished backend call. *metrics.Metrics implements it.
type Observer interface {
	ObserveBackendCall(endpoint, outcome string, durationSeconds float64)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Observer   Observer
	Tracer     tracer.Tracer
	Logger     *slog.Logger
	// FailureThreshold is how many transport failures in a row mark the
	// backend as down for the readiness probe. Zero keeps the default.
	FailureThreshold int
}

type Client struct {
	baseURL  string
	client   HTTPDoer
	observer Observer
	tracer   tracer.Tracer
	logger   *slog.Logger
	breaker  *circuit.Breaker
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   cfg.HTTPClient,
		observer: cfg.Observer,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
		breaker:  circuit.New("backend", circuit.WithFailureThreshold(cfg.FailureThreshold)),
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: cfg.Timeout}
	}
	if c.tracer == nil {
		c.tracer = tracer.NewNoop()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// call describes one backend request. endpoint is the stable name used for
// metrics and spans, e.g. "content.list".
type call struct {
	endpoint    string
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func jsonCall(endpoint, method, path, token string, payload any) (call, error) {
	c := call{endpoint: endpoint, method: method, path: path, token: token}
	if payload == nil {
		return c, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return call{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode request")
	}
	c.body = bytes.NewReader(data)
	c.contentType = "application/json"
	return c, nil
}

// do executes the call and returns the body of a 2xx response. Any other
// outcome is a *domainerrors.Error classified by cause.
func (c *Client) do(ctx context.Context, in call) (body []byte, err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, tracer.SpanBackendCall,
		tracer.String(tracer.AttrEndpoint, in.endpoint),
		tracer.String(tracer.AttrMethod, in.method),
		tracer.Bool(tracer.AttrAuthorized, in.token != ""),
	)
	status := 0
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			c.logger.WarnContext(ctx, "backend call failed",
				"endpoint", in.endpoint,
				"status", status,
				"outcome", outcome,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		c.track(ctx, span, err)
		span.SetAttributes(tracer.Int64(tracer.AttrStatusCode, int64(status)), tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		if c.observer != nil {
			c.observer.ObserveBackendCall(in.endpoint, outcome, time.Since(start).Seconds())
		}
	}()

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, in.body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in.contentType != "" {
		req.Header.Set("Content-Type", in.contentType)
	}
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if status < 200 || status > 299 {
		return nil, classifyStatus(status, body)
	}
	return body, nil
}

// track feeds the breaker. Only transport failures count against the
// backend; a visitor abandoning the request does not.
func (c *Client) track(ctx context.Context, span tracer.Span, err error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	var change circuit.StateChange
	if dErrors.IsTransport(err) {
		change = c.breaker.RecordFailure()
	} else {
		change = c.breaker.RecordSuccess()
	}
	switch {
	case change.Opened:
		span.AddEvent(tracer.EventBreakerOpened, tracer.String(tracer.AttrBreaker, c.breaker.Name()))
		c.logger.ErrorContext(ctx, "backend marked down after consecutive failures", "breaker", c.breaker.Name())
	case change.Closed:
		span.AddEvent(tracer.EventBreakerClosed, tracer.String(tracer.AttrBreaker, c.breaker.Name()))
		c.logger.InfoContext(ctx, "backend answering again", "breaker", c.breaker.Name())
	}
}

// Health is the readiness check for the backend. It fails while recent calls
// keep failing at the transport level and never sends a request itself.
func (c *Client) Health(context.Context) error {
	if c.breaker.IsOpen() {
		return errors.New("backend unreachable on recent requests")
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "backend request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "backend request timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "backend unreachable")
}

// classifyStatus maps a non-2xx response onto the error taxonomy, carrying
// the backend's message where it gave one.
func classifyStatus(status int, body []byte) error {
	msg := backendMessage(body)
	code := dErrors.CodeInternal
	switch {
	case status == http.StatusUnauthorized:
		code = dErrors.CodeUnauthorized
	case status == http.StatusForbidden:
		code = dErrors.CodeForbidden
	case status == http.StatusNotFound:
		code = dErrors.CodeNotFound
	case status == http.StatusConflict:
		code = dErrors.CodeConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		code = dErrors.CodeValidation
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		code = dErrors.CodeTimeout
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		code = dErrors.CodeUnavailable
	}
	if msg == "" {
		msg = defaultMessages[code]
	}
	if msg == "" {
		msg = fmt.Sprintf("backend answered %d", status)
	}
	return &dErrors.Error{Code: code, Message: msg}
}

var defaultMessages = map[dErrors.Code]string{
	dErrors.CodeValidation: "The request was rejected. Please check the form and try again.",
	dErrors.CodeNotFound:   "The requested item was not found.",
	dErrors.CodeForbidden:  "You are not allowed to do that.",
	dErrors.CodeConflict:   "That conflicts with existing data.",
}

// backendMessage extracts a human message from an error body. The backend
// answers either {"message": "..."}, a JSON string, or plain text.
func backendMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '{':
		var obj struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(trimmed, &obj) == nil {
			if obj.Message != "" {
				return obj.Message
			}
			return obj.Error
		}
		return ""
	case '"':
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return s
		}
		return ""
	case '<', '[':
		return ""
	}
	const maxText = 300
	if len(trimmed) > maxText {
		return ""
	}
	return string(trimmed)
}

// decodeObject decodes a JSON object body into out.
func decodeObject(endpoint string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeMalformedResponse, endpoint+": unexpected response")
	}
	return nil
}

// decodeList decodes a JSON array body. A body that is not an array (an
// object, a string, nothing) yields an empty list; a malformed array is an error.
func decodeList[T any](endpoint string, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedResponse, endpoint+": unexpected response")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// decodeText reads a body that is a bare string, JSON-quoted or not.
func decodeText(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return s
		}
	}
	return string(trimmed)
}
