// Package transport issues the HTTP requests of the report workflow.
//
// POST bodies are flattened with the wire rule and sent as multipart form
// data with the anti-forgery token both as a field and as a header. Responses
// are decoded as JSON and handed back untouched: the adapter does not look at
// the HTTP status or at the conventional success/error fields, callers do.
// There are no retries and no client-side timeout; cancellation only happens
// if the caller cancels its own context.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"shiftdesk/internal/logging"
	"shiftdesk/internal/wire"
)

// ErrTransport marks network failures and undecodable responses.
var ErrTransport = errors.New("transport failure")

// Error describes a failed exchange. errors.Is(err, ErrTransport) holds for
// every *Error.
type Error struct {
	Method     string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status=%d: %v", e.Method, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrTransport }

// Response is a decoded JSON body.
type Response struct {
	StatusCode int
	Fields     map[string]any
	Raw        json.RawMessage
}

// Success reads the conventional success flag.
func (r Response) Success() bool {
	v, _ := r.Fields["success"].(bool)
	return v
}

// ErrorText reads the conventional error message, if any.
func (r Response) ErrorText() string {
	v, _ := r.Fields["error"].(string)
	return v
}

// Decode unmarshals the raw body into out.
func (r Response) Decode(out any) error {
	return json.Unmarshal(r.Raw, out)
}

type Options struct {
	BaseURL    string
	CSRFToken  string
	ActorID    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	http   *resty.Client
	token  string
	logger *zap.Logger
}

func New(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	logger := logging.OrNop(opts.Logger)
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetRetryCount(0).
		SetLogger(logger.Sugar()).
		SetHeader("Accept", "application/json")
	if opts.ActorID != "" {
		rc.SetHeader(wire.HeaderActor, opts.ActorID)
	}
	return &Client{http: rc, token: opts.CSRFToken, logger: logger}
}

// Post flattens data, appends the anti-forgery token and posts it as a
// multipart form. Flattening errors are returned before any request is made.
func (c *Client) Post(ctx context.Context, endpoint string, data map[string]any) (Response, error) {
	payload, err := wire.Flatten(data)
	if err != nil {
		return Response{}, fmt.Errorf("flatten %s payload: %w", endpoint, err)
	}
	return c.PostPayload(ctx, endpoint, payload)
}

// PostPayload sends an already flattened payload.
func (c *Client) PostPayload(ctx context.Context, endpoint string, payload wire.Payload) (Response, error) {
	payload = payload.Append(wire.FieldCSRF, c.token)
	req := c.http.R().
		SetContext(ctx).
		SetHeader(wire.HeaderCSRF, c.token).
		SetMultipartFields(multipartFields(payload)...)
	resp, err := req.Post(endpoint)
	return c.decode(http.MethodPost, endpoint, resp, err)
}

// multipartFields keeps payload order on the wire.
func multipartFields(payload wire.Payload) []*resty.MultipartField {
	out := make([]*resty.MultipartField, 0, len(payload))
	for _, f := range payload {
		out = append(out, &resty.MultipartField{Param: f.Key, Reader: strings.NewReader(f.Value)})
	}
	return out
}

// Get encodes params as a query string.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (Response, error) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(endpoint)
	return c.decode(http.MethodGet, endpoint, resp, err)
}

// Download fetches a non-JSON resource such as the CSV export.
func (c *Client) Download(ctx context.Context, endpoint string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).SetHeader("Accept", "*/*").Get(endpoint)
	if err != nil {
		return nil, "", c.fail(http.MethodGet, endpoint, 0, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, "", c.fail(http.MethodGet, endpoint, resp.StatusCode(), errors.New(strings.TrimSpace(string(resp.Body()))))
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func (c *Client) decode(method, endpoint string, resp *resty.Response, err error) (Response, error) {
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		return Response{}, c.fail(method, endpoint, status, err)
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || !json.Valid(body) {
		return Response{}, c.fail(method, endpoint, resp.StatusCode(), errors.New("response is not JSON"))
	}
	out := Response{StatusCode: resp.StatusCode(), Raw: json.RawMessage(body)}
	var fields map[string]any
	if json.Unmarshal(body, &fields) == nil {
		out.Fields = fields
	}
	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status_code", out.StatusCode),
	)
	return out, nil
}

func (c *Client) fail(method, endpoint string, status int, err error) error {
	c.logger.Warn("request failed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status_code", status),
		zap.Error(err),
	)
	return &Error{Method: method, Endpoint: endpoint, StatusCode: status, Err: err}
}
