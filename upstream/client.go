package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/util"
)

const maxResponseBytes = 32 << 20

type Request struct {
	Method string
	Path   string // path plus raw query
	Header http.Header
	Body   []byte
}

// Response is a fully read upstream answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type ClientOptions struct {
	HTTPClient *http.Client    // nil => a dedicated client without a global timeout
	Timeout    time.Duration   // per GetJSON call; 0 => 10s
	Logger     quizgate.Logger // if nil, NopLogger is used
}

// Client performs single upstream calls. Retrying is the caller's business
// (see Retry); GetJSON never retries.
type Client struct {
	hc      *http.Client
	timeout time.Duration
	log     quizgate.Logger
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		hc:      opts.HTTPClient,
		timeout: util.Coalesce(opts.Timeout, quizgate.DefaultUpstreamTimeout),
		log:     opts.Logger,
	}
	if c.hc == nil {
		c.hc = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	if c.log == nil {
		c.log = quizgate.NopLogger{}
	}
	return c
}

// Do sends one request and reads the whole body. ctx bounds the attempt.
// Any HTTP answer is a Response; only transport failures are errors.
func (c *Client) Do(ctx context.Context, t Target, r Request) (*Response, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, t.URL(r.Path), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// GetJSON fetches path from t and decodes the body into dst.
// Timeouts come back as *quizgate.TimeoutError, non-2xx answers as
// *quizgate.UpstreamError.
func (c *Client) GetJSON(ctx context.Context, t Target, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.Do(ctx, t, Request{
		Method: http.MethodGet,
		Path:   path,
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		if Classify(err) == ClassTimeout {
			return &quizgate.TimeoutError{Service: t.Name, Err: err}
		}
		return fmt.Errorf("%s %s: %w", t.Name, path, err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return &quizgate.UpstreamError{Service: t.Name, Status: resp.Status, Body: resp.Body}
	}
	if dst == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("%s %s: decode: %w", t.Name, path, err)
	}
	return nil
}
