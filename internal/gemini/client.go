package gemini

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
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultTimeout   = 60 * time.Second
	streamingTimeout = 300 * time.Second
)

// Client talks to the generation API. It never retries; callers decide how
// to handle quota errors.
type Client struct {
	apiKey     string
	baseURL    string
	liveURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithLiveURL(u string) Option {
	return func(c *Client) { c.liveURL = u }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		liveURL:    DefaultLiveURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateContent runs a single non-streaming generation.
func (c *Client) GenerateContent(ctx context.Context, model string, req Request) (*Response, error) {
	body, err := c.do(ctx, model, "generateContent", req, defaultTimeout)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp Response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

// StreamGenerateContent starts a server-sent-event generation. The caller
// must Close the returned Stream.
func (c *Client) StreamGenerateContent(ctx context.Context, model string, req Request) (*Stream, error) {
	body, err := c.do(ctx, model, "streamGenerateContent?alt=sse", req, streamingTimeout)
	if err != nil {
		return nil, err
	}
	return newStream(body), nil
}

func (c *Client) do(ctx context.Context, model, method string, req Request, timeout time.Duration) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	endpoint := c.baseURL + "/models/" + url.PathEscape(model) + ":" + method

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(resp)
		resp.Body.Close()
		cancel()
		return nil, apiErr
	}

	// The timeout context lives until the caller closes the body.
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose wraps a ReadCloser and cancels a context on Close.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
