// Package gateway is the single client handle to the hosted backend: the
// relational REST API, object storage and the auth service.
//
// Table queries run on postgrest-go and auth calls on gotrue-go; both send
// through one interceptor so failures keep their status and error body.
// Storage has no usable SDK transport hook and is spoken to directly.
//
// A Client is created once at startup with New and shared by reference; it is
// safe for concurrent use. Every operation returns failures as errors (usually
// *Error) and never panics on remote failures.
package gateway

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

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"
)

const (
	restPrefix    = "/rest/v1"
	authPrefix    = "/auth/v1"
	storagePrefix = "/storage/v1"

	defaultTimeout = 15 * time.Second
)

// Options configures a Client.
type Options struct {
	// URL is the service endpoint, e.g. https://<project>.supabase.co
	URL string
	// APIKey is the public (anon) key, or the service key for admin tooling
	APIKey string
	// HTTPClient overrides the transport; Timeout is ignored when it is set
	HTTPClient *http.Client
	Timeout    time.Duration
	// Observe, when set, is called once per remote call with the operation
	// name and the response status (0 for transport failures)
	Observe func(operation string, status int)
}

// Client represents a configured connection to the backend service
type Client struct {
	baseURL     *url.URL
	apiKey      string
	accessToken string
	httpClient  *http.Client
	observe     func(string, int)

	transport *interceptor
	rest      *postgrest.Client
	auth      gotrue.Client
}

// New creates a client, failing before any network call when the endpoint or
// key is missing or malformed.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid service URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("gateway: invalid service URL %q: want http(s)://host", opts.URL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    u,
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		observe:    opts.Observe,
		transport:  &interceptor{httpClient: httpClient, observe: opts.Observe},
	}
	c.auth = gotrue.New("", c.apiKey).WithCustomGoTrueURL(c.BaseURL() + authPrefix)
	if c.rest, err = c.newRest(); err != nil {
		return nil, err
	}
	return c, nil
}

// newRest builds the table client for the current bearer token. Its headers
// are fixed at construction, so it is never mutated afterwards.
func (c *Client) newRest() (*postgrest.Client, error) {
	bearer := c.accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	rest, err := postgrest.NewClientWithError(c.BaseURL()+restPrefix, "public", map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + bearer,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid service URL: %w", err)
	}
	rest.Transport.Parent = c.transport
	return rest, nil
}

// WithAccessToken returns a copy of the client whose database and storage
// requests run as the user owning token. The receiver is not modified.
func (c *Client) WithAccessToken(token string) *Client {
	cp := *c
	cp.accessToken = token
	// the URL was validated by New
	if rest, err := cp.newRest(); err == nil {
		cp.rest = rest
	}
	return &cp
}

// BaseURL returns the service endpoint
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	header http.Header
	body   io.Reader
	bearer string // overrides the client's token when set
	decode any    // JSON destination for successful responses
}

type response struct {
	status int
	header http.Header
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Code: CodeDecode, Message: fmt.Sprintf("failed to marshal request: %v", err), err: err}
	}
	return bytes.NewReader(data), nil
}

// do sends one request and normalizes every failure into *Error
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, &Error{Code: CodeNetwork, Message: fmt.Sprintf("failed to create request: %v", err), err: err}
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	bearer := r.bearer
	if bearer == "" {
		bearer = c.accessToken
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(r.op, 0)
		return nil, networkError(r.op, err)
	}
	defer resp.Body.Close()
	c.record(r.op, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(r.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}

	if r.decode != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, r.decode); err != nil {
			return nil, &Error{
				Status:  resp.StatusCode,
				Code:    CodeDecode,
				Message: fmt.Sprintf("failed to decode response: %v", err),
				err:     err,
			}
		}
	}

	return &response{status: resp.StatusCode, header: resp.Header}, nil
}

func (c *Client) record(op string, status int) {
	if c.observe != nil {
		c.observe(op, status)
	}
}
