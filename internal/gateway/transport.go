package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
)

const (
	objectMediaType = "application/vnd.pgrst.object+json"
	maxErrorBody    = 1 << 20
)

type callKey struct{}

// call is the per-request state shared between an operation and the
// interceptor that carries it
type call struct {
	op     string
	status int
	header http.Header
}

func withCall(ctx context.Context, op string) (context.Context, *call) {
	cl := &call{op: op}
	return context.WithValue(ctx, callKey{}, cl), cl
}

func callFrom(ctx context.Context) *call {
	if cl, ok := ctx.Value(callKey{}).(*call); ok {
		return cl
	}
	return &call{op: "unknown"}
}

// interceptor is the RoundTripper every SDK request goes through. It sends
// with the configured HTTP client, records the outcome and turns non-2xx
// responses into *Error before the SDK flattens them into strings.
type interceptor struct {
	httpClient *http.Client
	observe    func(string, int)
}

func (t *interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := callFrom(req.Context())

	req = req.Clone(req.Context())
	singleAccept(req.Header)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.record(cl.op, 0)
		return nil, networkError(cl.op, err)
	}
	t.record(cl.op, resp.StatusCode)
	cl.status = resp.StatusCode
	cl.header = resp.Header.Clone()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return nil, networkError(cl.op, err)
		}
		return nil, decodeError(resp.StatusCode, body)
	}
	return resp, nil
}

func (t *interceptor) record(op string, status int) {
	if t.observe != nil {
		t.observe(op, status)
	}
}

// singleAccept keeps the singular media type when the REST client has
// appended its default alongside it
func singleAccept(h http.Header) {
	for _, v := range h.Values("Accept") {
		if strings.Contains(v, objectMediaType) {
			h.Set("Accept", objectMediaType)
			return
		}
	}
}

// boundTransport attaches ctx to requests built without one
type boundTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}
