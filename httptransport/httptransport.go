// Package httptransport adapts net/http to the hrana.HTTPDoer
// collaborator interface, and exposes a Dial convenience constructor
// returning a ready *hrana.Client.
package httptransport

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/mickamy/hrana-go"
)

// Doer adapts an *http.Client to hrana.HTTPDoer.
type Doer struct {
	Client *http.Client
}

func (d Doer) Do(ctx context.Context, method, url string, headers map[string]string, body []byte, streaming bool) (hrana.HTTPResponse, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return hrana.HTTPResponse{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return hrana.HTTPResponse{}, err
	}

	out := hrana.HTTPResponse{Status: resp.StatusCode}

	if streaming {
		out.Stream = &chunkReader{body: resp.Body}
		return out, nil
	}

	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return hrana.HTTPResponse{}, err
	}
	out.Body = b
	return out, nil
}

// chunkReader adapts an io.ReadCloser to hrana.HTTPResponse.Stream.
type chunkReader struct {
	body io.ReadCloser
	buf  [32 * 1024]byte
}

func (c *chunkReader) Next() ([]byte, error) {
	n, err := c.body.Read(c.buf[:])
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, c.buf[:n])
		return chunk, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (c *chunkReader) Close() error { return c.body.Close() }

// Option configures Dial.
type Option func(*options)

type options struct {
	jwt    string
	mode   hrana.IntMode
	client *http.Client
}

// WithJWT sets the Authorization: Bearer header sent on every request.
func WithJWT(jwt string) Option {
	return func(o *options) { o.jwt = jwt }
}

// WithIntMode selects how 64-bit integers are surfaced to the caller.
func WithIntMode(mode hrana.IntMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithHTTPClient overrides the *http.Client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// Dial probes baseURL for the best supported Hrana HTTP endpoint and
// returns a ready *hrana.Client.
func Dial(ctx context.Context, baseURL string, opts ...Option) (*hrana.Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	doer := Doer{Client: o.client}
	transport, err := hrana.DialHTTP(ctx, doer, baseURL, o.jwt, o.mode)
	if err != nil {
		return nil, err
	}
	return hrana.NewClient(transport, o.mode), nil
}
