// Package urlutil maps a high-level Hrana connection string to the
// concrete WebSocket and/or HTTP URLs its transports dial, per
// spec.md §6's URL helper collaborator boundary.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints is the resolved pair of connection URLs for a parsed
// connection string. WS is empty when the scheme selects HTTP-only
// access, and vice versa.
type Endpoints struct {
	WS       string
	HTTP     string
	AuthToken string
}

// Resolve parses raw (a libsql:, ws:, wss:, http:, or https: URL) and
// derives the WebSocket and/or HTTP endpoint(s) a client should dial.
//
// Scheme mapping:
//   - libsql: -> both wss and https endpoints (TLS by default; ?tls=0
//     selects ws/http instead)
//   - ws:/wss: -> that WebSocket endpoint only
//   - http:/https: -> that HTTP endpoint only
//
// The authToken query parameter, if present, is returned separately and
// stripped from both derived URLs.
func Resolve(raw string) (Endpoints, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoints{}, fmt.Errorf("urlutil: parse %q: %w", raw, err)
	}

	q := u.Query()
	token := q.Get("authToken")
	tls := q.Get("tls") != "0"
	q.Del("authToken")
	q.Del("tls")

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "libsql":
		wsScheme, httpScheme := "wss", "https"
		if !tls {
			wsScheme, httpScheme = "ws", "http"
		}
		return Endpoints{
			WS:        rebuild(u, wsScheme, q),
			HTTP:      rebuild(u, httpScheme, q),
			AuthToken: token,
		}, nil
	case "ws", "wss":
		return Endpoints{WS: rebuild(u, scheme, q), AuthToken: token}, nil
	case "http", "https":
		return Endpoints{HTTP: rebuild(u, scheme, q), AuthToken: token}, nil
	default:
		return Endpoints{}, fmt.Errorf("urlutil: unrecognized scheme %q", u.Scheme)
	}
}

func rebuild(u *url.URL, scheme string, q url.Values) string {
	out := *u
	out.Scheme = scheme
	out.RawQuery = q.Encode()
	return out.String()
}
