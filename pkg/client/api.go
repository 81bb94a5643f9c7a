package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-reachy-face/internal/httpc"
	"github.com/teslashibe/go-reachy-face/pkg/api"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
)

// API calls a face server's /api routes.
type API struct {
	base string
	http *http.Client
}

// NewAPI creates a client for the server at base, given as "host:port" or
// an http(s) URL.
func NewAPI(base string) (*API, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery = "", ""
	return &API{base: strings.TrimSuffix(u.String(), "/"), http: httpc.Client}, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	return httpc.DoJSON(ctx, a.http, method, a.base+path, in, out)
}

// Status returns the engine status.
func (a *API) Status(ctx context.Context) (api.Status, error) {
	var st api.Status
	err := a.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// Expressions lists registered expressions.
func (a *API) Expressions(ctx context.Context) ([]expression.Info, error) {
	var infos []expression.Info
	err := a.do(ctx, http.MethodGet, "/api/expressions", nil, &infos)
	return infos, err
}

// Play queues, or with req.Force interrupts with, the expression id.
func (a *API) Play(ctx context.Context, id string, req api.PlayRequest) (api.PlayResponse, error) {
	var resp api.PlayResponse
	err := a.do(ctx, http.MethodPost, "/api/expressions/"+url.PathEscape(id), req, &resp)
	return resp, err
}

// Follow points an expression toward a tracked face.
func (a *API) Follow(ctx context.Context, req api.FollowRequest) (api.PlayResponse, error) {
	var resp api.PlayResponse
	err := a.do(ctx, http.MethodPost, "/api/follow", req, &resp)
	return resp, err
}

// SetIdle turns idle blinks and glances on or off.
func (a *API) SetIdle(ctx context.Context, enabled bool) error {
	return a.do(ctx, http.MethodPut, "/api/idle", api.Idle{Enabled: enabled}, nil)
}
