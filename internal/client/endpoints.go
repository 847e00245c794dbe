package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rshade/finboard/internal/valuation"
)

// ErrIncompatibleServer is returned when the backend version does not satisfy
// the required constraint.
var ErrIncompatibleServer = errors.New("incompatible server version")

// Field-name variants for session lifetimes and tokens.
//
//nolint:gochecknoglobals // Lookup tables.
var (
	ttlKeys   = []string{"remaining_seconds", "remainingSeconds", "ttl", "expires_in", "expiresIn"}
	tokenKeys = []string{"token", "access_token", "accessToken"}
)

// LookupValuations fetches valuation data for ids in one call.
func (c *Client) LookupValuations(ctx context.Context, ids []string) ([]valuation.Quote, error) {
	resp := c.Send(ctx, c.endpoints.Valuation, map[string]any{"symbols": ids}, http.MethodGet)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return valuation.NormalizeQuotes(resp.Data)
}

// LookupGrades fetches evaluation grades for ids in one call. The result is
// keyed by normalized identifier.
func (c *Client) LookupGrades(ctx context.Context, ids []string) (map[string]string, error) {
	resp := c.Send(ctx, c.endpoints.Evaluation, map[string]any{"symbols": ids}, http.MethodPost)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return valuation.NormalizeGrades(resp.Data)
}

// Login exchanges credentials for a bearer token, installs it on the client
// and returns the session lifetime in seconds.
func (c *Client) Login(ctx context.Context, username, password string) (int, error) {
	resp := c.Send(ctx, c.endpoints.Login, map[string]any{
		"username": username,
		"password": password,
	}, http.MethodPost)
	if resp.Err != nil {
		return 0, resp.Err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return 0, fmt.Errorf("decoding login response: %w", err)
	}
	token := firstString(fields, tokenKeys)
	if token == "" {
		return 0, fmt.Errorf("%w: login response carries no token", ErrRequestFailed)
	}
	c.SetToken(token)
	seconds, _ := firstInt(fields, ttlKeys)
	return seconds, nil
}

// SessionTTL returns the remaining session lifetime reported by the backend.
func (c *Client) SessionTTL(ctx context.Context) (int, error) {
	resp := c.Send(ctx, c.endpoints.SessionTTL, nil, http.MethodGet)
	if resp.Err != nil {
		return 0, resp.Err
	}
	return parseTTL(resp.Data)
}

// RefreshSession extends the session and returns the new lifetime. A token
// in the response replaces the current one.
func (c *Client) RefreshSession(ctx context.Context) (int, error) {
	resp := c.Send(ctx, c.endpoints.Refresh, map[string]any{}, http.MethodPost)
	if resp.Err != nil {
		return 0, resp.Err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return 0, fmt.Errorf("decoding refresh response: %w", err)
	}
	if token := firstString(fields, tokenKeys); token != "" {
		c.SetToken(token)
	}
	seconds, ok := firstInt(fields, ttlKeys)
	if !ok {
		return 0, fmt.Errorf("%w: refresh response carries no lifetime", ErrRequestFailed)
	}
	return seconds, nil
}

// ServerVersion returns the backend's semantic version.
func (c *Client) ServerVersion(ctx context.Context) (*semver.Version, error) {
	resp := c.Send(ctx, c.endpoints.Version, nil, http.MethodGet)
	if resp.Err != nil {
		return nil, resp.Err
	}

	var raw string
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		fields, fieldErr := objectFields(resp.Data)
		if fieldErr != nil {
			return nil, fmt.Errorf("decoding version response: %w", fieldErr)
		}
		raw = firstString(fields, []string{"version", "server_version", "serverVersion"})
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: version response is empty", ErrRequestFailed)
	}

	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing server version %q: %w", raw, err)
	}
	return v, nil
}

// CheckCompatibility fetches the server version and checks it against a
// semver constraint such as ">= 2.1, < 3".
func (c *Client) CheckCompatibility(ctx context.Context, constraint string) (*semver.Version, error) {
	constraints, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("parsing version constraint %q: %w", constraint, err)
	}
	v, err := c.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}
	if !constraints.Check(v) {
		return v, fmt.Errorf("%w: server %s does not satisfy %s", ErrIncompatibleServer, v, constraint)
	}
	return v, nil
}

func parseTTL(data json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, nil
	}
	fields, err := objectFields(data)
	if err != nil {
		return 0, fmt.Errorf("decoding session lifetime: %w", err)
	}
	n, ok := firstInt(fields, ttlKeys)
	if !ok {
		return 0, fmt.Errorf("%w: session lifetime missing", ErrRequestFailed)
	}
	return n, nil
}

func objectFields(data json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if inner, ok := fields["data"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(inner, &nested) == nil {
			return nested, nil
		}
	}
	return fields, nil
}

func firstString(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(fields map[string]json.RawMessage, keys []string) (int, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			return int(f), true
		}
	}
	return 0, false
}
