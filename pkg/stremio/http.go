package stremio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/addon"
)

const (
	DefaultAPIURL = "https://api.strem.io"

	manifestRetries    = 2 // extra attempts after the first
	manifestRetryDelay = 1 * time.Second
	probeTimeout       = 10 * time.Second
)

// HTTPClient talks to the Stremio API and to addon transport URLs.
type HTTPClient struct {
	apiURL string
	api    *retryablehttp.Client
	plain  *http.Client
}

// Option customizes a new HTTPClient.
type Option func(*HTTPClient)

// WithAPIURL points the client at a different API base, used in tests.
func WithAPIURL(base string) Option {
	return func(c *HTTPClient) { c.apiURL = base }
}

// WithProxy routes all traffic through an HTTP proxy.
func WithProxy(proxyURL string) Option {
	return func(c *HTTPClient) {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return
		}
		transport := &http.Transport{Proxy: http.ProxyURL(u)}
		c.api.HTTPClient.Transport = transport
		c.plain.Transport = transport
	}
}

// NewHTTPClient builds the production client. API calls go through a
// retrying transport; manifest fetches manage their own bounded retry.
func NewHTTPClient(opts ...Option) *HTTPClient {
	api := retryablehttp.NewClient()
	api.RetryMax = 2
	api.RetryWaitMin = 1 * time.Second
	api.RetryWaitMax = 4 * time.Second
	api.Logger = nil

	c := &HTTPClient{
		apiURL: DefaultAPIURL,
		api:    api,
		plain:  &http.Client{Timeout: probeTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiCall POSTs a JSON body to an API endpoint and returns the raw
// response body after checking the success/error envelope.
func (c *HTTPClient) apiCall(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("network error reading %s: %w", endpoint, err)
	}

	if !gjson.ValidBytes(raw) {
		return nil, &ParseError{URL: endpoint, Err: fmt.Errorf("invalid JSON envelope")}
	}

	if apiErr := gjson.GetBytes(raw, "error"); apiErr.Exists() {
		msg := apiErr.Get("message").String()
		code := apiErr.Get("code").Int()
		// Session-related error codes mean the authKey is no good.
		if code == 1 || code == 2 {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return nil, fmt.Errorf("api error %d: %s", code, msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
	}
	return raw, nil
}

// Login exchanges email/password for an authKey.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	raw, err := c.apiCall(ctx, "/api/login", map[string]any{
		"type":     "Login",
		"email":    email,
		"password": password,
		"facebook": false,
	})
	if err != nil {
		return "", err
	}
	authKey := gjson.GetBytes(raw, "result.authKey").String()
	if authKey == "" {
		return "", &ParseError{URL: "/api/login", Err: fmt.Errorf("no authKey in response")}
	}
	return authKey, nil
}

// GetCollection fetches the account's ordered addon collection.
func (c *HTTPClient) GetCollection(ctx context.Context, authKey string) ([]addon.Descriptor, error) {
	raw, err := c.apiCall(ctx, "/api/addonCollectionGet", map[string]any{
		"type":    "AddonCollectionGet",
		"authKey": authKey,
		"update":  true,
	})
	if err != nil {
		return nil, err
	}

	addonsJSON := gjson.GetBytes(raw, "result.addons")
	if !addonsJSON.Exists() {
		return nil, &ParseError{URL: "/api/addonCollectionGet", Err: fmt.Errorf("no addons in response")}
	}

	var collection []addon.Descriptor
	if err := json.Unmarshal([]byte(addonsJSON.Raw), &collection); err != nil {
		return nil, &ParseError{URL: "/api/addonCollectionGet", Err: err}
	}
	return collection, nil
}

// SetCollection writes back the account's addon collection.
func (c *HTTPClient) SetCollection(ctx context.Context, authKey string, collection []addon.Descriptor) error {
	if collection == nil {
		collection = []addon.Descriptor{}
	}
	raw, err := c.apiCall(ctx, "/api/addonCollectionSet", map[string]any{
		"type":    "AddonCollectionSet",
		"authKey": authKey,
		"addons":  collection,
	})
	if err != nil {
		return err
	}
	if success := gjson.GetBytes(raw, "result.success"); success.Exists() && !success.Bool() {
		return fmt.Errorf("collection write rejected: %s", gjson.GetBytes(raw, "result.error").String())
	}
	return nil
}

// FetchManifest fetches and decodes the live manifest at url. 404 returns
// ErrNotFound with no retry; network and parse failures are retried up to
// manifestRetries times with linear backoff.
func (c *HTTPClient) FetchManifest(ctx context.Context, manifestURL string) (addon.Manifest, error) {
	var lastErr error
	for attempt := 0; attempt <= manifestRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return addon.Manifest{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * manifestRetryDelay):
			}
		}

		m, err := c.fetchManifestOnce(ctx, manifestURL)
		if err == nil {
			return m, nil
		}
		if errors.Is(err, ErrNotFound) {
			return addon.Manifest{}, fmt.Errorf("%w: %s", ErrNotFound, manifestURL)
		}
		lastErr = err
	}
	return addon.Manifest{}, fmt.Errorf("manifest fetch failed after %d attempts: %w", manifestRetries+1, lastErr)
}

func (c *HTTPClient) fetchManifestOnce(ctx context.Context, manifestURL string) (addon.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return addon.Manifest{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.plain.Do(req)
	if err != nil {
		return addon.Manifest{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return addon.Manifest{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return addon.Manifest{}, fmt.Errorf("HTTP %d for %s", resp.StatusCode, manifestURL)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return addon.Manifest{}, fmt.Errorf("network error: %w", err)
	}

	var m addon.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return addon.Manifest{}, &ParseError{URL: manifestURL, Err: err}
	}
	if m.ID == "" || m.Version == "" {
		return addon.Manifest{}, &ParseError{URL: manifestURL, Err: fmt.Errorf("manifest missing id or version")}
	}
	return m, nil
}

// CheckReachable probes url with HEAD, falling back to GET for servers
// that reject HEAD. Unreachable means false, never an error.
func (c *HTTPClient) CheckReachable(ctx context.Context, probeURL string) bool {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, probeURL, nil)
		if err != nil {
			return false
		}
		resp, err := c.plain.Do(req)
		if err != nil {
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 500 {
			return true
		}
	}
	return false
}
