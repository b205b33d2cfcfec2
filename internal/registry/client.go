// ABOUTME: HTTP client for the remote agent registry
// ABOUTME: Registration tries several known paths; lookups resolve agent URLs and sender names

package registry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNotFound is returned when the registry has no entry for an agent.
var ErrNotFound = errors.New("agent not found in registry")

// registerPaths are tried in order during registration. Registry deployments
// differ in where they mount the endpoint.
var registerPaths = []string{
	"/register",
	"/api/register",
	"/agents/register",
	"/api/agents/register",
}

// Client talks to the remote agent registry.
type Client struct {
	baseURL    string
	attempts   int
	httpClient *http.Client
	logger     *slog.Logger
}

// Options configures a registry client.
type Options struct {
	// Attempts is the number of registration rounds across all paths.
	Attempts int
	// InsecureSkipVerify disables TLS verification for dev registries
	// running with self-signed certificates.
	InsecureSkipVerify bool
	Timeout            time.Duration
	Logger             *slog.Logger
}

// NewClient creates a registry client for the given base URL.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	transport := http.DefaultTransport
	if opts.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // dev registries use self-signed certs
		}
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		attempts: opts.Attempts,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		logger: opts.Logger.With("component", "registry"),
	}
}

// ResolveURL returns the registry URL to use: the configured one, then the
// contents of urlFile, then the default.
func ResolveURL(configured, urlFile, defaultURL string) string {
	if configured != "" {
		return configured
	}
	if urlFile != "" {
		if data, err := os.ReadFile(urlFile); err == nil {
			if url := strings.TrimSpace(string(data)); url != "" {
				return url
			}
		}
	}
	return defaultURL
}

// registration is the JSON body for registration requests.
type registration struct {
	AgentID  string `json:"agent_id"`
	AgentURL string `json:"agent_url"`
}

// Register announces the agent to the registry. Each attempt walks every
// known registration path; attempts are separated by a linear backoff
// (2s x attempt number). Returns nil as soon as any path answers with a
// status below 300.
func (c *Client) Register(ctx context.Context, agentID, publicURL string) error {
	if agentID == "" || publicURL == "" {
		return fmt.Errorf("registration needs agent_id and public_url (agent_id=%q, public_url=%q)", agentID, publicURL)
	}

	body, err := json.Marshal(registration{AgentID: agentID, AgentURL: publicURL})
	if err != nil {
		return fmt.Errorf("encoding registration: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		for _, path := range registerPaths {
			url := c.baseURL + path
			c.logger.Info("registering agent", "agent_id", agentID, "public_url", publicURL, "url", url)

			status, respBody, err := c.post(ctx, url, body)
			if err != nil {
				c.logger.Warn("registration attempt failed", "url", url, "error", err)
				lastErr = err
				continue
			}
			if status < 300 {
				c.logger.Info("agent registered", "agent_id", agentID, "status", status)
				return nil
			}
			c.logger.Warn("registry rejected registration", "url", url, "status", status, "body", truncate(respBody, 200))
			lastErr = fmt.Errorf("registry returned status %d", status)
		}

		if attempt < c.attempts {
			backoff := time.Duration(2*attempt) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("all registration attempts failed: %w", lastErr)
}

// Lookup resolves an agent id to its URL via GET /lookup/<id>.
func (c *Client) Lookup(ctx context.Context, agentID string) (string, error) {
	var payload struct {
		AgentURL string `json:"agent_url"`
	}
	status, err := c.getJSON(ctx, c.baseURL+"/lookup/"+agentID, &payload)
	if err != nil {
		return "", fmt.Errorf("looking up agent %s: %w", agentID, err)
	}
	if status == http.StatusNotFound || payload.AgentURL == "" {
		return "", ErrNotFound
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("registry lookup returned status %d", status)
	}
	return payload.AgentURL, nil
}

// Clients lists registered clients. Registries expose either /clients or the
// older /list; the former is preferred and the latter used as fallback.
func (c *Client) Clients(ctx context.Context) (json.RawMessage, error) {
	for _, path := range []string{"/clients", "/list"} {
		var payload json.RawMessage
		status, err := c.getJSON(ctx, c.baseURL+path, &payload)
		if err != nil {
			continue
		}
		if status == http.StatusOK {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("registry did not answer /clients or /list")
}

// SenderName resolves the display name for a sending agent.
func (c *Client) SenderName(ctx context.Context, agentID string) (string, error) {
	var payload struct {
		SenderName string `json:"sender_name"`
	}
	status, err := c.getJSON(ctx, c.baseURL+"/sender/"+agentID, &payload)
	if err != nil {
		return "", fmt.Errorf("resolving sender %s: %w", agentID, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("registry sender lookup returned status %d", status)
	}
	return payload.SenderName, nil
}

// post sends a JSON body and returns the status and response body.
func (c *Client) post(ctx context.Context, url string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(respBody), nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	// Error responses often carry HTML or plain text; only success bodies
	// are decoded.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// truncate limits s to n bytes for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
