// ABOUTME: Tolerant HTTP client for agent bridges with endpoint fallback
// ABOUTME: Never fails past its boundary; every outcome becomes a Reply

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorMarker prefixes every reply text that reports a failure.
const ErrorMarker = "[error]"

// timeoutText is the fixed reply text for transport timeouts.
const timeoutText = ErrorMarker + " request timeout"

// Client talks to an agent bridge whose exact endpoint layout and response
// contract are unknown. A single timeout applies uniformly to every
// candidate attempt.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the bridge at baseURL. The base is usually
// http://localhost:6000 or already ends in /a2a.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTPClient creates a client using the supplied http.Client.
// Used by tests to inject a stub transport.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// result carries the decoded response body together with its HTTP status.
// Keeping the status out of the payload map means the normalizer sees the
// body exactly as the bridge sent it.
type result struct {
	status  int
	payload any
}

// candidates returns the ordered list of full addresses to try.
// /a2a is preferred but skipped when the base already ends with it.
func (c *Client) candidates() []string {
	urls := make([]string, 0, 5)
	if !strings.HasSuffix(c.baseURL, "/a2a") {
		urls = append(urls, c.baseURL+"/a2a")
	}
	urls = append(urls,
		c.baseURL,
		c.baseURL+"/send",
		c.baseURL+"/message",
		c.baseURL+"/messages",
	)
	return urls
}

// tryPost attempts each candidate address in order. The first attempt that
// completes without a transport error is final: a 4xx/5xx response still
// counts as delivery, since its body often carries an error payload the
// normalizer can surface. If every candidate fails, the last error is
// returned.
func (c *Client) tryPost(ctx context.Context, body []byte) (*result, error) {
	var lastErr error
	for _, url := range c.candidates() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		res := decodeResponse(resp)
		_ = resp.Body.Close()
		return res, nil
	}
	return nil, lastErr
}

// decodeResponse decodes the body as JSON when the content type says so;
// anything else (including undecodable JSON) is wrapped as {"response": body}.
func decodeResponse(resp *http.Response) *result {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		raw = nil
	}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ctype, "application/json") {
		var payload any
		if err := json.Unmarshal(raw, &payload); err == nil {
			return &result{status: resp.StatusCode, payload: payload}
		}
	}
	return &result{
		status:  resp.StatusCode,
		payload: map[string]any{"response": string(raw)},
	}
}

// SendMessage delivers msg to the bridge and normalizes whatever comes back.
// It never returns an error: transport failures, upstream error payloads,
// and unparseable responses all resolve to a Reply, preserving the outbound
// conversation id.
func (c *Client) SendMessage(ctx context.Context, msg *Message) *Reply {
	body, err := json.Marshal(msg.toWire())
	if err != nil {
		return errorReply(err, msg.ConversationID)
	}

	res, err := c.tryPost(ctx, body)
	if err != nil {
		if isTimeout(err) {
			return &Reply{Text: timeoutText, ConversationID: msg.ConversationID}
		}
		return errorReply(err, msg.ConversationID)
	}

	return normalize(res, msg.ConversationID)
}

// SendMessageAsync dispatches SendMessage on its own goroutine and returns
// immediately. Callers cannot observe completion or retrieve the result;
// this exists for UI responsiveness only.
func (c *Client) SendMessageAsync(msg *Message) {
	go func() {
		_ = c.SendMessage(context.Background(), msg)
	}()
}

// errorReply formats a transport or encoding failure as a reply text
// embedding the error type and message.
func errorReply(err error, conversationID string) *Reply {
	return &Reply{
		Text:           fmt.Sprintf("%s %T: %v", ErrorMarker, err, err),
		ConversationID: conversationID,
	}
}

// isTimeout reports whether err represents a request timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
