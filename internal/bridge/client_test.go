// ABOUTME: Tests for endpoint fallback, wire shape, and failure conversion
// ABOUTME: Uses a stub transport that fails N times before succeeding

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport fails the first N calls with a transport error, then hands
// requests to respond. It records every URL attempted.
type stubTransport struct {
	failures int
	err      error
	calls    []string
	respond  func(req *http.Request) *http.Response
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls = append(s.calls, req.URL.String())
	if len(s.calls) <= s.failures {
		err := s.err
		if err == nil {
			err = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		return nil, err
	}
	return s.respond(req), nil
}

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStubClient(st *stubTransport) *Client {
	return NewClientWithHTTPClient("http://bridge.local:6000", &http.Client{Transport: st})
}

func TestCandidates_AppendsA2AFirst(t *testing.T) {
	c := NewClient("http://localhost:6000", time.Second)
	assert.Equal(t, []string{
		"http://localhost:6000/a2a",
		"http://localhost:6000",
		"http://localhost:6000/send",
		"http://localhost:6000/message",
		"http://localhost:6000/messages",
	}, c.candidates())
}

func TestCandidates_SkipsA2AWhenPresent(t *testing.T) {
	c := NewClient("http://localhost:6000/a2a", time.Second)
	urls := c.candidates()
	require.Len(t, urls, 4)
	assert.Equal(t, "http://localhost:6000/a2a", urls[0])
}

func TestSendMessage_WireShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	reply := c.SendMessage(context.Background(), &Message{
		Role:           RoleUser,
		Text:           "hi",
		ConversationID: "c1",
		MessageID:      "m1",
		Metadata:       map[string]any{"source": "ui_client"},
	})

	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, "user", captured["role"])
	content, ok := captured["content"].(map[string]any)
	require.True(t, ok, "content must be a mapping")
	assert.Equal(t, "text", content["type"])
	assert.Equal(t, "hi", content["text"])
	assert.Equal(t, "c1", captured["conversation_id"])
	assert.Equal(t, "m1", captured["message_id"])
	md, ok := captured["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ui_client", md["source"])
}

func TestSendMessage_FallbackAfterTransportFailure(t *testing.T) {
	st := &stubTransport{
		failures: 1,
		respond: func(*http.Request) *http.Response {
			return jsonResponse(200, `{"response":"second answered"}`)
		},
	}
	c := newStubClient(st)

	reply := c.SendMessage(context.Background(), &Message{Role: RoleUser, Text: "hi"})

	assert.Equal(t, "second answered", reply.Text)
	require.Len(t, st.calls, 2)
	assert.Equal(t, "http://bridge.local:6000/a2a", st.calls[0])
	assert.Equal(t, "http://bridge.local:6000", st.calls[1])
}

func TestSendMessage_HTTPErrorStatusStopsFallback(t *testing.T) {
	st := &stubTransport{
		respond: func(*http.Request) *http.Response {
			return jsonResponse(500, `{"error":"boom"}`)
		},
	}
	c := newStubClient(st)

	reply := c.SendMessage(context.Background(), &Message{Role: RoleUser, Text: "hi"})

	// 5xx is still delivery: no further candidates are tried and the error
	// payload is surfaced.
	assert.Len(t, st.calls, 1)
	assert.Equal(t, "[error] boom", reply.Text)
}

func TestSendMessage_AllCandidatesFail(t *testing.T) {
	st := &stubTransport{failures: 5}
	c := newStubClient(st)

	reply := c.SendMessage(context.Background(), &Message{
		Role:           RoleUser,
		Text:           "hi",
		ConversationID: "c1",
	})

	assert.Len(t, st.calls, 5)
	assert.True(t, strings.HasPrefix(reply.Text, ErrorMarker), "text must carry the error marker: %q", reply.Text)
	assert.Contains(t, reply.Text, "connection refused")
	assert.Equal(t, "c1", reply.ConversationID)
}

func TestSendMessage_Timeout(t *testing.T) {
	st := &stubTransport{failures: 5, err: timeoutError{}}
	c := newStubClient(st)

	reply := c.SendMessage(context.Background(), &Message{
		Role:           RoleUser,
		Text:           "hi",
		ConversationID: "c1",
	})

	assert.Equal(t, "[error] request timeout", reply.Text)
	assert.Equal(t, "c1", reply.ConversationID)
}

func TestSendMessage_NonJSONBodyWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text answer"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	reply := c.SendMessage(context.Background(), &Message{Role: RoleUser, Text: "hi"})

	assert.Equal(t, "plain text answer", reply.Text)
}

func TestSendMessage_MalformedJSONWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"broken`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	reply := c.SendMessage(context.Background(), &Message{Role: RoleUser, Text: "hi"})

	assert.Equal(t, `{"broken`, reply.Text)
}

func TestSendMessage_BareJSONString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`"a bare string"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	reply := c.SendMessage(context.Background(), &Message{Role: RoleUser, Text: "hi", ConversationID: "c1"})

	assert.Equal(t, "a bare string", reply.Text)
	assert.Equal(t, "c1", reply.ConversationID)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(context.DeadlineExceeded))
	assert.True(t, isTimeout(timeoutError{}))
	assert.False(t, isTimeout(errors.New("connection refused")))
}
