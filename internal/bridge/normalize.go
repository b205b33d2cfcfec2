// ABOUTME: Priority-ordered extraction of reply text from arbitrary bridge payloads
// ABOUTME: Each rule is an extractor func; the first match wins

package bridge

import (
	"fmt"
	"strings"
)

// extractor attempts to pull reply text out of a decoded payload mapping.
type extractor func(payload map[string]any) (string, bool)

// extractors in priority order. Different bridge implementations return
// different shapes; these cover every one observed in the wild plus the
// common error envelopes.
var extractors = []extractor{
	extractContent,
	extractTopLevelText,
	extractParts,
	extractErrorField,
	extractErrorsList,
}

// normalize converts a delivery result into a Reply. The conversation id is
// resolved independently of the text: top-level field, then
// metadata.conversation_id, then the outbound fallback.
func normalize(res *result, fallbackConv string) *Reply {
	switch payload := res.payload.(type) {
	case map[string]any:
		conv := conversationID(payload, fallbackConv)
		for _, extract := range extractors {
			if text, ok := extract(payload); ok {
				return &Reply{Text: text, ConversationID: conv}
			}
		}
		return &Reply{Text: synthesize(res.status, payload), ConversationID: conv}
	case string:
		return &Reply{Text: payload, ConversationID: fallbackConv}
	default:
		return &Reply{Text: synthesize(res.status, payload), ConversationID: fallbackConv}
	}
}

// synthesize produces the last-resort reply text, echoing the raw payload
// and the HTTP status when one is available.
func synthesize(status int, payload any) string {
	if status != 0 {
		return fmt.Sprintf("(bridge) HTTP %d, body: %v", status, payload)
	}
	return fmt.Sprintf("(bridge) unexpected response: %v", payload)
}

// conversationID resolves the conversation id from the payload, preferring
// the top level over metadata, falling back to the outbound id.
func conversationID(payload map[string]any, fallback string) string {
	if conv, ok := payload["conversation_id"].(string); ok && conv != "" {
		return conv
	}
	if md, ok := payload["metadata"].(map[string]any); ok {
		if conv, ok := md["conversation_id"].(string); ok && conv != "" {
			return conv
		}
	}
	return fallback
}

// extractContent handles {"content": {"text": ...}} and {"content": "..."}.
func extractContent(payload map[string]any) (string, bool) {
	switch c := payload["content"].(type) {
	case map[string]any:
		if text, ok := c["text"].(string); ok {
			return text, true
		}
	case string:
		return c, true
	}
	return "", false
}

// extractTopLevelText scans response/text/message for a string value.
func extractTopLevelText(payload map[string]any) (string, bool) {
	for _, key := range []string{"response", "text", "message"} {
		if text, ok := payload[key].(string); ok {
			return text, true
		}
	}
	return "", false
}

// extractParts handles {"parts": [{"text": ...}, ...]}, a shape many
// bridge SDKs produce.
func extractParts(payload map[string]any) (string, bool) {
	parts, ok := payload["parts"].([]any)
	if !ok || len(parts) == 0 {
		return "", false
	}
	first, ok := parts[0].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := first["text"].(string)
	return text, ok
}

// extractErrorField handles error/detail/description, as a string or as a
// mapping with message/text. The result carries the error marker.
func extractErrorField(payload map[string]any) (string, bool) {
	for _, key := range []string{"error", "detail", "description"} {
		switch v := payload[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return ErrorMarker + " " + v, true
			}
		case map[string]any:
			msg, ok := v["message"].(string)
			if !ok {
				msg, ok = v["text"].(string)
			}
			if ok && strings.TrimSpace(msg) != "" {
				return ErrorMarker + " " + msg, true
			}
		}
	}
	return "", false
}

// extractErrorsList handles {"errors": [...]} where the first element is a
// mapping (message/detail/title) or a bare string.
func extractErrorsList(payload map[string]any) (string, bool) {
	errs, ok := payload["errors"].([]any)
	if !ok || len(errs) == 0 {
		return "", false
	}
	switch first := errs[0].(type) {
	case map[string]any:
		for _, key := range []string{"message", "detail", "title"} {
			if msg, ok := first[key].(string); ok && strings.TrimSpace(msg) != "" {
				return ErrorMarker + " " + msg, true
			}
		}
	case string:
		if strings.TrimSpace(first) != "" {
			return ErrorMarker + " " + first, true
		}
	}
	return "", false
}
