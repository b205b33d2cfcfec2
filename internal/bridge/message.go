// ABOUTME: Message and reply types for the agent bridge wire protocol
// ABOUTME: Defines roles, outbound JSON shape, and the normalized reply

package bridge

// Role identifies the author of a message.
type Role string

// Message roles understood by bridge implementations.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleAgent     Role = "agent"
)

// TextContent is the content envelope bridges expect.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is an outbound message for the bridge. It is constructed per
// request and never mutated after SendMessage.
type Message struct {
	Role            Role
	Text            string
	ConversationID  string
	ParentMessageID string
	MessageID       string
	Metadata        map[string]any
}

// wireMessage is the JSON body POSTed to the bridge. All fields are always
// present; bridges vary in which ones they read.
type wireMessage struct {
	Role            Role           `json:"role"`
	Content         TextContent    `json:"content"`
	ConversationID  string         `json:"conversation_id"`
	Metadata        map[string]any `json:"metadata"`
	ParentMessageID string         `json:"parent_message_id"`
	MessageID       string         `json:"message_id"`
}

// toWire converts a Message to its wire representation.
func (m *Message) toWire() *wireMessage {
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &wireMessage{
		Role:            m.Role,
		Content:         TextContent{Type: "text", Text: m.Text},
		ConversationID:  m.ConversationID,
		Metadata:        metadata,
		ParentMessageID: m.ParentMessageID,
		MessageID:       m.MessageID,
	}
}

// Reply is the normalized result of a bridge exchange. Text is always set;
// on failure it begins with ErrorMarker.
type Reply struct {
	Text           string
	ConversationID string
}
