package interfaces

import "context"

// Direction selects the pagination direction of a message history query.
type Direction string

const (
	DirectionBackward Direction = "b"
	DirectionForward  Direction = "f"
)

// MessageQuery filters a room's message history.
type MessageQuery struct {
	Limit     int
	Direction Direction
	Types     []string
}

// Message is a timeline event as returned by the message history endpoint.
type Message struct {
	EventID         string         `json:"event_id"`
	Type            string         `json:"type"`
	Sender          string         `json:"sender"`
	OriginServerTS  int64          `json:"origin_server_ts"`
	Content         map[string]any `json:"content"`
	Unsigned        map[string]any `json:"unsigned,omitempty"`
	RedactedBecause map[string]any `json:"redacted_because,omitempty"`
}

// Body returns the plain text body of the message.
func (m Message) Body() string { return contentString(m.Content, "body") }

// FormattedBody returns the pre-rendered HTML body, if any.
func (m Message) FormattedBody() string { return contentString(m.Content, "formatted_body") }

// MediaURL returns the media reference (mxc://) attached to the message.
func (m Message) MediaURL() string { return contentString(m.Content, "url") }

// Edited reports whether the message is a replacement of an earlier event.
func (m Message) Edited() bool {
	if m.Content == nil {
		return false
	}
	_, ok := m.Content["m.new_content"]
	return ok
}

// Redacted reports whether the message has been redacted.
func (m Message) Redacted() bool {
	if m.RedactedBecause != nil {
		return true
	}
	if m.Unsigned == nil {
		return false
	}
	_, ok := m.Unsigned["redacted_because"]
	return ok
}

// MessageHistoryClient fetches recent messages of a room.
type MessageHistoryClient interface {
	Messages(ctx context.Context, roomID string, query MessageQuery) ([]Message, error)
}

func contentString(content map[string]any, key string) string {
	if content == nil {
		return ""
	}
	if value, ok := content[key].(string); ok {
		return value
	}
	return ""
}
