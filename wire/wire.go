// Package wire defines the JSON payload types carried by the chat socket's
// text frames. Each frame is a four-letter tag followed by one of these
// documents, e.g. MESG{"channel_url":...}.
package wire

import "encoding/json"

// Frame tags.
const (
	TagLogin       = "LOGI"
	TagMessage     = "MESG"
	TagTypingStart = "TPST"
	TagTypingEnd   = "TPEN"
)

// LoginPayload is the body of a LOGI frame (server -> client).
// Error is left raw: the provider sends null, false, true or a string.
type LoginPayload struct {
	Key      string          `json:"key,omitempty"`
	Nickname string          `json:"nickname,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
	Code     int             `json:"code,omitempty"`
}

// UserPayload identifies the sender of a message or typing event.
type UserPayload struct {
	GuestID string `json:"guest_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// MessagePayload is the body of an inbound MESG frame.
type MessagePayload struct {
	MsgID      int64       `json:"msg_id,omitempty"`
	ReqID      string      `json:"req_id,omitempty"`
	ChannelURL string      `json:"channel_url"`
	Message    string      `json:"message"`
	Data       string      `json:"data,omitempty"`
	User       UserPayload `json:"user"`
	CreatedAt  int64       `json:"created_at,omitempty"`
}

// TypingPayload is the body of a TPST or TPEN frame, in both directions.
type TypingPayload struct {
	ChannelURL string       `json:"channel_url"`
	Time       int64        `json:"time"`
	User       *UserPayload `json:"user,omitempty"`
}

// SendMessagePayload is the body of an outbound MESG frame.
type SendMessagePayload struct {
	ChannelURL  string `json:"channel_url"`
	Message     string `json:"message"`
	Data        string `json:"data"`
	MentionType string `json:"mention_type"`
	ReqID       string `json:"req_id,omitempty"`
}

// MessageData is the JSON document embedded as a string in a message's
// data field.
type MessageData struct {
	V1 MessageDataV1 `json:"v1"`
}

// MessageDataV1 is the versioned body of MessageData.
type MessageDataV1 struct {
	ClientMessageID string   `json:"clientMessageId,omitempty"`
	Highlights      []string `json:"highlights"`
	IsHidden        bool     `json:"is_hidden"`
	Snoomoji        string   `json:"snoomoji,omitempty"`
	Gif             *GifData `json:"gif,omitempty"`
}

// GifData describes an embedded media reference.
type GifData struct {
	URL string `json:"url"`
}
