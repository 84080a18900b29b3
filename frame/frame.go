// Package frame implements the text codec for the chat socket protocol.
//
// Every frame is a single line: a four-letter tag immediately followed by
// a JSON document, for example
//
//	LOGI{"key":"sk1","nickname":"me","error":null}
//	MESG{"channel_url":"c1","message":"hello","req_id":"42",...}
//
// Decode is total: any input yields a Frame, and anything it cannot make
// sense of comes back as KindUnknown carrying the original text.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NeboLoop/snoochat-go-sdk/wire"
)

// TagLen is the width of the type tag preceding every payload.
const TagLen = 4

// ErrUnknownTag is reported by DecodeStrict for tags outside the protocol.
var ErrUnknownTag = errors.New("frame: unknown tag")

// Kind identifies the variant held by a Frame.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLoginResult
	KindMessage
	KindSnoomoji
	KindGif
	KindTypingStart
	KindTypingEnd
)

var kindNames = [...]string{
	KindUnknown:     "UNKNOWN",
	KindLoginResult: "LOGIN_RESULT",
	KindMessage:     "MESSAGE",
	KindSnoomoji:    "SNOOMOJI_MESSAGE",
	KindGif:         "GIF_MESSAGE",
	KindTypingStart: "TYPING_START",
	KindTypingEnd:   "TYPING_END",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// IsMessage reports whether k is one of the content-bearing message kinds.
func (k Kind) IsMessage() bool {
	return k == KindMessage || k == KindSnoomoji || k == KindGif
}

// User identifies who sent a message or typing event.
type User struct {
	ID   string
	Name string
}

// LoginError is the rejection carried by a failed LOGI frame.
type LoginError struct {
	Code    int
	Message string
}

func (e *LoginError) Error() string {
	if e.Code != 0 {
		return "login rejected: " + e.Message + " (code " + strconv.Itoa(e.Code) + ")"
	}
	return "login rejected: " + e.Message
}

// LoginResult is the LOGIN_RESULT variant. Error is nil on success.
type LoginResult struct {
	Key      string
	Nickname string
	UserID   string
	Error    *LoginError
}

// OK reports whether the server accepted the session.
func (l *LoginResult) OK() bool { return l.Error == nil }

// Message is the MESSAGE, SNOOMOJI_MESSAGE and GIF_MESSAGE variant.
type Message struct {
	MsgID      int64
	ReqID      string
	ChannelURL string
	Text       string
	Sender     User
	Snoomoji   string
	GifURL     string
	CreatedAt  int64
	Data       string
}

// Typing is the TYPING_START and TYPING_END variant.
type Typing struct {
	ChannelURL string
	Time       int64
	User       User
}

// Frame is one decoded unit of the protocol. Exactly one of Login,
// Message or Typing is set, according to Kind; Unknown frames set none.
// Raw always holds the text the frame was decoded from.
type Frame struct {
	Kind    Kind
	Tag     string
	Login   *LoginResult
	Message *Message
	Typing  *Typing
	Raw     string
}

// ChannelURL returns the channel the frame refers to, if any.
func (f Frame) ChannelURL() string {
	switch {
	case f.Message != nil:
		return f.Message.ChannelURL
	case f.Typing != nil:
		return f.Typing.ChannelURL
	}
	return ""
}

// Decode parses a line received from the socket. It never fails.
func Decode(raw string) Frame {
	f, err := DecodeStrict(raw)
	if err != nil {
		return Unknown(raw)
	}
	return f
}

// Unknown wraps raw text that could not be decoded.
func Unknown(raw string) Frame {
	f := Frame{Kind: KindUnknown, Raw: raw}
	if len(raw) >= TagLen && isASCII(raw[:TagLen]) {
		f.Tag = raw[:TagLen]
	}
	return f
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// DecodeStrict is Decode with the failure reason exposed.
func DecodeStrict(raw string) (Frame, error) {
	line := strings.TrimRight(raw, "\r\n")
	if len(line) < TagLen {
		return Frame{}, errors.New("frame: short line")
	}
	tag, body := line[:TagLen], []byte(line[TagLen:])

	f := Frame{Tag: tag, Raw: raw}
	switch tag {
	case wire.TagLogin:
		var p wire.LoginPayload
		if err := unmarshalObject(body, &p); err != nil {
			return Frame{}, err
		}
		f.Kind = KindLoginResult
		f.Login = &LoginResult{
			Key:      p.Key,
			Nickname: p.Nickname,
			UserID:   p.UserID,
			Error:    loginError(p),
		}

	case wire.TagMessage:
		var p wire.MessagePayload
		if err := unmarshalObject(body, &p); err != nil {
			return Frame{}, err
		}
		m := &Message{
			MsgID:      p.MsgID,
			ReqID:      p.ReqID,
			ChannelURL: p.ChannelURL,
			Text:       p.Message,
			Sender:     User{ID: p.User.GuestID, Name: p.User.Name},
			CreatedAt:  p.CreatedAt,
			Data:       p.Data,
		}
		f.Kind = KindMessage
		if p.Data != "" {
			var d wire.MessageData
			if json.Unmarshal([]byte(p.Data), &d) == nil {
				switch {
				case d.V1.Snoomoji != "":
					m.Snoomoji = d.V1.Snoomoji
					f.Kind = KindSnoomoji
				case d.V1.Gif != nil && d.V1.Gif.URL != "":
					m.GifURL = d.V1.Gif.URL
					f.Kind = KindGif
				}
			}
		}
		f.Message = m

	case wire.TagTypingStart, wire.TagTypingEnd:
		var p wire.TypingPayload
		if err := unmarshalObject(body, &p); err != nil {
			return Frame{}, err
		}
		t := &Typing{ChannelURL: p.ChannelURL, Time: p.Time}
		if p.User != nil {
			t.User = User{ID: p.User.GuestID, Name: p.User.Name}
		}
		f.Kind = KindTypingStart
		if tag == wire.TagTypingEnd {
			f.Kind = KindTypingEnd
		}
		f.Typing = t

	default:
		return Frame{}, ErrUnknownTag
	}
	return f, nil
}

// unmarshalObject rejects anything but a JSON object, so a tag followed by
// `null` or a bare string is not mistaken for an empty payload.
func unmarshalObject(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("frame: payload is not an object")
	}
	return json.Unmarshal(trimmed, v)
}

func loginError(p wire.LoginPayload) *LoginError {
	raw := bytes.TrimSpace(p.Error)
	switch string(raw) {
	case "", "null", "false":
		return nil
	case "true":
		return &LoginError{Code: p.Code, Message: p.Message}
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return nil
		}
		return &LoginError{Code: p.Code, Message: s}
	}
	msg := p.Message
	if msg == "" {
		msg = string(raw)
	}
	return &LoginError{Code: p.Code, Message: msg}
}
