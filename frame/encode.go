package frame

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/NeboLoop/snoochat-go-sdk/wire"
)

const mentionTypeUsers = "users"

// OutMessage is a text message to be sent.
type OutMessage struct {
	ChannelURL      string
	Text            string
	ReqID           int64
	ClientMessageID string
}

// OutSnoomoji is a reaction (snoomoji) to be sent.
type OutSnoomoji struct {
	ChannelURL      string
	Snoomoji        string
	ReqID           int64
	ClientMessageID string
}

// OutGif is a media message to be sent. The provider does not expect a
// request id for it.
type OutGif struct {
	ChannelURL      string
	GifURL          string
	ClientMessageID string
}

// EncodeMessage renders a MESG line carrying free text.
func EncodeMessage(m OutMessage) (string, error) {
	data, err := encodeData(wire.MessageDataV1{ClientMessageID: m.ClientMessageID})
	if err != nil {
		return "", err
	}
	return encode(wire.TagMessage, wire.SendMessagePayload{
		ChannelURL:  m.ChannelURL,
		Message:     m.Text,
		Data:        data,
		MentionType: mentionTypeUsers,
		ReqID:       strconv.FormatInt(m.ReqID, 10),
	})
}

// EncodeSnoomoji renders a MESG line carrying a reaction identifier.
func EncodeSnoomoji(s OutSnoomoji) (string, error) {
	data, err := encodeData(wire.MessageDataV1{
		ClientMessageID: s.ClientMessageID,
		Snoomoji:        s.Snoomoji,
	})
	if err != nil {
		return "", err
	}
	return encode(wire.TagMessage, wire.SendMessagePayload{
		ChannelURL:  s.ChannelURL,
		Data:        data,
		MentionType: mentionTypeUsers,
		ReqID:       strconv.FormatInt(s.ReqID, 10),
	})
}

// EncodeGif renders a MESG line carrying a media URL.
func EncodeGif(g OutGif) (string, error) {
	data, err := encodeData(wire.MessageDataV1{
		ClientMessageID: g.ClientMessageID,
		Gif:             &wire.GifData{URL: g.GifURL},
	})
	if err != nil {
		return "", err
	}
	return encode(wire.TagMessage, wire.SendMessagePayload{
		ChannelURL:  g.ChannelURL,
		Data:        data,
		MentionType: mentionTypeUsers,
	})
}

// EncodeTypingStart renders a TPST line stamped with t in epoch millis.
func EncodeTypingStart(channelURL string, t time.Time) (string, error) {
	return encode(wire.TagTypingStart, wire.TypingPayload{ChannelURL: channelURL, Time: t.UnixMilli()})
}

// EncodeTypingEnd renders a TPEN line stamped with t in epoch millis.
func EncodeTypingEnd(channelURL string, t time.Time) (string, error) {
	return encode(wire.TagTypingEnd, wire.TypingPayload{ChannelURL: channelURL, Time: t.UnixMilli()})
}

func encodeData(v1 wire.MessageDataV1) (string, error) {
	if v1.Highlights == nil {
		v1.Highlights = []string{}
	}
	b, err := json.Marshal(wire.MessageData{V1: v1})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encode marshals the payload with encoding/json, so quotes, control
// characters and non-ASCII text in user input are escaped for us.
func encode(tag string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return tag + string(b) + "\n", nil
}
