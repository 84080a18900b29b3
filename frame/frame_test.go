package frame

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestDecodeLoginSuccess(t *testing.T) {
	f := Decode(`LOGI{"key":"sk1","nickname":"me","user_id":"t2_me","error":null}`)
	if f.Kind != KindLoginResult {
		t.Fatalf("kind: got %v, want %v", f.Kind, KindLoginResult)
	}
	if !f.Login.OK() {
		t.Fatalf("expected success, got %v", f.Login.Error)
	}
	if f.Login.Key != "sk1" || f.Login.Nickname != "me" || f.Login.UserID != "t2_me" {
		t.Errorf("unexpected login fields: %+v", f.Login)
	}
}

func TestDecodeLoginFailure(t *testing.T) {
	cases := []struct {
		raw  string
		want LoginError
	}{
		{`LOGI{"error":"bad_session"}`, LoginError{Message: "bad_session"}},
		{`LOGI{"error":true,"message":"expired","code":400302}`, LoginError{Code: 400302, Message: "expired"}},
		{`LOGI{"error":{"reason":"x"},"message":"nope","code":1}`, LoginError{Code: 1, Message: "nope"}},
	}
	for _, tc := range cases {
		raw, want := tc.raw, tc.want
		f := Decode(raw)
		if f.Kind != KindLoginResult {
			t.Fatalf("%s: kind %v", raw, f.Kind)
		}
		if f.Login.OK() {
			t.Fatalf("%s: expected failure", raw)
		}
		if *f.Login.Error != want {
			t.Errorf("%s: got %+v, want %+v", raw, *f.Login.Error, want)
		}
		if f.Login.Key != "" {
			t.Errorf("%s: key should be empty", raw)
		}
	}
}

func TestDecodeLoginErrorFalseIsSuccess(t *testing.T) {
	f := Decode(`LOGI{"key":"k","error":false}`)
	if !f.Login.OK() {
		t.Error("error:false should decode as success")
	}
}

func TestDecodeMessage(t *testing.T) {
	raw := `MESG{"msg_id":7,"req_id":"11","channel_url":"c1","message":"hi there","user":{"guest_id":"t2_bob","name":"bob"},"created_at":1700000000000}` + "\n"
	f := Decode(raw)
	if f.Kind != KindMessage {
		t.Fatalf("kind: got %v", f.Kind)
	}
	m := f.Message
	if m.MsgID != 7 || m.ReqID != "11" || m.ChannelURL != "c1" || m.Text != "hi there" {
		t.Errorf("unexpected message: %+v", m)
	}
	if m.Sender.ID != "t2_bob" || m.Sender.Name != "bob" {
		t.Errorf("unexpected sender: %+v", m.Sender)
	}
	if f.Raw != raw {
		t.Error("raw text not preserved")
	}
	if f.ChannelURL() != "c1" {
		t.Errorf("ChannelURL: got %q", f.ChannelURL())
	}
}

func TestDecodeSnoomojiAndGif(t *testing.T) {
	snoo, _ := EncodeSnoomoji(OutSnoomoji{ChannelURL: "c1", Snoomoji: "partyparrot", ReqID: 1})
	f := Decode(snoo)
	if f.Kind != KindSnoomoji || f.Message.Snoomoji != "partyparrot" {
		t.Errorf("snoomoji: got %v %+v", f.Kind, f.Message)
	}

	gif, _ := EncodeGif(OutGif{ChannelURL: "c2", GifURL: "https://example.com/a.gif"})
	f = Decode(gif)
	if f.Kind != KindGif || f.Message.GifURL != "https://example.com/a.gif" {
		t.Errorf("gif: got %v %+v", f.Kind, f.Message)
	}
	if !f.Kind.IsMessage() {
		t.Error("gif should count as a message kind")
	}
}

func TestDecodeTyping(t *testing.T) {
	f := Decode(`TPST{"channel_url":"c1","time":123,"user":{"guest_id":"t2_a","name":"a"}}`)
	if f.Kind != KindTypingStart || f.Typing.ChannelURL != "c1" || f.Typing.Time != 123 || f.Typing.User.Name != "a" {
		t.Errorf("typing start: %v %+v", f.Kind, f.Typing)
	}
	f = Decode(`TPEN{"channel_url":"c1","time":124}`)
	if f.Kind != KindTypingEnd || f.Typing.Time != 124 {
		t.Errorf("typing end: %v %+v", f.Kind, f.Typing)
	}
}

func TestDecodeIsTotal(t *testing.T) {
	inputs := []string{
		"",
		"LOG",
		"PING",
		"SYEV{\"cat\":10000}",
		"MESG",
		"MESG{not json",
		"MESGnull",
		"LOGI\"str\"",
		"TPST[1,2]",
		"\x00\x01\x02\x03\x04",
		"日本語のテキスト",
	}
	for _, in := range inputs {
		f := Decode(in)
		if f.Kind != KindUnknown {
			t.Errorf("%q: got %v, want UNKNOWN", in, f.Kind)
		}
		if f.Raw != in {
			t.Errorf("%q: raw not preserved, got %q", in, f.Raw)
		}
		if f.Login != nil || f.Message != nil || f.Typing != nil {
			t.Errorf("%q: unknown frame should carry no variant", in)
		}
	}
}

func TestUnknownTagIsASCIIOnly(t *testing.T) {
	cases := []struct {
		raw string
		tag string
	}{
		{`PING{"id":1}`, "PING"},
		{"日本語のテキスト", ""},
		{"ab\xffcd", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		f := Decode(tc.raw)
		if f.Tag != tc.tag {
			t.Errorf("%q: tag %q, want %q", tc.raw, f.Tag, tc.tag)
		}
		if !utf8.ValidString(f.Tag) {
			t.Errorf("%q: tag is not valid UTF-8", tc.raw)
		}
	}
}

func TestEncodeMessageRoundTrip(t *testing.T) {
	line, err := EncodeMessage(OutMessage{ChannelURL: "c1", Text: "hello", ReqID: 42})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(line, "MESG{") || !strings.HasSuffix(line, "\n") {
		t.Fatalf("unexpected framing: %q", line)
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line[TagLen:])), &generic); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if generic["channel_url"] != "c1" || generic["message"] != "hello" || generic["req_id"] != "42" {
		t.Errorf("unexpected payload: %v", generic)
	}

	f := Decode(line)
	if f.Kind != KindMessage || f.Message.ReqID != "42" || f.Message.Text != "hello" {
		t.Errorf("decode of encoded message: %v %+v", f.Kind, f.Message)
	}
}

func TestEncodeEscapesText(t *testing.T) {
	texts := []string{
		`she said "hi"`,
		`back\slash`,
		"line1\nline2\ttab\r",
		"\x00\x1f control",
		"émoji 🎉 and 中文",
		`{"channel_url":"evil"}`,
		"</script>&<>",
	}
	for _, text := range texts {
		line, err := EncodeMessage(OutMessage{ChannelURL: "c1", Text: text, ReqID: 1})
		if err != nil {
			t.Fatalf("encode %q: %v", text, err)
		}
		if strings.Count(line, "\n") != 1 {
			t.Errorf("%q: frame must be a single line, got %q", text, line)
		}
		f := Decode(line)
		if f.Kind != KindMessage {
			t.Fatalf("%q: decoded as %v", text, f.Kind)
		}
		if f.Message.Text != text {
			t.Errorf("text mismatch: got %q, want %q", f.Message.Text, text)
		}
		if f.Message.ChannelURL != "c1" {
			t.Errorf("%q: channel corrupted: %q", text, f.Message.ChannelURL)
		}
	}
}

func TestEncodeTyping(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	line, err := EncodeTypingStart("c1", at)
	if err != nil {
		t.Fatal(err)
	}
	if line != `TPST{"channel_url":"c1","time":1700000000123}`+"\n" {
		t.Errorf("unexpected TPST: %q", line)
	}
	line, _ = EncodeTypingEnd("c1", at)
	if line != `TPEN{"channel_url":"c1","time":1700000000123}`+"\n" {
		t.Errorf("unexpected TPEN: %q", line)
	}
}

func TestKindString(t *testing.T) {
	if KindSnoomoji.String() != "SNOOMOJI_MESSAGE" {
		t.Errorf("got %s", KindSnoomoji)
	}
	if Kind(200).String() != "UNKNOWN" {
		t.Errorf("out of range kind: got %s", Kind(200))
	}
}

func TestRequestIDsMonotonic(t *testing.T) {
	start := time.UnixMilli(1000)
	ids := NewRequestIDs(start)
	prev := ids.Next()
	if prev != 1000 {
		t.Fatalf("first id: got %d, want 1000", prev)
	}
	for i := 0; i < 1000; i++ {
		next := ids.Next()
		if next != prev+1 {
			t.Fatalf("ids not linear at iteration %d: %d after %d", i, next, prev)
		}
		prev = next
	}

	// reseeding with an older clock must not move backwards
	ids.Reset(start)
	if ids.Peek() != prev+1 {
		t.Errorf("reset moved counter backwards: %d", ids.Peek())
	}
	ids.Reset(time.UnixMilli(5000))
	if ids.Peek() != 5000 {
		t.Errorf("reset with newer clock: got %d, want 5000", ids.Peek())
	}
}
