package webchat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/sprachbot/pkg/transports"
)

func nextTurn(t *testing.T, tr *Transport) transports.Turn {
	t.Helper()
	select {
	case turn := <-tr.Recv():
		return turn
	case <-time.After(2 * time.Second):
		t.Fatalf("expected turn")
	}
	return transports.Turn{}
}

func TestConversationRoundTrip(t *testing.T) {
	tr := New(Config{})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello Activity
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "conversation" || !strings.HasPrefix(hello.ConversationID, "webchat:") {
		t.Fatalf("unexpected hello %+v", hello)
	}
	start := nextTurn(t, tr)
	if start.Kind != transports.TurnStart || start.ConversationID != hello.ConversationID {
		t.Fatalf("expected start turn, got %+v", start)
	}

	audioURL := transports.EncodeDataURL("audio/wav", []byte("RIFF"))
	if err := conn.WriteJSON(Activity{Type: "message", Text: " Anna ", Attachments: []ActivityMedia{{ContentType: "audio/wav", ContentURL: audioURL}}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := nextTurn(t, tr)
	if msg.Kind != transports.TurnMessage || msg.Text != "Anna" || len(msg.Attachments) != 1 || msg.Attachments[0].URL != audioURL {
		t.Fatalf("unexpected message turn %+v", msg)
	}

	reply := transports.Message{Attachment: &transports.Attachment{Name: "antwort-1.mp3", ContentType: "audio/mpeg", Data: []byte{1, 2}}}
	if err := tr.Send(context.Background(), hello.ConversationID, transports.Message{Text: "Hallo"}); err != nil {
		t.Fatalf("send text: %v", err)
	}
	if err := tr.Send(context.Background(), hello.ConversationID, reply); err != nil {
		t.Fatalf("send attachment: %v", err)
	}
	var got Activity
	if err := conn.ReadJSON(&got); err != nil || got.Text != "Hallo" {
		t.Fatalf("expected text reply, got %+v %v", got, err)
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].ContentURL != "data:audio/mpeg;base64,AQI=" {
		t.Fatalf("unexpected attachment reply %+v", got)
	}

	_ = conn.Close()
	end := nextTurn(t, tr)
	if end.Kind != transports.TurnEnd || end.ConversationID != hello.ConversationID {
		t.Fatalf("expected end turn, got %+v", end)
	}
}

func TestSendUnknownConversation(t *testing.T) {
	tr := New(Config{})
	if err := tr.Send(context.Background(), "webchat:missing", transports.Message{Text: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseActivity(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
		err bool
	}{
		{`{"type":"message","text":"ja"}`, true, false},
		{`{"text":"ja"}`, true, false},
		{`{"type":"typing"}`, false, false},
		{`{"type":"message","text":"  "}`, false, false},
		{`not json`, false, true},
	}
	for _, tc := range cases {
		_, ok, err := parseActivity("c", []byte(tc.raw))
		if ok != tc.ok || (err != nil) != tc.err {
			t.Fatalf("%s: got ok=%v err=%v", tc.raw, ok, err)
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	tr := New(Config{AllowedOrigins: []string{"https://bank.example.de", "chat.example.de"}})
	cases := map[string]bool{
		"https://bank.example.de": true,
		"http://chat.example.de":  true,
		"https://evil.example":    false,
		"":                        true,
	}
	for origin, want := range cases {
		req := httptest.NewRequest("GET", "/chat", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := tr.checkOrigin(req); got != want {
			t.Fatalf("%q: expected %v, got %v", origin, want, got)
		}
	}
}
