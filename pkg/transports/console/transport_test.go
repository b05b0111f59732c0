package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/sprachbot/pkg/transports"
)

func TestReadsLinesAsTurns(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "antwort.wav")
	if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	in := strings.NewReader("Anna\n\n/audio " + wav + "\n")
	tr := New(Config{}, in, &bytes.Buffer{})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	var turns []transports.Turn
	timeout := time.After(2 * time.Second)
	for len(turns) < 4 {
		select {
		case turn := <-tr.Recv():
			turns = append(turns, turn)
		case <-timeout:
			t.Fatalf("expected 4 turns, got %d", len(turns))
		}
	}
	if turns[0].Kind != transports.TurnStart || turns[3].Kind != transports.TurnEnd {
		t.Fatalf("unexpected lifecycle %v %v", turns[0].Kind, turns[3].Kind)
	}
	if turns[1].Text != "Anna" || turns[1].ConversationID != ConversationID {
		t.Fatalf("unexpected text turn %+v", turns[1])
	}
	att := turns[2].Attachments
	if len(att) != 1 || string(att[0].Data) != "RIFF" || att[0].Name != "antwort.wav" {
		t.Fatalf("unexpected audio turn %+v", turns[2])
	}
}

func TestSendWritesOutput(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	tr := New(Config{OutputDir: dir}, strings.NewReader(""), &out)
	err := tr.Send(context.Background(), ConversationID, transports.Message{
		Text:       "Hallo",
		Attachment: &transports.Attachment{Name: "antwort-1.mp3", Data: []byte{1}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out.String(), "bot> Hallo") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "antwort-1.mp3")); err != nil {
		t.Fatalf("expected audio file: %v", err)
	}
}
