package channels

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/uniagent/uniagent/pkg/bus"
)

func TestSplitMessageShort(t *testing.T) {
	chunks := splitMessage("short message", 1500)
	if len(chunks) != 1 || chunks[0] != "short message" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessageAtNewlines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("line of reasonable length that fills up the message body\n")
	}
	chunks := splitMessage(b.String(), 1500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 2000 {
			t.Errorf("chunk %d exceeds discord limit: %d chars", i, len(chunk))
		}
	}
}

func TestSplitMessageKeepsCodeBlockIntact(t *testing.T) {
	padding := strings.Repeat("x\n", 740)
	content := padding + "```go\nfunc main() {}\n```\nafter"

	chunks := splitMessage(content, 1500)
	for i, chunk := range chunks {
		opens := strings.Count(chunk, "```")
		if opens%2 != 0 {
			t.Errorf("chunk %d has unbalanced code fences:\n%s", i, chunk)
		}
	}
}

func TestIsAllowed(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	open := NewBaseChannel("discord", mb, nil)
	if !open.IsAllowed("anyone") {
		t.Error("empty allowlist should allow everyone")
	}

	restricted := NewBaseChannel("discord", mb, []string{"123456", "@alice"})
	if !restricted.IsAllowed("123456") {
		t.Error("listed id should be allowed")
	}
	if !restricted.IsAllowed("999|alice") {
		t.Error("compound id should match on username part")
	}
	if restricted.IsAllowed("777777") {
		t.Error("unlisted id should be rejected")
	}
}

func TestSendEndsTypingEvenForEmptyReply(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	ch := &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", mb, nil),
		typing:      make(map[string]*typingSession),
	}
	ch.setRunning(true)
	defer ch.stopAllTyping()

	ch.beginTyping("c1")
	ch.typingMu.Lock()
	_, active := ch.typing["c1"]
	ch.typingMu.Unlock()
	if !active {
		t.Fatal("expected an active typing session after beginTyping")
	}

	// An empty reply sends no message but must still clear the indicator.
	if err := ch.Send(context.Background(), bus.OutboundMessage{ChatID: "c1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ch.typingMu.Lock()
	_, active = ch.typing["c1"]
	ch.typingMu.Unlock()
	if active {
		t.Error("typing session should end after the empty delivery")
	}
}

func TestExpireTypingSkipsNewerSession(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	ch := &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", mb, nil),
		typing:      make(map[string]*typingSession),
	}
	ch.setRunning(true)
	defer ch.stopAllTyping()

	ch.beginTyping("c1")
	ch.typingMu.Lock()
	old := ch.typing["c1"]
	ch.typingMu.Unlock()

	ch.endTyping("c1")
	ch.beginTyping("c1")

	// The stale session's deadline must not tear down its replacement.
	ch.expireTyping("c1", old)
	ch.typingMu.Lock()
	_, active := ch.typing["c1"]
	ch.typingMu.Unlock()
	if !active {
		t.Error("newer typing session should survive the stale expiry")
	}
}

func TestHandleMessagePublishes(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	ch := NewBaseChannel("discord", mb, []string{"u1"})
	ch.HandleMessage("u1", "chat1", "hello", map[string]string{"k": "v"})
	ch.HandleMessage("blocked", "chat1", "spam", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected one published message")
	}
	if msg.SenderID != "u1" || msg.Content != "hello" || msg.ChatID != "chat1" {
		t.Errorf("unexpected message: %+v", msg)
	}

	quick, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if leaked, ok := mb.ConsumeInbound(quick); ok {
		t.Errorf("blocked sender leaked through: %+v", leaked)
	}
}
