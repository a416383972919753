package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel is a minimal ToolCallingChatModel for Completer tests.
type fakeChatModel struct {
	reply    string
	err      error
	lastMsgs []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.lastMsgs = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func TestCompleterSendsSingleUserMessage(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: "drink water first thing in the morning"}
	c, err := NewCompleter(fake)
	if err != nil {
		t.Fatalf("NewCompleter returned error: %v", err)
	}

	got, err := c.Complete(context.Background(), "how do I build a hydration habit?")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != fake.reply {
		t.Errorf("Complete = %q, want %q", got, fake.reply)
	}
	if len(fake.lastMsgs) != 1 {
		t.Fatalf("model received %d messages, want 1", len(fake.lastMsgs))
	}
	if fake.lastMsgs[0].Role != schema.User {
		t.Errorf("message role = %q, want user", fake.lastMsgs[0].Role)
	}
	if fake.lastMsgs[0].Content != "how do I build a hydration habit?" {
		t.Errorf("prompt not passed through verbatim: %q", fake.lastMsgs[0].Content)
	}
}

func TestCompleterPropagatesErrors(t *testing.T) {
	t.Parallel()

	c, err := NewCompleter(&fakeChatModel{err: errors.New("quota exceeded")})
	if err != nil {
		t.Fatalf("NewCompleter returned error: %v", err)
	}
	if _, err := c.Complete(context.Background(), "q"); err == nil {
		t.Fatal("expected an error from a failing model")
	}
}

func TestCompleterRejectsEmptyReply(t *testing.T) {
	t.Parallel()

	c, err := NewCompleter(&fakeChatModel{reply: ""})
	if err != nil {
		t.Fatalf("NewCompleter returned error: %v", err)
	}
	if _, err := c.Complete(context.Background(), "q"); err == nil {
		t.Fatal("expected an error for an empty reply")
	}
}

func TestNewCompleterNilModel(t *testing.T) {
	t.Parallel()

	if _, err := NewCompleter(nil); err == nil {
		t.Fatal("expected an error for nil model")
	}
}
