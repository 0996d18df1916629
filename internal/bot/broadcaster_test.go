package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type fakeSender struct {
	mu     sync.Mutex
	failOn map[int64]bool
	sent   map[int64][]string
}

func newFakeSender(failOn ...int64) *fakeSender {
	s := &fakeSender{failOn: map[int64]bool{}, sent: map[int64][]string{}}
	for _, id := range failOn {
		s.failOn[id] = true
	}
	return s
}

func (s *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	switch r := to.(type) {
	case telebot.ChatID:
		id = int64(r)
	default:
		return nil, errors.New("unexpected recipient")
	}
	if s.failOn[id] {
		return nil, errors.New("Forbidden: bot was blocked by the user")
	}
	for _, opt := range opts {
		if so, ok := opt.(*telebot.SendOptions); ok && so.ParseMode != telebot.ModeHTML {
			return nil, errors.New("expected HTML parse mode")
		}
	}
	s.sent[id] = append(s.sent[id], what.(string))
	return &telebot.Message{}, nil
}

type staticRecipients []int64

func (r staticRecipients) Recipients() []int64 { return r }

type fakeMirror struct {
	texts []string
	err   error
}

func (m *fakeMirror) Name() string { return "fake" }

func (m *fakeMirror) Send(_ context.Context, text string) error {
	m.texts = append(m.texts, text)
	return m.err
}

func TestBroadcaster_DeliversToEveryRecipient(t *testing.T) {
	sender := newFakeSender()
	b := NewBroadcaster(sender, staticRecipients{1, 2, 3}, nil)

	delivery := b.Broadcast(context.Background(), "<b>alert</b>")
	assert.Equal(t, 3, delivery.Recipients)
	assert.Equal(t, 3, delivery.Delivered)
	for _, id := range []int64{1, 2, 3} {
		assert.Equal(t, []string{"<b>alert</b>"}, sender.sent[id])
	}
}

func TestBroadcaster_SkipsFailedRecipient(t *testing.T) {
	sender := newFakeSender(2)
	b := NewBroadcaster(sender, staticRecipients{1, 2, 3}, nil)

	delivery := b.Broadcast(context.Background(), "alert")
	assert.Equal(t, 3, delivery.Recipients)
	assert.Equal(t, 2, delivery.Delivered)
	assert.Empty(t, sender.sent[2])
	assert.Len(t, sender.sent[3], 1)
}

func TestBroadcaster_NoRecipients(t *testing.T) {
	sender := newFakeSender()
	mirror := &fakeMirror{}
	b := NewBroadcaster(sender, staticRecipients{}, nil, mirror)

	delivery := b.Broadcast(context.Background(), "alert")
	assert.Zero(t, delivery.Recipients)
	assert.Zero(t, delivery.Delivered)
	assert.Empty(t, sender.sent)
	assert.Equal(t, []string{"alert"}, mirror.texts)
}

func TestBroadcaster_MirrorFailureDoesNotBlockTelegram(t *testing.T) {
	sender := newFakeSender()
	mirror := &fakeMirror{err: errors.New("discord down")}
	b := NewBroadcaster(sender, staticRecipients{7}, nil, mirror)

	delivery := b.Broadcast(context.Background(), "alert")
	require.Equal(t, 1, delivery.Delivered)
	assert.Len(t, mirror.texts, 1)
}

func TestBroadcaster_StopsOnCancelledContext(t *testing.T) {
	sender := newFakeSender()
	b := NewBroadcaster(sender, staticRecipients{1, 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delivery := b.Broadcast(ctx, "alert")
	assert.Equal(t, 2, delivery.Recipients)
	assert.Zero(t, delivery.Delivered)
}
