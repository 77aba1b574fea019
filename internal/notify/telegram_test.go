package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medslots/internal/events"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

// gatedSender blocks every Send until release is closed.
type gatedSender struct {
	release chan struct{}

	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func newGatedSender() *gatedSender {
	return &gatedSender{release: make(chan struct{})}
}

func (g *gatedSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (g *gatedSender) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func TestNotifier_SettingsMissing(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := newGatedSender()
	close(sender.release)
	n := NewNotifier(sender, []int64{100, 200}, &logger)

	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	n.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		clockMu.Lock()
		defer clockMu.Unlock()
		now = now.Add(d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	bus := events.NewEventBus(&logger)
	n.Subscribe(bus)

	payload := events.SettingsMissingPayload{ClinicID: "clinic-1", SpecialistID: "doc-1"}
	bus.PublishPayload(events.SettingsMissing, payload)
	assert.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 5*time.Millisecond)

	// Suppressed within the cooldown.
	advance(10 * time.Minute)
	bus.PublishPayload(events.SettingsMissing, payload)

	advance(time.Hour)
	bus.PublishPayload(events.SettingsMissing, payload)
	assert.Eventually(t, func() bool { return sender.count() == 4 }, time.Second, 5*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, int64(100), sender.sent[0].ChatID)
	assert.Equal(t, int64(200), sender.sent[1].ChatID)
	assert.True(t, strings.Contains(sender.sent[0].Text, "clinic-1"))
}

func TestNotifier_PublishDoesNotWaitForTelegram(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := newGatedSender()
	n := NewNotifier(sender, []int64{100}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	bus := events.NewEventBus(&logger)
	n.Subscribe(bus)

	done := make(chan struct{})
	go func() {
		bus.PublishPayload(events.SettingsMissing, events.SettingsMissingPayload{ClinicID: "clinic-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on the Telegram sender")
	}
	assert.Equal(t, 0, sender.count())

	close(sender.release)
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestNotifier_QueueFullDrops(t *testing.T) {
	logger := zerolog.New(io.Discard)
	n := NewNotifier(newGatedSender(), []int64{100}, &logger)

	for i := 0; i < queueSize+5; i++ {
		n.enqueue("alert")
	}
	require.Len(t, n.queue, queueSize)
}

func TestNotifier_Broadcast(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := new(mockSender)
	n := NewNotifier(sender, []int64{100, 200}, &logger)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 100
	})).Return(tgbotapi.Message{}, nil).Once()
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 200
	})).Return(tgbotapi.Message{}, errors.New("chat not found")).Once()

	err := n.Broadcast("hello")
	assert.EqualError(t, err, "chat not found")
	sender.AssertExpectations(t)
}

func TestNotifier_BroadcastNoChats(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := new(mockSender)
	n := NewNotifier(sender, nil, &logger)

	assert.NoError(t, n.Broadcast("hello"))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}
