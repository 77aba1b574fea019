// Package notify alerts operators over Telegram about configuration problems.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"medslots/internal/events"
)

const (
	defaultCooldown = time.Hour
	queueSize       = 32
)

// TelegramSender is the part of the bot API used for alerts.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends alerts to a fixed set of chats. Repeated alerts for the
// same clinic are suppressed for the cooldown period. Event handlers only
// enqueue; Run delivers, so publishers never wait on the Bot API.
type Notifier struct {
	sender   TelegramSender
	chatIDs  []int64
	cooldown time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
	queue    chan string

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTelegramNotifier connects to the Bot API with token.
func NewTelegramNotifier(token string, chatIDs []int64, logger *zerolog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewNotifier(api, chatIDs, logger), nil
}

// NewNotifier creates a notifier over any sender.
func NewNotifier(sender TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		chatIDs:  chatIDs,
		cooldown: defaultCooldown,
		logger:   logger,
		now:      time.Now,
		queue:    make(chan string, queueSize),
		lastSent: make(map[string]time.Time),
	}
}

// Subscribe registers the notifier's handlers on bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.SettingsMissing, n.handleSettingsMissing)
}

func (n *Notifier) handleSettingsMissing(e events.Event) error {
	var p events.SettingsMissingPayload
	if err := e.Decode(&p); err != nil {
		return err
	}

	if !n.shouldSend("settings:" + p.ClinicID) {
		return nil
	}

	text := fmt.Sprintf("⚠️ Booking settings are missing for clinic %s.\nSlot generation for specialist %s was rejected.",
		p.ClinicID, p.SpecialistID)
	n.enqueue(text)
	return nil
}

func (n *Notifier) enqueue(text string) {
	select {
	case n.queue <- text:
	default:
		n.logger.Warn().Msg("Alert queue full, dropping alert")
	}
}

// Run delivers queued alerts until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			_ = n.Broadcast(text)
		}
	}
}

func (n *Notifier) shouldSend(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.lastSent[key] = now
	return true
}

// Broadcast sends text to every configured chat and returns the last error.
func (n *Notifier) Broadcast(text string) error {
	var lastErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send alert")
			lastErr = err
		}
	}
	return lastErr
}
