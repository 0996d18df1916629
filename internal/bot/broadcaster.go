package bot

import (
	"context"
	"log"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/telemetry"

	"gopkg.in/telebot.v3"
)

// Sender is the part of *telebot.Bot used for outgoing messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Mirror is an extra alert channel besides Telegram.
type Mirror interface {
	Name() string
	Send(ctx context.Context, htmlText string) error
}

// RecipientSource resolves alert recipients at send time.
type RecipientSource interface {
	Recipients() []int64
}

// Broadcaster delivers alerts to every recipient chat one by one.
// A failed chat is logged and skipped.
type Broadcaster struct {
	sender     Sender
	recipients RecipientSource
	mirrors    []Mirror
	metrics    *telemetry.Metrics
}

func NewBroadcaster(sender Sender, recipients RecipientSource, metrics *telemetry.Metrics, mirrors ...Mirror) *Broadcaster {
	if metrics == nil {
		metrics = telemetry.NewNoop()
	}
	return &Broadcaster{
		sender:     sender,
		recipients: recipients,
		mirrors:    mirrors,
		metrics:    metrics,
	}
}

func (b *Broadcaster) Broadcast(ctx context.Context, text string) models.Delivery {
	for _, m := range b.mirrors {
		if err := m.Send(ctx, text); err != nil {
			log.Printf("Failed to mirror alert to %s: %v", m.Name(), err)
			b.metrics.DeliveryFailed(ctx, m.Name())
		}
	}

	recipients := b.recipients.Recipients()
	delivery := models.Delivery{Recipients: len(recipients)}
	if len(recipients) == 0 {
		log.Println("No alert recipients configured, skipping Telegram delivery.")
		return delivery
	}

	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML, DisableWebPagePreview: true}
	for _, chatID := range recipients {
		if ctx.Err() != nil {
			break
		}
		if _, err := b.sender.Send(telebot.ChatID(chatID), text, opts); err != nil {
			log.Printf("Failed to send alert to chat %d: %v", chatID, err)
			b.metrics.DeliveryFailed(ctx, "telegram")
			continue
		}
		delivery.Delivered++
	}
	return delivery
}
