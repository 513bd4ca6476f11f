package ports

import (
	"context"

	"github.com/hanamilabs/pretender-bot/internal/domain"
)

// RelayStore persists the whole owner -> destination mapping.
// Load on a fresh install returns an empty mapping, not an error.
// Save must replace the stored mapping atomically.
type RelayStore interface {
	Load(ctx context.Context) (domain.Mapping, error)
	Save(ctx context.Context, mapping domain.Mapping) error
}

// Gateway delivers messages to Telegram chats. Failures are reported as
// *domain.DeliveryError so callers can branch on the reason.
type Gateway interface {
	Self() domain.BotIdentity
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPayload(ctx context.Context, chatID int64, payload domain.Payload) error
	Reply(ctx context.Context, chatID int64, messageID int, text string) error
	Ping(ctx context.Context) error
}
