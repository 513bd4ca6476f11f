package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hanamilabs/pretender-bot/internal/domain"
)

var kickedPattern = regexp.MustCompile(`Forbidden: bot was kicked from the (super)?group chat`)

// botAPI is the part of *tgbotapi.BotAPI the gateway needs.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetMe() (tgbotapi.User, error)
}

// Gateway delivers messages through the Bot API and maps library errors to
// domain.DeliveryError.
type Gateway struct {
	bot  botAPI
	self tgbotapi.User
}

func NewGateway(bot botAPI, self tgbotapi.User) *Gateway {
	return &Gateway{bot: bot, self: self}
}

func (g *Gateway) Self() domain.BotIdentity {
	return domain.BotIdentity{ID: g.self.ID, FirstName: g.self.FirstName, Username: g.self.UserName}
}

func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string) error {
	return g.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (g *Gateway) Reply(ctx context.Context, chatID int64, messageID int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	msg.AllowSendingWithoutReply = true
	return g.send(ctx, msg)
}

func (g *Gateway) SendPayload(ctx context.Context, chatID int64, payload domain.Payload) error {
	chattable, err := buildChattable(chatID, payload)
	if err != nil {
		return &domain.DeliveryError{Reason: domain.ReasonOther, Err: err}
	}
	return g.send(ctx, chattable)
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := g.bot.GetMe(); err != nil {
		return classifyError(err)
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return classifyError(err)
	}
	if _, err := g.bot.Send(c); err != nil {
		return classifyError(err)
	}
	return nil
}

func buildChattable(chatID int64, payload domain.Payload) (tgbotapi.Chattable, error) {
	switch p := payload.(type) {
	case domain.Text:
		return tgbotapi.NewMessage(chatID, p.Text), nil
	case domain.Sticker:
		return tgbotapi.NewSticker(chatID, tgbotapi.FileID(p.FileID)), nil
	case domain.Venue:
		cfg := tgbotapi.NewVenue(chatID, p.Title, p.Address, p.Location.Latitude, p.Location.Longitude)
		cfg.FoursquareID = p.FoursquareID
		return cfg, nil
	case domain.Location:
		return tgbotapi.NewLocation(chatID, p.Latitude, p.Longitude), nil
	case domain.Audio:
		cfg := tgbotapi.NewAudio(chatID, tgbotapi.FileID(p.FileID))
		cfg.Caption = p.Caption
		return cfg, nil
	case domain.Video:
		cfg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(p.FileID))
		cfg.Caption = p.Caption
		return cfg, nil
	case domain.Photo:
		cfg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.FileID))
		cfg.Caption = p.Caption
		return cfg, nil
	case domain.Document:
		cfg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(p.FileID))
		cfg.Caption = p.Caption
		return cfg, nil
	case domain.Voice:
		cfg := tgbotapi.NewVoice(chatID, tgbotapi.FileID(p.FileID))
		cfg.Caption = p.Caption
		return cfg, nil
	case domain.VideoNote:
		return tgbotapi.NewVideoNote(chatID, p.Length, tgbotapi.FileID(p.FileID)), nil
	case domain.Contact:
		cfg := tgbotapi.NewContact(chatID, p.PhoneNumber, p.FirstName)
		cfg.LastName = p.LastName
		cfg.VCard = p.VCard
		return cfg, nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", payload)
	}
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		reason := domain.ReasonOther
		if apiErr.Code == http.StatusForbidden || kickedPattern.MatchString(apiErr.Message) {
			reason = domain.ReasonForbidden
		}
		return &domain.DeliveryError{Reason: reason, Code: apiErr.Code, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.DeliveryError{Reason: domain.ReasonTimeout, Err: err}
	}
	if kickedPattern.MatchString(err.Error()) {
		return &domain.DeliveryError{Reason: domain.ReasonForbidden, Err: err}
	}
	return &domain.DeliveryError{Reason: domain.ReasonOther, Err: err}
}
