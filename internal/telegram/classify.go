package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hanamilabs/pretender-bot/internal/domain"
)

const summaryLimit = 120

// Classifier turns raw updates into domain events. It never fails: anything
// it does not understand becomes domain.Ignored.
type Classifier struct {
	BotID int64
}

func (c Classifier) Classify(update tgbotapi.Update) domain.Event {
	msg := update.Message
	if msg == nil {
		return domain.Ignored{Reason: ignoredReason(update)}
	}
	if msg.From == nil || msg.Chat == nil {
		return domain.Ignored{Reason: "no sender"}
	}

	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		if c.addedSelf(msg.NewChatMembers) {
			return domain.SelfJoin{
				Owner:       ownerOf(msg.From),
				Destination: domain.Destination{ID: msg.Chat.ID, Title: msg.Chat.Title},
			}
		}
		return domain.Ignored{Reason: "group message"}
	}
	if !msg.Chat.IsPrivate() {
		return domain.Ignored{Reason: "unsupported chat"}
	}

	owner := ownerOf(msg.From)
	if msg.IsCommand() {
		if cmd, ok := domain.ParseCommand(strings.ToLower(msg.Command())); ok {
			return domain.PrivateCommand{Owner: owner, ChatID: msg.Chat.ID, MessageID: msg.MessageID, Command: cmd}
		}
	}

	payload := payloadOf(msg)
	if payload == nil {
		return domain.Ignored{Reason: "unsupported content"}
	}
	return domain.PrivateContent{
		Owner:     owner,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Payload:   payload,
		Summary:   summarize(payload),
	}
}

func (c Classifier) addedSelf(members []tgbotapi.User) bool {
	for _, member := range members {
		if member.ID == c.BotID {
			return true
		}
	}
	return false
}

func ignoredReason(update tgbotapi.Update) string {
	switch {
	case update.EditedMessage != nil:
		return "edited message"
	case update.ChannelPost != nil, update.EditedChannelPost != nil:
		return "channel post"
	case update.CallbackQuery != nil:
		return "callback query"
	default:
		return "unsupported update"
	}
}

func ownerOf(user *tgbotapi.User) domain.Owner {
	return domain.Owner{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.UserName,
	}
}

// payloadOf probes the message in domain.PayloadPriority order.
func payloadOf(msg *tgbotapi.Message) domain.Payload {
	switch {
	case msg.Text != "":
		return domain.Text{Text: msg.Text}
	case msg.Sticker != nil:
		return domain.Sticker{FileID: msg.Sticker.FileID}
	case msg.Venue != nil:
		return domain.Venue{
			Location:     domain.Location{Latitude: msg.Venue.Location.Latitude, Longitude: msg.Venue.Location.Longitude},
			Title:        msg.Venue.Title,
			Address:      msg.Venue.Address,
			FoursquareID: msg.Venue.FoursquareID,
		}
	case msg.Location != nil:
		return domain.Location{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	case msg.Audio != nil:
		return domain.Audio{FileID: msg.Audio.FileID, Caption: msg.Caption}
	case msg.Video != nil:
		return domain.Video{FileID: msg.Video.FileID, Caption: msg.Caption}
	case len(msg.Photo) > 0:
		return domain.Photo{FileID: largestPhoto(msg.Photo).FileID, Caption: msg.Caption}
	case msg.Document != nil:
		return domain.Document{FileID: msg.Document.FileID, Caption: msg.Caption}
	case msg.Voice != nil:
		return domain.Voice{FileID: msg.Voice.FileID, Caption: msg.Caption}
	case msg.VideoNote != nil:
		return domain.VideoNote{FileID: msg.VideoNote.FileID, Length: msg.VideoNote.Length}
	case msg.Contact != nil:
		return domain.Contact{
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
			VCard:       msg.Contact.VCard,
		}
	default:
		return nil
	}
}

// largestPhoto picks the variant with the most pixels. Telegram lists sizes
// in ascending order, so ties go to the later entry.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height >= best.Width*best.Height {
			best = size
		}
	}
	return best
}

func summarize(payload domain.Payload) string {
	var text string
	switch p := payload.(type) {
	case domain.Text:
		text = p.Text
	case domain.Location:
		text = fmt.Sprintf("%.5f,%.5f", p.Latitude, p.Longitude)
	case domain.Venue:
		text = p.Title
	case domain.Contact:
		text = p.FirstName
	default:
		text = domain.Caption(payload)
	}
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > summaryLimit {
		text = string(runes[:summaryLimit]) + "…"
	}
	if text == "" {
		return string(payload.Kind())
	}
	return string(payload.Kind()) + ": " + text
}
