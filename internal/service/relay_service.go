package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hanamilabs/pretender-bot/internal/domain"
	"github.com/hanamilabs/pretender-bot/internal/ports"
	"github.com/hanamilabs/pretender-bot/internal/telemetry"
)

const (
	startText     = "Hello, %s!\nMy name is %s. Do you wanna have fun? Just add me to any group.\nAbout me: /help"
	helpText      = "I'm open source. You can create your own pretender bot and be anyone you want. See: %s"
	activatedText = "OK, let's go! Now you are me. Send any message here and I will echo it to the group \"%s\" on my own behalf."
	notLinkedText = "First, add me to any group."
	removedText   = "Somebody removed me from the group. Add me to another one to continue."
	unlinkedText  = "Done. I will not echo your messages to the group anymore."
	statusText    = "I echo your messages to the group with ID %d."
	apologyText   = "Sorry, something goes wrong.."
)

const (
	UnbindForbidden = "forbidden"
	UnbindOwner     = "unlink"
	UnbindOperator  = "operator"
)

// RelayService decides, for every classified event, whether and where to
// relay it. Events of one owner are handled strictly in order.
type RelayService struct {
	logger     *slog.Logger
	gateway    ports.Gateway
	directory  *Directory
	queue      *KeyedQueue[int64]
	projectURL string
}

func NewRelayService(logger *slog.Logger, gateway ports.Gateway, directory *Directory, projectURL string) *RelayService {
	return &RelayService{
		logger:     logger,
		gateway:    gateway,
		directory:  directory,
		queue:      NewKeyedQueue[int64](),
		projectURL: projectURL,
	}
}

func (s *RelayService) Handle(ctx context.Context, event domain.Event) error {
	telemetry.ObserveUpdate(categoryOf(event))
	if _, ok := event.(domain.Ignored); ok {
		return nil
	}

	ownerID := domain.OwnerID(event)
	ctx, span := telemetry.StartSpan(ctx, "relay.handle",
		attribute.String("category", categoryOf(event)),
		attribute.Int64("owner_id", ownerID),
	)
	defer span.End()

	err := s.queue.Run(ctx, ownerID, func(ctx context.Context) error {
		logger := telemetry.LoggerWithCorr(ctx, s.logger)
		switch ev := event.(type) {
		case domain.SelfJoin:
			return s.onSelfJoin(ctx, logger, ev)
		case domain.PrivateCommand:
			return s.onCommand(ctx, logger, ev)
		case domain.PrivateContent:
			return s.onContent(ctx, logger, ev)
		default:
			return nil
		}
	})
	telemetry.RecordError(span, err)
	return err
}

// Unlink drops the owner's binding on behalf of cause. It shares the
// owner's queue with Handle.
func (s *RelayService) Unlink(ctx context.Context, ownerID int64, cause string) (int64, bool, error) {
	var (
		destID  int64
		removed bool
	)
	err := s.queue.Run(ctx, ownerID, func(ctx context.Context) error {
		var err error
		destID, removed, err = s.unbind(ctx, telemetry.LoggerWithCorr(ctx, s.logger), ownerID, cause)
		return err
	})
	return destID, removed, err
}

func (s *RelayService) onSelfJoin(ctx context.Context, logger *slog.Logger, ev domain.SelfJoin) error {
	if err := s.directory.Put(ctx, ev.Owner.ID, ev.Destination.ID); err != nil {
		s.reportFailure(ctx, logger, ev.Owner.ID, "bind relay failed", err,
			"owner_id", ev.Owner.ID,
			"group_id", ev.Destination.ID,
		)
		return err
	}
	telemetry.RecordBinding()
	logger.Info("bot added to group",
		"owner_name", ev.Owner.DisplayName(),
		"owner_id", ev.Owner.ID,
		"group_title", ev.Destination.Title,
		"group_id", ev.Destination.ID,
	)

	if err := s.gateway.SendMessage(ctx, ev.Owner.ID, fmt.Sprintf(activatedText, ev.Destination.Title)); err != nil {
		logger.Warn("activation notice failed", "owner_id", ev.Owner.ID, "error", err)
	}
	return nil
}

func (s *RelayService) onCommand(ctx context.Context, logger *slog.Logger, ev domain.PrivateCommand) error {
	switch ev.Command {
	case domain.CommandStart:
		s.reply(ctx, logger, ev.ChatID, ev.MessageID, fmt.Sprintf(startText, ev.Owner.FirstName, s.gateway.Self().FirstName))
	case domain.CommandHelp:
		s.reply(ctx, logger, ev.ChatID, ev.MessageID, fmt.Sprintf(helpText, s.projectURL))
	case domain.CommandStatus:
		if destID, ok := s.directory.Get(ev.Owner.ID); ok {
			s.reply(ctx, logger, ev.ChatID, ev.MessageID, fmt.Sprintf(statusText, destID))
		} else {
			s.reply(ctx, logger, ev.ChatID, ev.MessageID, notLinkedText)
		}
	case domain.CommandUnlink:
		_, removed, err := s.unbind(ctx, logger, ev.Owner.ID, UnbindOwner)
		if err != nil {
			s.reportFailure(ctx, logger, ev.Owner.ID, "unlink relay failed", err, "owner_id", ev.Owner.ID)
			return err
		}
		if !removed {
			s.reply(ctx, logger, ev.ChatID, ev.MessageID, notLinkedText)
			return nil
		}
		s.reply(ctx, logger, ev.ChatID, ev.MessageID, unlinkedText)
	}
	return nil
}

func (s *RelayService) onContent(ctx context.Context, logger *slog.Logger, ev domain.PrivateContent) error {
	destID, ok := s.directory.Get(ev.Owner.ID)
	if !ok {
		s.reply(ctx, logger, ev.ChatID, ev.MessageID, notLinkedText)
		return nil
	}

	kind := ev.Payload.Kind()
	err := s.gateway.SendPayload(ctx, destID, ev.Payload)
	if err == nil {
		telemetry.RecordRelay(string(kind))
		logger.Info("echo message",
			"owner_id", ev.Owner.ID,
			"dest_id", destID,
			"kind", kind,
			"message", ev.Summary,
		)
		return nil
	}

	telemetry.RecordRelayFailure(domain.DeliveryReasonOf(err).String())
	if domain.IsForbidden(err) {
		return s.onRemovedFromGroup(ctx, logger, ev, destID)
	}
	s.reportFailure(ctx, logger, ev.Owner.ID, "echo message failed", err,
		"owner_id", ev.Owner.ID,
		"dest_id", destID,
		"kind", kind,
	)
	return err
}

func (s *RelayService) onRemovedFromGroup(ctx context.Context, logger *slog.Logger, ev domain.PrivateContent, destID int64) error {
	if _, _, err := s.unbind(ctx, logger, ev.Owner.ID, UnbindForbidden); err != nil {
		s.reportFailure(ctx, logger, ev.Owner.ID, "unbind removed group failed", err,
			"owner_id", ev.Owner.ID,
			"group_id", destID,
		)
		return err
	}
	s.reply(ctx, logger, ev.ChatID, ev.MessageID, removedText)
	return nil
}

func (s *RelayService) unbind(ctx context.Context, logger *slog.Logger, ownerID int64, cause string) (int64, bool, error) {
	destID, removed, err := s.directory.Remove(ctx, ownerID)
	if err != nil || !removed {
		return destID, removed, err
	}
	telemetry.RecordUnbinding(cause)
	if cause == UnbindForbidden {
		logger.Info("bot was removed from the group", "owner_id", ownerID, "group_id", destID)
	} else {
		logger.Info("relay unlinked", "owner_id", ownerID, "group_id", destID, "cause", cause)
	}
	return destID, true, nil
}

// reportFailure logs err and sends the owner a generic apology. Timeouts are
// only logged; the transport already reports them.
func (s *RelayService) reportFailure(ctx context.Context, logger *slog.Logger, ownerID int64, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err)
	if domain.IsTimeout(err) {
		logger.Warn(msg, attrs...)
		return
	}
	logger.Error(msg, attrs...)
	if sendErr := s.gateway.SendMessage(ctx, ownerID, apologyText); sendErr != nil {
		logger.Warn("apology message failed", "owner_id", ownerID, "error", sendErr)
	}
}

func (s *RelayService) reply(ctx context.Context, logger *slog.Logger, chatID int64, messageID int, text string) {
	if err := s.gateway.Reply(ctx, chatID, messageID, text); err != nil {
		logger.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

func categoryOf(event domain.Event) string {
	switch event.(type) {
	case domain.SelfJoin:
		return "self_join"
	case domain.PrivateCommand:
		return "private_command"
	case domain.PrivateContent:
		return "private_content"
	default:
		return "ignored"
	}
}
