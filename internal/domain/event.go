package domain

type Command string

const (
	CommandStart  Command = "start"
	CommandHelp   Command = "help"
	CommandUnlink Command = "unlink"
	CommandStatus Command = "status"
)

func ParseCommand(name string) (Command, bool) {
	switch Command(name) {
	case CommandStart, CommandHelp, CommandUnlink, CommandStatus:
		return Command(name), true
	}
	return "", false
}

// Event is the result of classifying one inbound update. Exactly one of
// SelfJoin, PrivateCommand, PrivateContent or Ignored.
type Event interface {
	event()
}

// SelfJoin reports that Owner added the bot to Destination.
type SelfJoin struct {
	Owner       Owner
	Destination Destination
}

type PrivateCommand struct {
	Owner     Owner
	ChatID    int64
	MessageID int
	Command   Command
}

type PrivateContent struct {
	Owner     Owner
	ChatID    int64
	MessageID int
	Payload   Payload
	Summary   string
}

type Ignored struct {
	Reason string
}

func (SelfJoin) event()       {}
func (PrivateCommand) event() {}
func (PrivateContent) event() {}
func (Ignored) event()        {}

// OwnerID returns the owner an event belongs to, or 0 for ignored events.
func OwnerID(e Event) int64 {
	switch v := e.(type) {
	case SelfJoin:
		return v.Owner.ID
	case PrivateCommand:
		return v.Owner.ID
	case PrivateContent:
		return v.Owner.ID
	default:
		return 0
	}
}
