package domain

type PayloadKind string

const (
	KindText      PayloadKind = "text"
	KindSticker   PayloadKind = "sticker"
	KindVenue     PayloadKind = "venue"
	KindLocation  PayloadKind = "location"
	KindAudio     PayloadKind = "audio"
	KindVideo     PayloadKind = "video"
	KindPhoto     PayloadKind = "photo"
	KindDocument  PayloadKind = "document"
	KindVoice     PayloadKind = "voice"
	KindVideoNote PayloadKind = "video_note"
	KindContact   PayloadKind = "contact"
)

// PayloadPriority is the order in which payload kinds are probed on an
// inbound message. The first one present wins.
var PayloadPriority = []PayloadKind{
	KindText,
	KindSticker,
	KindVenue,
	KindLocation,
	KindAudio,
	KindVideo,
	KindPhoto,
	KindDocument,
	KindVoice,
	KindVideoNote,
	KindContact,
}

// Payload is the closed set of message contents that can be relayed.
type Payload interface {
	Kind() PayloadKind
	sealed()
}

type Text struct {
	Text string
}

type Sticker struct {
	FileID string
}

type Location struct {
	Latitude  float64
	Longitude float64
}

type Venue struct {
	Location     Location
	Title        string
	Address      string
	FoursquareID string
}

type Audio struct {
	FileID  string
	Caption string
}

type Video struct {
	FileID  string
	Caption string
}

type Photo struct {
	FileID  string
	Caption string
}

type Document struct {
	FileID  string
	Caption string
}

type Voice struct {
	FileID  string
	Caption string
}

type VideoNote struct {
	FileID string
	Length int
}

type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	VCard       string
}

func (Text) Kind() PayloadKind      { return KindText }
func (Sticker) Kind() PayloadKind   { return KindSticker }
func (Venue) Kind() PayloadKind     { return KindVenue }
func (Location) Kind() PayloadKind  { return KindLocation }
func (Audio) Kind() PayloadKind     { return KindAudio }
func (Video) Kind() PayloadKind     { return KindVideo }
func (Photo) Kind() PayloadKind     { return KindPhoto }
func (Document) Kind() PayloadKind  { return KindDocument }
func (Voice) Kind() PayloadKind     { return KindVoice }
func (VideoNote) Kind() PayloadKind { return KindVideoNote }
func (Contact) Kind() PayloadKind   { return KindContact }

func (Text) sealed()      {}
func (Sticker) sealed()   {}
func (Venue) sealed()     {}
func (Location) sealed()  {}
func (Audio) sealed()     {}
func (Video) sealed()     {}
func (Photo) sealed()     {}
func (Document) sealed()  {}
func (Voice) sealed()     {}
func (VideoNote) sealed() {}
func (Contact) sealed()   {}

// Caption returns the caption carried by the payload, if its kind has one.
func Caption(p Payload) string {
	switch v := p.(type) {
	case Audio:
		return v.Caption
	case Video:
		return v.Caption
	case Photo:
		return v.Caption
	case Document:
		return v.Caption
	case Voice:
		return v.Caption
	default:
		return ""
	}
}
