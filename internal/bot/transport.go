package bot

import "context"

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// Message is outbound content.  Text is HTML.
type Message struct {
	Text     string
	Keyboard Keyboard
}

// File is an outbound attachment.
type File struct {
	Name string
	Data []byte
}

// Messenger is the transport port the state machines talk to.  Send
// returns the id of the new message so it can be edited later.
type Messenger interface {
	Send(ctx context.Context, chatID int64, m Message) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, m Message) error
	SendPhoto(ctx context.Context, chatID int64, f File, m Message) error
	SendDocument(ctx context.Context, chatID int64, f File, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Inbound is one interaction delivered by the transport.  MessageID and
// CallbackID are set for button presses; MessageID is the message that
// carried the keyboard.
type Inbound struct {
	ChatID     int64
	UserID     int64
	Username   string
	FirstName  string
	MessageID  int
	CallbackID string
	Intent     Intent
}

// IsCallback reports whether the interaction is a button press.
func (in Inbound) IsCallback() bool { return in.CallbackID != "" }

func btn(text string, kind IntentKind, arg ...any) Button {
	return Button{Text: text, Data: Callback(kind, arg...)}
}

func row(b ...Button) []Button { return b }

func keyboard(rows ...[]Button) Keyboard { return Keyboard(rows) }
