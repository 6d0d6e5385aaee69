// Package hostitem defines the typed key-value shapes the host exposes
// through pam_get_item/pam_set_item, shared by both the dispatcher (which
// serves real items) and the child-side RPC stubs (which only ever see
// the wire encoding).
package hostitem

// Type identifies which item is being read or written. Numeric values
// follow the host's PAM_* item constants; only PAM_XAUTHDATA gets the
// structured encoding, every other type is an opaque byte string.
type Type int

const (
	Service       Type = 1
	User          Type = 2
	UserPrompt    Type = 3
	TTY           Type = 4
	RUser         Type = 5
	RHost         Type = 6
	AuthTok       Type = 7
	OldAuthTok    Type = 8
	Conv          Type = 9
	FailDelay     Type = 10
	XDisplay      Type = 11
	XAuthData     Type = 12
	AuthTokType   Type = 13
)

// XAuthData is the structured item carried by PAM_XAUTHDATA: a named
// opaque byte blob. Data may contain NUL bytes, so it is always carried
// with an explicit length rather than as a C string.
type XAuthData struct {
	Name []byte
	Data []byte
}

// MessageStyle is the conversation prompt style (spec.md §4.7).
type MessageStyle int

const (
	PromptEchoOff MessageStyle = 1
	PromptEchoOn  MessageStyle = 2
	ErrorMsg      MessageStyle = 3
	TextInfo      MessageStyle = 4
)

// Message is one outbound conversation prompt.
type Message struct {
	Style MessageStyle
	Text  string
}

// Response is one conversation reply, in one-to-one order with the
// Messages that produced it. Text is sensitive when present (it may hold
// a password) and must be zeroed by whichever side allocated it once it
// is no longer needed — kept as a byte slice rather than a string so that
// zeroing is actually possible.
type Response struct {
	RetCode int
	Text    []byte
	HasText bool
}

// Zero overwrites r.Text with zero bytes in place. Safe to call on a
// Response with no text.
func (r *Response) Zero() {
	for i := range r.Text {
		r.Text[i] = 0
	}
}
