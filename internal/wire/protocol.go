package wire

import (
	"io"

	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
)

// Tag identifies which RPC a child->parent request carries. No value
// outside this closed set is legal on the wire.
type Tag int

const (
	TagGetItem   Tag = 1
	TagSetItem   Tag = 2
	TagGetUser   Tag = 3
	TagConverse  Tag = 4
	TagFailDelay Tag = 5
	TagStrError  Tag = 6
	TagSyslog    Tag = 7
)

// WriteTag writes the request tag that starts every exchange.
func WriteTag(w io.Writer, t Tag) error { return WriteInt(w, int(t)) }

// ReadTag reads the request tag that starts every exchange. Returns
// ReadEOF if the peer closed before writing one — the signal that ends
// the parent's request loop cleanly.
func ReadTag(r io.Reader) (Tag, error) {
	n, err := ReadInt(r)
	return Tag(n), err
}

// ItemValue is either an opaque byte string or a PAM_XAUTHDATA record,
// matching the two item shapes in spec.md §3. Exactly one of the two
// forms is populated, selected by the item type the request/reply is for.
type ItemValue struct {
	XAuth *hostitem.XAuthData
	Bytes []byte
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := WriteInt(w, len(b)); err != nil {
		return err
	}
	return WriteString(w, b)
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	buf, err := ReadBytes(r, n)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func writeItemValue(w io.Writer, v *ItemValue) error {
	if v.XAuth != nil {
		if err := writeLenPrefixed(w, v.XAuth.Name); err != nil {
			return err
		}
		return writeLenPrefixed(w, v.XAuth.Data)
	}
	return writeLenPrefixed(w, v.Bytes)
}

func readItemValue(r io.Reader, isXAuth bool) (*ItemValue, error) {
	if isXAuth {
		name, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		data, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		return &ItemValue{XAuth: &hostitem.XAuthData{Name: name, Data: data}}, nil
	}
	b, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	return &ItemValue{Bytes: b}, nil
}

// --- GET_ITEM ---

// EncodeGetItemRequest writes the GET_ITEM request body (spec.md §4.2).
func EncodeGetItemRequest(w io.Writer, itemType hostitem.Type) error {
	return WriteInt(w, int(itemType))
}

// DecodeGetItemRequest reads the GET_ITEM request body.
func DecodeGetItemRequest(r io.Reader) (hostitem.Type, error) {
	n, err := ReadInt(r)
	return hostitem.Type(n), err
}

// EncodeGetItemReply writes the GET_ITEM reply. val must be non-nil iff
// retval is SUCCESS.
func EncodeGetItemReply(w io.Writer, retval int, val *ItemValue) error {
	if err := WriteInt(w, retval); err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	return writeItemValue(w, val)
}

// DecodeGetItemReply reads the GET_ITEM reply. isXAuth tells the decoder
// which of the two value shapes to expect when retval is SUCCESS — the
// caller already knows the item type it asked for.
func DecodeGetItemReply(r io.Reader, isXAuth bool, successCode int) (retval int, val *ItemValue, err error) {
	retval, err = ReadInt(r)
	if err != nil {
		return 0, nil, err
	}
	if retval != successCode {
		return retval, nil, nil
	}
	val, err = readItemValue(r, isXAuth)
	if err != nil {
		return 0, nil, err
	}
	return retval, val, nil
}

// --- SET_ITEM ---

// EncodeSetItemRequest writes the SET_ITEM request body.
func EncodeSetItemRequest(w io.Writer, itemType hostitem.Type, val *ItemValue) error {
	if err := WriteInt(w, int(itemType)); err != nil {
		return err
	}
	return writeItemValue(w, val)
}

// DecodeSetItemRequest reads the SET_ITEM request body.
func DecodeSetItemRequest(r io.Reader) (hostitem.Type, *ItemValue, error) {
	n, err := ReadInt(r)
	if err != nil {
		return 0, nil, err
	}
	itemType := hostitem.Type(n)
	val, err := readItemValue(r, itemType == hostitem.XAuthData)
	if err != nil {
		return 0, nil, err
	}
	return itemType, val, nil
}

// EncodeSetItemReply writes the SET_ITEM reply.
func EncodeSetItemReply(w io.Writer, retval int) error { return WriteInt(w, retval) }

// DecodeSetItemReply reads the SET_ITEM reply.
func DecodeSetItemReply(r io.Reader) (int, error) { return ReadInt(r) }

// --- GET_USER ---

// EncodeGetUserRequest writes the GET_USER request body. An empty prompt
// encodes as prompt_len=0, meaning "no prompt".
func EncodeGetUserRequest(w io.Writer, prompt string) error {
	if prompt == "" {
		return WriteInt(w, 0)
	}
	return writeLenPrefixed(w, []byte(prompt))
}

// DecodeGetUserRequest reads the GET_USER request body.
func DecodeGetUserRequest(r io.Reader) (prompt string, hasPrompt bool, err error) {
	n, err := ReadInt(r)
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, nil
	}
	buf, err := ReadBytes(r, n)
	if err != nil {
		return "", false, err
	}
	return string(buf), true, nil
}

// EncodeGetUserReply writes the GET_USER reply.
func EncodeGetUserReply(w io.Writer, retval int, user string) error {
	if err := WriteInt(w, retval); err != nil {
		return err
	}
	return writeLenPrefixed(w, []byte(user))
}

// DecodeGetUserReply reads the GET_USER reply.
func DecodeGetUserReply(r io.Reader) (retval int, user string, err error) {
	retval, err = ReadInt(r)
	if err != nil {
		return 0, "", err
	}
	buf, err := readLenPrefixed(r)
	if err != nil {
		return 0, "", err
	}
	return retval, string(buf), nil
}

// --- CONVERSE ---

// EncodeConverseRequest writes the CONVERSE request body.
func EncodeConverseRequest(w io.Writer, msgs []hostitem.Message) error {
	if err := WriteInt(w, len(msgs)); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := WriteInt(w, int(m.Style)); err != nil {
			return err
		}
		if err := writeLenPrefixed(w, []byte(m.Text)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeConverseRequest reads the CONVERSE request body.
func DecodeConverseRequest(r io.Reader) ([]hostitem.Message, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	msgs := make([]hostitem.Message, n)
	for i := 0; i < n; i++ {
		style, err := ReadInt(r)
		if err != nil {
			return nil, err
		}
		text, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		msgs[i] = hostitem.Message{Style: hostitem.MessageStyle(style), Text: string(text)}
	}
	return msgs, nil
}

// EncodeConverseReply writes the CONVERSE reply. resps is ignored (and
// must be nil) when retval is not SUCCESS.
func EncodeConverseReply(w io.Writer, retval int, successCode int, resps []hostitem.Response) error {
	if err := WriteInt(w, retval); err != nil {
		return err
	}
	if retval != successCode {
		return nil
	}
	for _, resp := range resps {
		if err := WriteInt(w, resp.RetCode); err != nil {
			return err
		}
		if !resp.HasText {
			if err := WriteInt(w, 0); err != nil {
				return err
			}
			continue
		}
		if err := writeLenPrefixed(w, resp.Text); err != nil {
			return err
		}
	}
	return nil
}

// DecodeConverseReply reads the CONVERSE reply for a request that carried
// numMsgs messages.
func DecodeConverseReply(r io.Reader, numMsgs int, successCode int) (retval int, resps []hostitem.Response, err error) {
	retval, err = ReadInt(r)
	if err != nil {
		return 0, nil, err
	}
	if retval != successCode {
		return retval, nil, nil
	}
	resps = make([]hostitem.Response, numMsgs)
	for i := 0; i < numMsgs; i++ {
		code, err := ReadInt(r)
		if err != nil {
			return 0, nil, err
		}
		textLen, err := ReadInt(r)
		if err != nil {
			return 0, nil, err
		}
		if textLen == 0 {
			resps[i] = hostitem.Response{RetCode: code}
			continue
		}
		text, err := ReadBytes(r, textLen)
		if err != nil {
			return 0, nil, err
		}
		resps[i] = hostitem.Response{RetCode: code, Text: text, HasText: true}
	}
	return retval, resps, nil
}

// --- FAIL_DELAY ---

// EncodeFailDelayRequest writes the FAIL_DELAY request body.
func EncodeFailDelayRequest(w io.Writer, usec int) error { return WriteInt(w, usec) }

// DecodeFailDelayRequest reads the FAIL_DELAY request body.
func DecodeFailDelayRequest(r io.Reader) (int, error) { return ReadInt(r) }

// EncodeFailDelayReply writes the FAIL_DELAY reply.
func EncodeFailDelayReply(w io.Writer, retval int) error { return WriteInt(w, retval) }

// DecodeFailDelayReply reads the FAIL_DELAY reply.
func DecodeFailDelayReply(r io.Reader) (int, error) { return ReadInt(r) }

// --- STRERROR ---

// EncodeStrErrorRequest writes the STRERROR request body.
func EncodeStrErrorRequest(w io.Writer, errnum int) error { return WriteInt(w, errnum) }

// DecodeStrErrorRequest reads the STRERROR request body.
func DecodeStrErrorRequest(r io.Reader) (int, error) { return ReadInt(r) }

// EncodeStrErrorReply writes the STRERROR reply: no retval field, only
// the resulting text, length-prefixed.
func EncodeStrErrorReply(w io.Writer, text string) error {
	return writeLenPrefixed(w, []byte(text))
}

// DecodeStrErrorReply reads the STRERROR reply.
func DecodeStrErrorReply(r io.Reader) (string, error) {
	b, err := readLenPrefixed(r)
	return string(b), err
}

// --- SYSLOG ---

// EncodeSyslogRequest writes the SYSLOG request body. There is no reply.
func EncodeSyslogRequest(w io.Writer, priority int, msg string) error {
	if err := WriteInt(w, priority); err != nil {
		return err
	}
	return writeLenPrefixed(w, []byte(msg))
}

// DecodeSyslogRequest reads the SYSLOG request body.
func DecodeSyslogRequest(r io.Reader) (priority int, msg string, err error) {
	priority, err = ReadInt(r)
	if err != nil {
		return 0, "", err
	}
	b, err := readLenPrefixed(r)
	if err != nil {
		return 0, "", err
	}
	return priority, string(b), nil
}
