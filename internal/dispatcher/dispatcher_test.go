package dispatcher

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
	"github.com/aras-services/pam-policy-bridge/internal/wire"
)

type fakeHandle struct {
	items     map[hostitem.Type][]byte
	xauth     map[hostitem.Type]*hostitem.XAuthData
	user      string
	convResps []hostitem.Response
	convCode  pamcode.Code
	convErr   error
	failDelayErr error
	syslogged []string
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{items: map[hostitem.Type][]byte{}, xauth: map[hostitem.Type]*hostitem.XAuthData{}}
}

func (f *fakeHandle) GetItem(t hostitem.Type) (pamcode.Code, *hostitem.XAuthData, []byte, error) {
	if t == hostitem.XAuthData {
		x, ok := f.xauth[t]
		if !ok {
			return pamcode.BadItem, nil, nil, nil
		}
		return pamcode.Success, x, nil, nil
	}
	b, ok := f.items[t]
	if !ok {
		return pamcode.BadItem, nil, nil, nil
	}
	return pamcode.Success, nil, b, nil
}

func (f *fakeHandle) SetItem(t hostitem.Type, x *hostitem.XAuthData, b []byte) (pamcode.Code, error) {
	if x != nil {
		f.xauth[t] = x
	} else {
		f.items[t] = b
	}
	return pamcode.Success, nil
}

func (f *fakeHandle) GetUser(prompt string) (pamcode.Code, string, error) {
	return pamcode.Success, f.user, nil
}

func (f *fakeHandle) Converse(msgs []hostitem.Message) (pamcode.Code, []hostitem.Response, error) {
	if f.convErr != nil {
		return 0, nil, f.convErr
	}
	return f.convCode, f.convResps, nil
}

func (f *fakeHandle) FailDelay(usec int) (pamcode.Code, error) {
	if f.failDelayErr != nil {
		return 0, f.failDelayErr
	}
	return pamcode.Success, nil
}

func (f *fakeHandle) StrError(errnum int) string { return "Input/output error" }

func (f *fakeHandle) Syslog(priority int, msg string) {
	f.syslogged = append(f.syslogged, msg)
}

func TestServeCleanEOFReturnsSuccess(t *testing.T) {
	var in bytes.Buffer // empty: immediate EOF
	var out bytes.Buffer
	h := newFakeHandle()
	code := Serve(&in, &out, h, hook.Authenticate, zaptest.NewLogger(t))
	require.Equal(t, pamcode.Success, code)
}

func TestServeGetItemPassThrough(t *testing.T) {
	var in bytes.Buffer
	h := newFakeHandle()
	h.items[hostitem.User] = []byte("alice")

	require.NoError(t, wire.WriteTag(&in, wire.TagGetItem))
	require.NoError(t, wire.EncodeGetItemRequest(&in, hostitem.User))

	var out bytes.Buffer
	code := dispatchAndFinish(t, &in, &out, h)
	require.Equal(t, pamcode.Success, code)

	retval, val, err := wire.DecodeGetItemReply(&out, false, int(pamcode.Success))
	require.NoError(t, err)
	require.Equal(t, int(pamcode.Success), retval)
	require.Equal(t, []byte("alice"), val.Bytes)
}

func TestServeGetItemXAuthDataRoundTrip(t *testing.T) {
	var in bytes.Buffer
	h := newFakeHandle()
	h.xauth[hostitem.XAuthData] = &hostitem.XAuthData{Name: []byte("ken"), Data: []byte("some_data")}

	require.NoError(t, wire.WriteTag(&in, wire.TagGetItem))
	require.NoError(t, wire.EncodeGetItemRequest(&in, hostitem.XAuthData))

	var out bytes.Buffer
	code := dispatchAndFinish(t, &in, &out, h)
	require.Equal(t, pamcode.Success, code)

	retval, val, err := wire.DecodeGetItemReply(&out, true, int(pamcode.Success))
	require.NoError(t, err)
	require.Equal(t, int(pamcode.Success), retval)
	require.Equal(t, []byte("ken"), val.XAuth.Name)
	require.Equal(t, []byte("some_data"), val.XAuth.Data)
}

func TestServeSyslogForwardsMessageToHost(t *testing.T) {
	var in bytes.Buffer
	h := newFakeHandle()
	require.NoError(t, wire.WriteTag(&in, wire.TagSyslog))
	require.NoError(t, wire.EncodeSyslogRequest(&in, 3, "policy raised ValueError"))

	var out bytes.Buffer
	code := dispatchAndFinish(t, &in, &out, h)
	require.Equal(t, pamcode.Success, code)
	require.Contains(t, h.syslogged, "policy raised ValueError")
}

func TestServeUnknownTagReturnsHookDefault(t *testing.T) {
	var in bytes.Buffer
	h := newFakeHandle()
	require.NoError(t, wire.WriteTag(&in, wire.Tag(99)))

	var out bytes.Buffer
	code := Serve(&in, &out, h, hook.SetCred, zaptest.NewLogger(t))
	require.Equal(t, hook.DefaultError(hook.SetCred), code)
	require.NotEmpty(t, h.syslogged)
}

func TestServeConverseZeroesResponseAfterWrite(t *testing.T) {
	var in bytes.Buffer
	h := newFakeHandle()
	respText := []byte("hunter2")
	h.convCode = pamcode.Success
	h.convResps = []hostitem.Response{{RetCode: 0, Text: respText, HasText: true}}

	require.NoError(t, wire.WriteTag(&in, wire.TagConverse))
	require.NoError(t, wire.EncodeConverseRequest(&in, []hostitem.Message{{Style: hostitem.PromptEchoOff, Text: "Password: "}}))

	var out bytes.Buffer
	code := dispatchAndFinish(t, &in, &out, h)
	require.Equal(t, pamcode.Success, code)

	retval, resps, err := wire.DecodeConverseReply(&out, 1, int(pamcode.Success))
	require.NoError(t, err)
	require.Equal(t, int(pamcode.Success), retval)
	require.Equal(t, "hunter2", string(resps[0].Text))

	for _, b := range respText {
		require.Equal(t, byte(0), b)
	}
}

func TestServeConverseHandleErrorRepliesConvErr(t *testing.T) {
	var in bytes.Buffer
	h := newFakeHandle()
	h.convErr = errors.New("conversation callback failed")

	require.NoError(t, wire.WriteTag(&in, wire.TagConverse))
	require.NoError(t, wire.EncodeConverseRequest(&in, nil))

	var out bytes.Buffer
	code := dispatchAndFinish(t, &in, &out, h)
	require.Equal(t, pamcode.Success, code)

	retval, resps, err := wire.DecodeConverseReply(&out, 0, int(pamcode.Success))
	require.NoError(t, err)
	require.Equal(t, int(pamcode.ConvErr), retval)
	require.Nil(t, resps)
}

// dispatchAndFinish runs Serve to completion over the caller's
// already-written request; the end of the buffer acts as the clean EOF.
func dispatchAndFinish(t *testing.T, in *bytes.Buffer, out *bytes.Buffer, h *fakeHandle) pamcode.Code {
	t.Helper()
	return Serve(in, out, h, hook.Authenticate, zaptest.NewLogger(t))
}
