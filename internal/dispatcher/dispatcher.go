// Package dispatcher implements the parent-side request loop (spec.md
// §4.3): it reads one tagged request at a time from the child->parent
// pipe, serves it against the real authentication handle, and writes the
// reply on the parent->child pipe, until the child closes its write end.
package dispatcher

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/hostapi"
	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
	"github.com/aras-services/pam-policy-bridge/internal/wire"
)

// Serve runs the request loop until clean EOF or an unrecoverable wire
// error. It always returns a valid host return code: SUCCESS on clean
// termination, or the hook's default error on any failure the loop could
// not recover from.
//
// r and w are, respectively, the child->parent read end and the
// parent->child write end; both are closed by the caller, never here.
func Serve(r io.Reader, w io.Writer, h hostapi.Handle, l hook.Label, log *zap.Logger) pamcode.Code {
	def := hook.DefaultError(l)
	for {
		tag, err := wire.ReadTag(r)
		if err != nil {
			if err == wire.ReadEOF {
				return pamcode.Success
			}
			log.Error("wire error reading request tag", zap.Error(err))
			return def
		}

		if err := dispatchOne(r, w, h, tag, log); err != nil {
			log.Error("wire error serving request", zap.Int("tag", int(tag)), zap.Error(err))
			return def
		}
	}
}

func dispatchOne(r io.Reader, w io.Writer, h hostapi.Handle, tag wire.Tag, log *zap.Logger) error {
	switch tag {
	case wire.TagGetItem:
		return serveGetItem(r, w, h)
	case wire.TagSetItem:
		return serveSetItem(r, w, h)
	case wire.TagGetUser:
		return serveGetUser(r, w, h)
	case wire.TagConverse:
		return serveConverse(r, w, h)
	case wire.TagFailDelay:
		return serveFailDelay(r, w, h)
	case wire.TagStrError:
		return serveStrError(r, w, h)
	case wire.TagSyslog:
		return serveSyslog(r, w, h)
	default:
		h.Syslog(3, fmt.Sprintf("pam-policy-bridge: unknown RPC tag %d from policy child", int(tag)))
		log.Warn("unknown RPC tag", zap.Int("tag", int(tag)))
		return fmt.Errorf("unknown tag %d", int(tag))
	}
}

func serveGetItem(r io.Reader, w io.Writer, h hostapi.Handle) error {
	itemType, err := wire.DecodeGetItemRequest(r)
	if err != nil {
		return err
	}

	code, xauth, b, err := h.GetItem(itemType)
	if err != nil {
		return wire.EncodeGetItemReply(w, int(pamcode.SystemErr), nil)
	}
	if code != pamcode.Success {
		return wire.EncodeGetItemReply(w, int(code), nil)
	}
	var val *wire.ItemValue
	if itemType == hostitem.XAuthData {
		if xauth == nil {
			xauth = &hostitem.XAuthData{}
		}
		val = &wire.ItemValue{XAuth: xauth}
	} else {
		val = &wire.ItemValue{Bytes: b}
	}
	return wire.EncodeGetItemReply(w, int(code), val)
}

func serveSetItem(r io.Reader, w io.Writer, h hostapi.Handle) error {
	itemType, val, err := wire.DecodeSetItemRequest(r)
	if err != nil {
		return err
	}
	var code pamcode.Code
	if itemType == hostitem.XAuthData {
		code, err = h.SetItem(itemType, val.XAuth, nil)
	} else {
		code, err = h.SetItem(itemType, nil, val.Bytes)
	}
	if err != nil {
		return wire.EncodeSetItemReply(w, int(pamcode.SystemErr))
	}
	return wire.EncodeSetItemReply(w, int(code))
}

func serveGetUser(r io.Reader, w io.Writer, h hostapi.Handle) error {
	prompt, _, err := wire.DecodeGetUserRequest(r)
	if err != nil {
		return err
	}
	code, user, err := h.GetUser(prompt)
	if err != nil {
		return wire.EncodeGetUserReply(w, int(pamcode.SystemErr), "")
	}
	return wire.EncodeGetUserReply(w, int(code), user)
}

// serveConverse looks up the currently installed conversation callback
// (via GetItem(CONV) semantics folded into Handle.Converse) and, unless
// it is absent, invokes it and serializes the responses. Every response
// buffer returned by the host is zeroed immediately after being written
// to the wire, whether or not the write succeeds — per spec.md §4.3.
func serveConverse(r io.Reader, w io.Writer, h hostapi.Handle) error {
	msgs, err := wire.DecodeConverseRequest(r)
	if err != nil {
		return err
	}

	code, resps, err := h.Converse(msgs)
	defer func() {
		for i := range resps {
			resps[i].Zero()
		}
	}()
	if err != nil {
		return wire.EncodeConverseReply(w, int(pamcode.ConvErr), int(pamcode.Success), nil)
	}
	return wire.EncodeConverseReply(w, int(code), int(pamcode.Success), resps)
}

func serveFailDelay(r io.Reader, w io.Writer, h hostapi.Handle) error {
	usec, err := wire.DecodeFailDelayRequest(r)
	if err != nil {
		return err
	}
	code, err := h.FailDelay(usec)
	if err != nil {
		return wire.EncodeFailDelayReply(w, int(pamcode.SystemErr))
	}
	return wire.EncodeFailDelayReply(w, int(code))
}

func serveStrError(r io.Reader, w io.Writer, h hostapi.Handle) error {
	errnum, err := wire.DecodeStrErrorRequest(r)
	if err != nil {
		return err
	}
	// The returned string is host-owned; nothing here frees it.
	return wire.EncodeStrErrorReply(w, h.StrError(errnum))
}

func serveSyslog(r io.Reader, w io.Writer, h hostapi.Handle) error {
	priority, msg, err := wire.DecodeSyslogRequest(r)
	if err != nil {
		return err
	}
	h.Syslog(priority, msg)
	return nil
}
