// Package rpcclient implements the child side of the seven RPC
// primitives (spec.md §4.5): each method writes one tagged request to
// the child->parent pipe, blocks for the matching reply on the
// parent->child pipe, and decodes it. This is pure marshalling — no
// policy logic lives here, matching the stub role the child plays in
// the wire protocol.
package rpcclient

import (
	"context"
	"io"
	"sync"

	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/interpreter"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
	"github.com/aras-services/pam-policy-bridge/internal/wire"
)

// Client drives one child->parent / parent->child pipe pair. Methods are
// safe for concurrent use, though spec.md's concurrency model means the
// child never actually calls more than one at a time.
type Client struct {
	mu sync.Mutex
	w  io.Writer // child -> parent
	r  io.Reader // parent -> child
}

func New(w io.Writer, r io.Reader) *Client {
	return &Client{w: w, r: r}
}

// HostCalls adapts the client onto the narrow interpreter.HostCalls
// surface a Program is loaded with.
func (c *Client) HostCalls() interpreter.HostCalls {
	return interpreter.HostCalls{
		GetItem:   c.GetItem,
		SetItem:   c.SetItem,
		GetUser:   c.GetUser,
		Converse:  c.Converse,
		FailDelay: c.FailDelay,
		StrError:  c.StrError,
		Syslog:    c.Syslog,
	}
}

func (c *Client) GetItem(ctx context.Context, itemType int) (retval int, isXAuth bool, name, data []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteTag(c.w, wire.TagGetItem); err != nil {
		return 0, false, nil, nil, err
	}
	if err := wire.EncodeGetItemRequest(c.w, hostitem.Type(itemType)); err != nil {
		return 0, false, nil, nil, err
	}
	isXAuth = hostitem.Type(itemType) == hostitem.XAuthData
	retval, val, err := wire.DecodeGetItemReply(c.r, isXAuth, int(pamcode.Success))
	if err != nil {
		return 0, false, nil, nil, err
	}
	if val == nil {
		return retval, isXAuth, nil, nil, nil
	}
	if val.XAuth != nil {
		return retval, true, val.XAuth.Name, val.XAuth.Data, nil
	}
	return retval, false, nil, val.Bytes, nil
}

func (c *Client) SetItem(ctx context.Context, itemType int, isXAuth bool, name, data []byte) (retval int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val := &wire.ItemValue{Bytes: data}
	if isXAuth {
		val = &wire.ItemValue{XAuth: &hostitem.XAuthData{Name: name, Data: data}}
	}
	if err := wire.WriteTag(c.w, wire.TagSetItem); err != nil {
		return 0, err
	}
	if err := wire.EncodeSetItemRequest(c.w, hostitem.Type(itemType), val); err != nil {
		return 0, err
	}
	return wire.DecodeSetItemReply(c.r)
}

func (c *Client) GetUser(ctx context.Context, prompt string) (retval int, user string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteTag(c.w, wire.TagGetUser); err != nil {
		return 0, "", err
	}
	if err := wire.EncodeGetUserRequest(c.w, prompt); err != nil {
		return 0, "", err
	}
	return wire.DecodeGetUserReply(c.r)
}

func (c *Client) Converse(ctx context.Context, msgs []interpreter.ConvMessage) (retval int, resps []interpreter.ConvResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hostMsgs := make([]hostitem.Message, len(msgs))
	for i, m := range msgs {
		hostMsgs[i] = hostitem.Message{Style: hostitem.MessageStyle(m.Style), Text: m.Text}
	}
	if err := wire.WriteTag(c.w, wire.TagConverse); err != nil {
		return 0, nil, err
	}
	if err := wire.EncodeConverseRequest(c.w, hostMsgs); err != nil {
		return 0, nil, err
	}
	retval, hostResps, err := wire.DecodeConverseReply(c.r, len(msgs), int(pamcode.Success))
	if err != nil {
		return 0, nil, err
	}
	resps = make([]interpreter.ConvResponse, len(hostResps))
	for i, r := range hostResps {
		resps[i] = interpreter.ConvResponse{RetCode: r.RetCode, Text: r.Text, HasText: r.HasText}
	}
	return retval, resps, nil
}

func (c *Client) FailDelay(ctx context.Context, usec int) (retval int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteTag(c.w, wire.TagFailDelay); err != nil {
		return 0, err
	}
	if err := wire.EncodeFailDelayRequest(c.w, usec); err != nil {
		return 0, err
	}
	return wire.DecodeFailDelayReply(c.r)
}

func (c *Client) StrError(ctx context.Context, errnum int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteTag(c.w, wire.TagStrError); err != nil {
		return "", err
	}
	if err := wire.EncodeStrErrorRequest(c.w, errnum); err != nil {
		return "", err
	}
	return wire.DecodeStrErrorReply(c.r)
}

func (c *Client) Syslog(ctx context.Context, priority int, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteTag(c.w, wire.TagSyslog); err != nil {
		return err
	}
	return wire.EncodeSyslogRequest(c.w, priority, msg)
}
