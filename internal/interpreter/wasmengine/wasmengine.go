// Package wasmengine is the concrete interpreter.Engine implementation:
// policy modules are WebAssembly binaries, run under wazero, and reach
// the host RPC primitives through a "pambridge" host module exposing the
// same seven request/reply schemas internal/wire defines for the pipe
// protocol. A guest request or reply is exactly the bytes wire's
// Encode*/Decode* pair for that tag would produce or consume — the wire
// format is reused verbatim so a policy script only has to implement one
// codec regardless of which transport loaded it.
//
// Guest contract: a policy module must export linear memory, an
// allocator `pb_alloc(size i32) -> i32`, and one function per hook name
// it implements (e.g. `authenticate`), each `func(flags i32, argvPtr i32,
// argvLen i32) -> i32`. Every pambridge host function takes a
// (reqPtr i32, reqLen i32) pair pointing at a wire-encoded request body
// already written into guest memory, and returns a packed i64
// (replyPtr<<32 | replyLen) pointing at a wire-encoded reply body the
// host wrote into guest memory via pb_alloc.
package wasmengine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/interpreter"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
	"github.com/aras-services/pam-policy-bridge/internal/wire"
)

const i32 = api.ValueTypeI32
const i64 = api.ValueTypeI64

const allocExport = "pb_alloc"

// Engine is the wazero-backed interpreter.Engine. The "pambridge" host
// module is built and instantiated once, in New, before any guest module
// is compiled or instantiated — matching the registration-before-init
// ordering the original pam_python bridge relies on.
type Engine struct {
	runtime wazero.Runtime
	closed  uint32
}

var _ interpreter.Engine = (*Engine)(nil)

func New(ctx context.Context) (*Engine, error) {
	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasmengine: instantiate wasi: %w", err)
	}
	if _, err := instantiatePambridgeHost(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasmengine: instantiate host module: %w", err)
	}
	return &Engine{runtime: r}, nil
}

// Load reads the WASM binary at path, compiles, and instantiates it.
func (e *Engine) Load(ctx context.Context, name string, host interpreter.HostCalls) (interpreter.Program, error) {
	if atomic.LoadUint32(&e.closed) != 0 {
		return nil, fmt.Errorf("wasmengine: engine closed")
	}
	wasmBytes, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("wasmengine: read %s: %w", name, err)
	}
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wasmengine: compile %s: %w", name, err)
	}
	cfg := wazero.NewModuleConfig().WithStdout(os.Stdout).WithStderr(os.Stderr)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("wasmengine: instantiate %s: %w", name, err)
	}
	alloc := mod.ExportedFunction(allocExport)
	if alloc == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("wasmengine: %s does not export %s", name, allocExport)
	}
	return &Program{mod: mod, alloc: alloc, host: host}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&e.closed, 0, 1) {
		return nil
	}
	return e.runtime.Close(ctx)
}

// Program is one instantiated policy module.
type Program struct {
	mod    api.Module
	alloc  api.Function
	host   interpreter.HostCalls
	closed uint32
}

var _ interpreter.Program = (*Program)(nil)

func (p *Program) Invoke(ctx context.Context, hookFn string, flags int, argv []string) (int, error) {
	if atomic.LoadUint32(&p.closed) != 0 {
		return 0, fmt.Errorf("wasmengine: program closed")
	}
	fn := p.mod.ExportedFunction(hookFn)
	if fn == nil {
		return 0, fmt.Errorf("wasmengine: policy does not export %s", hookFn)
	}

	var argvBuf bytes.Buffer
	_ = wire.WriteInt(&argvBuf, len(argv))
	for _, a := range argv {
		_ = wire.WriteInt(&argvBuf, len(a))
		_ = wire.WriteString(&argvBuf, []byte(a))
	}
	argvPtr, argvLen, err := writeToGuest(ctx, p.mod, p.alloc, argvBuf.Bytes())
	if err != nil {
		return 0, &interpreter.PolicyError{HookFn: hookFn, Text: "allocating argv in guest memory", Cause: err}
	}

	callCtx := &hostCallCtx{host: p.host, alloc: p.alloc}
	results, err := fn.Call(withHostCallCtx(ctx, callCtx), uint64(uint32(flags)), uint64(argvPtr), uint64(argvLen))
	if err != nil {
		return 0, &interpreter.PolicyError{HookFn: hookFn, Text: err.Error(), Cause: err}
	}
	if len(results) != 1 {
		return 0, &interpreter.PolicyError{HookFn: hookFn, Text: "hook export returned no result"}
	}
	return int(int32(uint32(results[0]))), nil
}

func (p *Program) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return nil
	}
	return p.mod.Close(ctx)
}

// writeToGuest asks the guest's allocator for size bytes and copies data
// into the returned region, returning (ptr, len).
func writeToGuest(ctx context.Context, mod api.Module, alloc api.Function, data []byte) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, err
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("wasmengine: guest allocation of %d bytes out of memory bounds", len(data))
	}
	return ptr, uint32(len(data)), nil
}

func pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// hostCallCtx carries the HostCalls bound to the Program currently
// executing, and the guest allocator, across a single Invoke so the
// pambridge host functions (registered once, at Engine.New time) know
// which policy's RPC stubs to call.
type hostCallCtx struct {
	host  interpreter.HostCalls
	alloc api.Function
}

type hostCallCtxKey struct{}

func withHostCallCtx(ctx context.Context, cc *hostCallCtx) context.Context {
	return context.WithValue(ctx, hostCallCtxKey{}, cc)
}

func fromHostCallCtx(ctx context.Context) *hostCallCtx {
	cc, _ := ctx.Value(hostCallCtxKey{}).(*hostCallCtx)
	return cc
}

func requireRead(mem api.Memory, field string, offset, byteCount uint32) []byte {
	buf, ok := mem.Read(offset, byteCount)
	if !ok {
		panic(fmt.Errorf("wasmengine: out of bounds reading %s (ptr=%d len=%d)", field, offset, byteCount))
	}
	return buf
}

// pambridgeHost implements the seven RPC primitives as wazero host
// functions, each marshalling through internal/wire exactly as the
// parent-side dispatcher does for the pipe transport.
type pambridgeHost struct{}

func instantiatePambridgeHost(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	h := &pambridgeHost{}
	return r.NewHostModuleBuilder("pambridge").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.getItem), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("get_item").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.setItem), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("set_item").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.getUser), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("get_user").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.converse), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("converse").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.failDelay), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("fail_delay").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.strError), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("strerror").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.syslog), []api.ValueType{i32, i32}, []api.ValueType{i64}).
		WithParameterNames("req_ptr", "req_len").
		Export("syslog").
		Instantiate(ctx)
}

// withRequest reads the request body out of guest memory, hands it to
// fn as a reader, writes fn's returned reply bytes back into guest
// memory via the bound allocator, and leaves the packed (ptr,len)
// result on the stack. fn returning an error traps the guest call.
func withRequest(ctx context.Context, mod api.Module, stack []uint64, fn func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error)) {
	cc := fromHostCallCtx(ctx)
	if cc == nil {
		panic(fmt.Errorf("wasmengine: host function called outside an Invoke"))
	}
	reqPtr := uint32(stack[0])
	reqLen := uint32(stack[1])
	reqBytes := requireRead(mod.Memory(), "request", reqPtr, reqLen)

	replyBytes, err := fn(cc, bytes.NewReader(reqBytes))
	if err != nil {
		panic(err)
	}
	ptr, length, err := writeToGuest(ctx, mod, cc.alloc, replyBytes)
	if err != nil {
		panic(err)
	}
	stack[0] = pack(ptr, length)
}

func toItemValue(isXAuth bool, name, data []byte) *wire.ItemValue {
	if isXAuth {
		return &wire.ItemValue{XAuth: &hostitem.XAuthData{Name: name, Data: data}}
	}
	return &wire.ItemValue{Bytes: data}
}

func (h *pambridgeHost) getItem(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		itemType, err := wire.DecodeGetItemRequest(req)
		if err != nil {
			return nil, err
		}
		retval, isXAuth, name, data, err := cc.host.GetItem(ctx, int(itemType))
		if err != nil {
			retval = int(pamcode.SystemErr)
		}
		var buf bytes.Buffer
		var val *wire.ItemValue
		if retval == int(pamcode.Success) {
			val = toItemValue(isXAuth, name, data)
		}
		if err := wire.EncodeGetItemReply(&buf, retval, val); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (h *pambridgeHost) setItem(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		itemType, val, err := wire.DecodeSetItemRequest(req)
		if err != nil {
			return nil, err
		}
		isXAuth := val.XAuth != nil
		var name, data []byte
		if isXAuth {
			name, data = val.XAuth.Name, val.XAuth.Data
		} else {
			data = val.Bytes
		}
		retval, err := cc.host.SetItem(ctx, int(itemType), isXAuth, name, data)
		if err != nil {
			retval = int(pamcode.SystemErr)
		}
		var buf bytes.Buffer
		if err := wire.EncodeSetItemReply(&buf, retval); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (h *pambridgeHost) getUser(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		prompt, _, err := wire.DecodeGetUserRequest(req)
		if err != nil {
			return nil, err
		}
		retval, user, err := cc.host.GetUser(ctx, prompt)
		if err != nil {
			retval = int(pamcode.SystemErr)
		}
		var buf bytes.Buffer
		if err := wire.EncodeGetUserReply(&buf, retval, user); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (h *pambridgeHost) converse(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		msgs, err := wire.DecodeConverseRequest(req)
		if err != nil {
			return nil, err
		}
		convMsgs := make([]interpreter.ConvMessage, len(msgs))
		for i, m := range msgs {
			convMsgs[i] = interpreter.ConvMessage{Style: int(m.Style), Text: m.Text}
		}
		retval, resps, err := cc.host.Converse(ctx, convMsgs)
		if err != nil {
			retval = int(pamcode.ConvErr)
			resps = nil
		}
		hostResps := make([]hostitem.Response, len(resps))
		for i, r := range resps {
			hostResps[i] = hostitem.Response{RetCode: r.RetCode, Text: r.Text, HasText: r.HasText}
		}
		var buf bytes.Buffer
		if err := wire.EncodeConverseReply(&buf, retval, int(pamcode.Success), hostResps); err != nil {
			return nil, err
		}
		for i := range hostResps {
			hostResps[i].Zero()
		}
		return buf.Bytes(), nil
	})
}

func (h *pambridgeHost) failDelay(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		usec, err := wire.DecodeFailDelayRequest(req)
		if err != nil {
			return nil, err
		}
		retval, err := cc.host.FailDelay(ctx, usec)
		if err != nil {
			retval = int(pamcode.SystemErr)
		}
		var buf bytes.Buffer
		if err := wire.EncodeFailDelayReply(&buf, retval); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (h *pambridgeHost) strError(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		errnum, err := wire.DecodeStrErrorRequest(req)
		if err != nil {
			return nil, err
		}
		text, err := cc.host.StrError(ctx, errnum)
		if err != nil {
			text = ""
		}
		var buf bytes.Buffer
		if err := wire.EncodeStrErrorReply(&buf, text); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (h *pambridgeHost) syslog(ctx context.Context, mod api.Module, stack []uint64) {
	withRequest(ctx, mod, stack, func(cc *hostCallCtx, req *bytes.Reader) ([]byte, error) {
		priority, msg, err := wire.DecodeSyslogRequest(req)
		if err != nil {
			return nil, err
		}
		if err := cc.host.Syslog(ctx, priority, msg); err != nil {
			return nil, err
		}
		return nil, nil
	})
}
