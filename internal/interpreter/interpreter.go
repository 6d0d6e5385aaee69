// Package interpreter defines the narrow abstraction boundary between
// the policy child process and whatever runtime actually executes a
// policy module. internal/childhost depends only on these two
// interfaces; internal/interpreter/wasmengine is the sole concrete
// implementation shipped here.
package interpreter

import "context"

// HostCalls is the set of RPC stubs a Program may invoke while running.
// Concrete fields are wired by internal/rpcclient; Engine implementations
// expose them to the guest however is native to their runtime (as WASM
// host functions, for wasmengine).
type HostCalls struct {
	GetItem   func(ctx context.Context, itemType int) (retval int, isXAuth bool, name, data []byte, err error)
	SetItem   func(ctx context.Context, itemType int, isXAuth bool, name, data []byte) (retval int, err error)
	GetUser   func(ctx context.Context, prompt string) (retval int, user string, err error)
	Converse  func(ctx context.Context, msgs []ConvMessage) (retval int, resps []ConvResponse, err error)
	FailDelay func(ctx context.Context, usec int) (retval int, err error)
	StrError  func(ctx context.Context, errnum int) (string, error)
	Syslog    func(ctx context.Context, priority int, msg string) error
}

// ConvMessage and ConvResponse mirror internal/hostitem's Message and
// Response so this package does not need to import it — the interpreter
// boundary only ever sees plain data, never host-specific types.
type ConvMessage struct {
	Style int
	Text  string
}

type ConvResponse struct {
	RetCode int
	Text    []byte
	HasText bool
}

// Engine loads policy modules and binds them to a host-call surface.
type Engine interface {
	// Load compiles/instantiates a policy module (named by path or
	// logical name, at the implementation's discretion) and returns a
	// Program bound to host.
	Load(ctx context.Context, name string, host HostCalls) (Program, error)
	Close(ctx context.Context) error
}

// Program is one instantiated, invocable policy module.
type Program interface {
	// Invoke calls the named hook export with (flags, argv) and returns
	// the policy's integer result, or an error if the guest trapped or
	// the export does not exist.
	Invoke(ctx context.Context, hookFn string, flags int, argv []string) (int, error)
	Close(ctx context.Context) error
}

// PolicyError wraps an uncaught guest-side trap. internal/childhost logs
// Text via SYSLOG before mapping the invocation to the hook's default
// error code.
type PolicyError struct {
	HookFn string
	Text   string
	Cause  error
}

func (e *PolicyError) Error() string {
	if e.Cause != nil {
		return "policy " + e.HookFn + " trapped: " + e.Text + ": " + e.Cause.Error()
	}
	return "policy " + e.HookFn + " trapped: " + e.Text
}

func (e *PolicyError) Unwrap() error { return e.Cause }
