package childhost

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/interpreter"
	"github.com/aras-services/pam-policy-bridge/internal/rpcclient"
	"github.com/aras-services/pam-policy-bridge/internal/wire"
)

type fakeEngine struct {
	prog    *fakeProgram
	loadErr error
}

func (e *fakeEngine) Load(ctx context.Context, name string, host interpreter.HostCalls) (interpreter.Program, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	return e.prog, nil
}
func (e *fakeEngine) Close(ctx context.Context) error { return nil }

type fakeProgram struct {
	result    int
	invokeErr error
	closed    bool
	gotHookFn string
	gotFlags  int
	gotArgv   []string
}

func (p *fakeProgram) Invoke(ctx context.Context, hookFn string, flags int, argv []string) (int, error) {
	p.gotHookFn, p.gotFlags, p.gotArgv = hookFn, flags, argv
	if p.invokeErr != nil {
		return 0, p.invokeErr
	}
	return p.result, nil
}
func (p *fakeProgram) Close(ctx context.Context) error { p.closed = true; return nil }

func TestRunReturnsPolicyResultOnSuccess(t *testing.T) {
	var out, in bytes.Buffer
	client := rpcclient.New(&out, &in)
	prog := &fakeProgram{result: 0}
	eng := &fakeEngine{prog: prog}

	code := Run(context.Background(), eng, client, "policy.wasm", hook.Authenticate, 0, []string{"debug"}, zaptest.NewLogger(t))
	require.Equal(t, 0, code)
	require.Equal(t, "authenticate", prog.gotHookFn)
	require.True(t, prog.closed)
}

func TestRunMapsTrapToHookDefaultAndSyslogs(t *testing.T) {
	var out, in bytes.Buffer
	client := rpcclient.New(&out, &in)
	prog := &fakeProgram{invokeErr: &interpreter.PolicyError{HookFn: "setcred", Text: "unhandled ValueError"}}
	eng := &fakeEngine{prog: prog}

	code := Run(context.Background(), eng, client, "policy.wasm", hook.SetCred, 0, nil, zaptest.NewLogger(t))
	require.Equal(t, int(hook.DefaultError(hook.SetCred)), code)

	gotTag, err := wire.ReadTag(&out)
	require.NoError(t, err)
	require.Equal(t, wire.TagSyslog, gotTag)
	_, msg, err := wire.DecodeSyslogRequest(&out)
	require.NoError(t, err)
	require.Contains(t, msg, "unhandled ValueError")
}

func TestRunLoadFailureReturnsHookDefault(t *testing.T) {
	var out, in bytes.Buffer
	client := rpcclient.New(&out, &in)
	eng := &fakeEngine{loadErr: errors.New("no such file")}

	code := Run(context.Background(), eng, client, "missing.wasm", hook.OpenSession, 0, nil, zaptest.NewLogger(t))
	require.Equal(t, int(hook.DefaultError(hook.OpenSession)), code)
}

func TestRunOutOfRangeResultSubstitutesHookDefault(t *testing.T) {
	var out, in bytes.Buffer
	client := rpcclient.New(&out, &in)
	prog := &fakeProgram{result: 9000}
	eng := &fakeEngine{prog: prog}

	code := Run(context.Background(), eng, client, "policy.wasm", hook.ChAuthTok, 0, nil, zaptest.NewLogger(t))
	require.Equal(t, int(hook.DefaultError(hook.ChAuthTok)), code)
}
