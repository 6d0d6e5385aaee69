package orchestrator

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
)

type fakeHandle struct {
	convItemPresent bool
	convCode        pamcode.Code
	convResps       []hostitem.Response
	gotConverse     bool
}

func (f *fakeHandle) GetItem(t hostitem.Type) (pamcode.Code, *hostitem.XAuthData, []byte, error) {
	if t == hostitem.Conv && f.convItemPresent {
		return pamcode.Success, nil, nil, nil
	}
	return pamcode.BadItem, nil, nil, nil
}

func (f *fakeHandle) SetItem(t hostitem.Type, x *hostitem.XAuthData, b []byte) (pamcode.Code, error) {
	return pamcode.Success, nil
}

func (f *fakeHandle) GetUser(prompt string) (pamcode.Code, string, error) {
	return pamcode.Success, "alice", nil
}

func (f *fakeHandle) Converse(msgs []hostitem.Message) (pamcode.Code, []hostitem.Response, error) {
	f.gotConverse = true
	return f.convCode, f.convResps, nil
}

func (f *fakeHandle) FailDelay(usec int) (pamcode.Code, error) { return pamcode.Success, nil }
func (f *fakeHandle) StrError(errnum int) string               { return "Input/output error" }
func (f *fakeHandle) Syslog(priority int, msg string)           {}

func TestWithDefaultConversationUsesHostCallbackWhenInstalled(t *testing.T) {
	h := &fakeHandle{convItemPresent: true, convCode: pamcode.Success}
	wrapped := withDefaultConversationHandle(h)

	_, _, err := wrapped.Converse([]hostitem.Message{{Style: hostitem.PromptEchoOn, Text: "login: "}})
	require.NoError(t, err)
	require.True(t, h.gotConverse)
}

func TestResolveChildPathPrefersArgvOverride(t *testing.T) {
	path := resolveChildPath([]string{"debug", "child=/opt/custom/pambridgechild"}, "/from/config")
	require.Equal(t, "/opt/custom/pambridgechild", path)
}

func TestResolveChildPathFallsBackToConfig(t *testing.T) {
	path := resolveChildPath([]string{"debug"}, "/from/config")
	require.Equal(t, "/from/config", path)
}

func TestResolveChildPathFallsBackToEnv(t *testing.T) {
	t.Setenv(ChildEnvVar, "/from/env/pambridgechild")
	path := resolveChildPath(nil, "")
	require.Equal(t, "/from/env/pambridgechild", path)
}

func TestResolveChildPathFallsBackToCompiledDefault(t *testing.T) {
	path := resolveChildPath(nil, "")
	require.Equal(t, DefaultChildPath, path)
}

func TestMapExitStatusReturnsChildsExactExitCode(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 17")
	waitErr := cmd.Run()

	code := mapExitStatus(cmd, waitErr, hook.Authenticate)
	require.Equal(t, pamcode.Code(17), code)
}

func TestMapExitStatusSignaledChildReturnsHookDefault(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -KILL $$")
	waitErr := cmd.Run()

	code := mapExitStatus(cmd, waitErr, hook.SetCred)
	require.Equal(t, hook.DefaultError(hook.SetCred), code)
}

func TestMapExitStatusCleanExitZero(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	waitErr := cmd.Run()

	code := mapExitStatus(cmd, waitErr, hook.AcctMgmt)
	require.Equal(t, pamcode.Code(0), code)
}
