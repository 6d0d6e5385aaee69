// Package orchestrator implements the parent side of one hook
// invocation (spec.md §4.6): it creates the pipe pair, resolves and
// spawns the policy child (via re-exec, not fork — see SPEC_FULL.md),
// runs the dispatcher loop against the real authentication handle, reaps
// the child, and maps the outcome to the host return code.
package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/aras-services/pam-policy-bridge/internal/audit/ingest"
	"github.com/aras-services/pam-policy-bridge/internal/conversation"
	"github.com/aras-services/pam-policy-bridge/internal/dispatcher"
	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/hostapi"
	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
)

// DefaultChildPath is the compile-time fallback child binary location
// (spec.md §4.10 resolution step 3).
const DefaultChildPath = "/usr/lib/pam-policy-bridge/pambridgechild"

// ChildEnvVar names the environment variable the config layer also binds
// to Bridge.ChildPath; resolveChildPath reads it directly only when the
// config-supplied path is empty.
const ChildEnvVar = "PAMBRIDGE_CHILD_PATH"

// FlagsEnvVar carries the integer pam_sm_* flags bitmask to the policy
// child, which has no other way to receive it (argv already carries the
// hook label and module arguments).
const FlagsEnvVar = "PAMBRIDGE_FLAGS"

// Run spawns the policy child for hook l, serves its RPC requests
// against h, reaps it, and returns the resulting host return code.
// childPathFromConfig is the config-layer-resolved PAMBRIDGE_CHILD_PATH
// value (empty if unset).
func Run(h hostapi.Handle, l hook.Label, flags int, argv []string, childPathFromConfig string, emit *ingest.Emitter, log *zap.Logger) (result pamcode.Code) {
	started := time.Now()
	childPath := resolveChildPath(argv, childPathFromConfig)
	var childPID int
	var runErr error
	defer func() {
		emit.Emit(string(l), childPID, childPath, int(result), errText(runErr), started, time.Now())
	}()

	if _, err := exec.LookPath(childPath); err != nil {
		h.Syslog(3, fmt.Sprintf("pam-policy-bridge: cannot resolve child binary %q: %v", childPath, err))
		log.Error("resolving child binary", zap.String("path", childPath), zap.Error(err))
		runErr = err
		return hook.DefaultError(l)
	}

	// parentToChildR/W: parent writes replies, child reads them.
	// childToParentR/W: child writes requests, parent reads them.
	parentToChildR, parentToChildW, err := os.Pipe()
	if err != nil {
		h.Syslog(3, fmt.Sprintf("pam-policy-bridge: creating parent->child pipe: %v", err))
		log.Error("creating parent->child pipe", zap.Error(err))
		runErr = err
		return hook.DefaultError(l)
	}
	childToParentR, childToParentW, err := os.Pipe()
	if err != nil {
		h.Syslog(3, fmt.Sprintf("pam-policy-bridge: creating child->parent pipe: %v", err))
		log.Error("creating child->parent pipe", zap.Error(err))
		runErr = closeAll(parentToChildR, parentToChildW)
		return hook.DefaultError(l)
	}

	// The parent's own ends never cross the exec boundary; FD_CLOEXEC
	// keeps them out of any *other* child this process might spawn later
	// (the policy child still receives fds 3/4 via ExtraFiles, which
	// bypasses CLOEXEC by design).
	setCloseOnExec(parentToChildW, childToParentR)

	cmd := exec.Command(childPath, append([]string{string(l)}, argv...)...)
	// fd 3: child's read end of parent->child (replies in)
	// fd 4: child's write end of child->parent (requests out)
	cmd.ExtraFiles = []*os.File{parentToChildR, childToParentW}
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", FlagsEnvVar, flags))
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		h.Syslog(3, fmt.Sprintf("pam-policy-bridge: starting policy child %q: %v", childPath, err))
		log.Error("starting policy child", zap.String("path", childPath), zap.Error(err))
		runErr = closeAll(parentToChildR, parentToChildW, childToParentR, childToParentW)
		return hook.DefaultError(l)
	}
	childPID = cmd.Process.Pid

	// The child owns these now; the parent keeps only its own ends.
	if err := closeAll(parentToChildR, childToParentW); err != nil {
		log.Warn("closing child-owned pipe ends in parent", zap.Error(err))
	}
	defer func() {
		if err := closeAll(parentToChildW, childToParentR); err != nil {
			log.Warn("closing parent's own pipe ends", zap.Error(err))
		}
	}()

	handle := withDefaultConversationHandle(h)
	dispatchResult := dispatcher.Serve(childToParentR, parentToChildW, handle, l, log)

	waitErr := cmd.Wait()
	logIfSignaled(log, childPID, waitErr)

	if dispatchResult != pamcode.Success {
		return hook.DefaultError(l)
	}
	return mapExitStatus(cmd, waitErr, l)
}

// logIfSignaled logs the signal name (via golang.org/x/sys/unix, which
// names signals stdlib's syscall package leaves as bare integers) when the
// policy child died from a signal rather than exiting normally.
func logIfSignaled(log *zap.Logger, pid int, waitErr error) {
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return
	}
	sig := unix.Signal(status.Signal())
	log.Warn("policy child terminated by signal",
		zap.Int("pid", pid), zap.String("signal", sig.String()))
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// closeAll closes every file, combining every non-nil Close error instead
// of returning only the first — a failure closing one pipe end must never
// hide a failure closing another.
func closeAll(files ...*os.File) error {
	var result *multierror.Error
	for _, f := range files {
		if err := f.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// setCloseOnExec marks each file FD_CLOEXEC so the parent's own pipe ends
// never leak into some other subprocess this process spawns later.
func setCloseOnExec(files ...*os.File) {
	for _, f := range files {
		unix.CloseOnExec(int(f.Fd()))
	}
}

func resolveChildPath(argv []string, childPathFromConfig string) string {
	for _, a := range argv {
		if path, ok := strings.CutPrefix(a, "child="); ok {
			return path
		}
	}
	if childPathFromConfig != "" {
		return childPathFromConfig
	}
	if v := os.Getenv(ChildEnvVar); v != "" {
		return v
	}
	return DefaultChildPath
}

func mapExitStatus(cmd *exec.Cmd, waitErr error, l hook.Label) pamcode.Code {
	if waitErr == nil {
		return pamcode.Code(cmd.ProcessState.ExitCode())
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return hook.DefaultError(l)
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return hook.DefaultError(l)
	}
	if status.Signaled() {
		return hook.DefaultError(l)
	}
	code := status.ExitStatus()
	if code < 0 || code > 255 {
		return hook.DefaultError(l)
	}
	return pamcode.Code(code)
}

// withDefaultConversation wraps h so that a GET_ITEM(CONV) miss falls
// back to the package-default interactive conversation callback instead
// of surfacing BAD_ITEM to the policy — spec.md's CONVERSE handler only
// ever sees "absent" as a hard failure, but a standalone CLI host (as
// opposed to a full PAM-aware application) commonly never installs one.
type withDefaultConversation struct {
	hostapi.Handle
}

func withDefaultConversationHandle(h hostapi.Handle) hostapi.Handle {
	return &withDefaultConversation{Handle: h}
}

func (w *withDefaultConversation) Converse(msgs []hostitem.Message) (pamcode.Code, []hostitem.Response, error) {
	code, _, _, err := w.Handle.GetItem(hostitem.Conv)
	if err == nil && code == pamcode.Success {
		return w.Handle.Converse(msgs)
	}
	d := conversation.Default{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr, TTYFd: int(os.Stdin.Fd())}
	return d.Converse(msgs)
}
