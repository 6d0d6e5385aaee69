// Command pambridge is the PAM-loadable shared object: it exports the
// six pam_sm_* C symbols a host authentication framework calls directly
// (spec.md §6), and for each one spawns the policy child via
// internal/orchestrator. Built with `go build -buildmode=c-shared`.
package main

/*
#include <security/pam_modules.h>
*/
import "C"

import (
	"os"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/aras-services/pam-policy-bridge/config"
	"github.com/aras-services/pam-policy-bridge/internal/audit/ingest"
	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/orchestrator"
	"github.com/aras-services/pam-policy-bridge/internal/pamhost"
)

// cfg and log are loaded once and reused across every pam_sm_* call
// this process image serves — a PAM module .so is loaded fresh into
// each new authenticating process, so there is no cross-invocation
// state being kept here beyond config/logger construction cost.
var (
	cfg *config.Config
	log *zap.Logger
)

func init() {
	loaded, err := config.Load(os.Getenv("PAMBRIDGE_CONFIG"))
	if err != nil {
		loaded = &config.Config{}
	}
	cfg = loaded

	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	log = l
}

func runHook(pamh unsafe.Pointer, l hook.Label, flags C.int, argc C.int, argv **C.char) C.int {
	handle := pamhost.New(pamh)
	args := cArgsToSlice(argc, argv)
	emit := ingest.NewEmitter(cfg.Bridge.AuditSocket, auditTimeout())

	code := orchestrator.Run(handle, l, int(flags), args, cfg.Bridge.ChildPath, emit, log)
	return C.int(code)
}

func auditTimeout() time.Duration {
	if cfg.Bridge.AuditSocketTimeout > 0 {
		return cfg.Bridge.AuditSocketTimeout
	}
	return 50 * time.Millisecond
}

func cArgsToSlice(argc C.int, argv **C.char) []string {
	n := int(argc)
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	slice := unsafe.Slice(argv, n)
	for i, a := range slice {
		out[i] = C.GoString(a)
	}
	return out
}

//export pam_sm_authenticate
func pam_sm_authenticate(pamh unsafe.Pointer, flags, argc C.int, argv **C.char) C.int {
	return runHook(pamh, hook.Authenticate, flags, argc, argv)
}

//export pam_sm_setcred
func pam_sm_setcred(pamh unsafe.Pointer, flags, argc C.int, argv **C.char) C.int {
	return runHook(pamh, hook.SetCred, flags, argc, argv)
}

//export pam_sm_acct_mgmt
func pam_sm_acct_mgmt(pamh unsafe.Pointer, flags, argc C.int, argv **C.char) C.int {
	return runHook(pamh, hook.AcctMgmt, flags, argc, argv)
}

//export pam_sm_open_session
func pam_sm_open_session(pamh unsafe.Pointer, flags, argc C.int, argv **C.char) C.int {
	return runHook(pamh, hook.OpenSession, flags, argc, argv)
}

//export pam_sm_close_session
func pam_sm_close_session(pamh unsafe.Pointer, flags, argc C.int, argv **C.char) C.int {
	return runHook(pamh, hook.CloseSession, flags, argc, argv)
}

//export pam_sm_chauthtok
func pam_sm_chauthtok(pamh unsafe.Pointer, flags, argc C.int, argv **C.char) C.int {
	return runHook(pamh, hook.ChAuthTok, flags, argc, argv)
}

func main() {}
