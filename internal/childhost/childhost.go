// Package childhost implements the policy-child side of a hook
// invocation (spec.md §4.4): given the inherited pipe pair, a policy
// module name, and a hook label, it registers the RPC host-call surface,
// loads the policy program, invokes the export matching the hook, and
// resolves the policy's result (or a trapped exception) to the process
// exit code cmd/pambridgechild reports to its parent.
package childhost

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/interpreter"
	"github.com/aras-services/pam-policy-bridge/internal/rpcclient"
)

// Run loads policyModule into engine, bound to client's RPC host calls,
// invokes the export named by l, and returns the process exit
// code: the policy's own return value on a clean invocation, or the
// hook's default error if the policy module could not be loaded, did not
// export the hook, or trapped.
//
// A pending exception is logged via the SYSLOG RPC primitive (through
// the very client the policy used) before the default error is
// returned, per spec.md §4.4 step 7 and §7.
func Run(ctx context.Context, eng interpreter.Engine, client *rpcclient.Client, policyModule string, l hook.Label, flags int, argv []string, log *zap.Logger) int {
	def := int(hook.DefaultError(l))

	prog, err := eng.Load(ctx, policyModule, client.HostCalls())
	if err != nil {
		log.Error("loading policy module", zap.String("module", policyModule), zap.Error(err))
		reportException(ctx, client, l, err, log)
		return def
	}
	defer func() {
		if cerr := prog.Close(ctx); cerr != nil {
			log.Warn("closing policy program", zap.Error(cerr))
		}
	}()

	result, err := prog.Invoke(ctx, string(l), flags, argv)
	if err != nil {
		log.Error("invoking policy hook", zap.String("hook", string(l)), zap.Error(err))
		reportException(ctx, client, l, err, log)
		return def
	}

	// A policy may return any host return code, not only the ones this
	// bridge names in internal/pamcode; only the exit-status range is
	// enforced here.
	if result < 0 || result > 255 {
		log.Warn("policy returned an out-of-range result, substituting hook default",
			zap.String("hook", string(l)), zap.Int("result", result))
		return def
	}
	return result
}

func reportException(ctx context.Context, client *rpcclient.Client, l hook.Label, err error, log *zap.Logger) {
	msg := fmt.Sprintf("pam-policy-bridge: %s: %v", l, err)
	if serr := client.Syslog(ctx, 3, msg); serr != nil {
		log.Warn("failed to report policy exception via syslog RPC", zap.Error(serr))
	}
}
