// Command pambridgechild is the re-exec target internal/orchestrator
// spawns for every hook invocation (spec.md §4.4): it inherits fd 3 (the
// parent->child pipe, read end) and fd 4 (the child->parent pipe, write
// end), builds the RPC client over them, loads the policy module named
// in its own argv, invokes the hook export, and exits with the policy's
// result as its process exit code — which is exactly what
// internal/orchestrator.mapExitStatus reads back.
package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aras-services/pam-policy-bridge/internal/childhost"
	"github.com/aras-services/pam-policy-bridge/internal/hook"
	"github.com/aras-services/pam-policy-bridge/internal/interpreter/wasmengine"
	"github.com/aras-services/pam-policy-bridge/internal/rpcclient"
)

const (
	parentToChildFd = 3 // this process's read end: parent's replies in
	childToParentFd = 4 // this process's write end: requests out

	flagsEnvVar = "PAMBRIDGE_FLAGS"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		// No hook label at all: nothing this process can do but fail
		// closed, matching the hook's own "unknown label" default.
		return int(hook.DefaultError(""))
	}
	l := hook.Label(os.Args[1])
	argv := os.Args[2:]

	log := newChildLogger()
	defer log.Sync()

	in := os.NewFile(parentToChildFd, "pambridge-in")
	out := os.NewFile(childToParentFd, "pambridge-out")
	if in == nil || out == nil {
		log.Error("inherited pipe descriptors missing")
		return int(hook.DefaultError(l))
	}

	client := rpcclient.New(out, in)

	// The pipes are wired up now, so every log line from here on also
	// reaches syslog through the parent; stderr keeps receiving them too,
	// and was the only destination before a client existed to carry them.
	log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, rpcclient.NewSyslogCore(client, zapcore.InfoLevel))
	}))

	eng, err := wasmengine.New(context.Background())
	if err != nil {
		log.Error("initializing wasm engine", zap.Error(err))
		return int(hook.DefaultError(l))
	}
	defer eng.Close(context.Background())

	policyModule := resolvePolicyModule(argv)
	if policyModule == "" {
		log.Error("no policy module named in hook arguments", zap.Strings("argv", argv))
		return int(hook.DefaultError(l))
	}

	return childhost.Run(context.Background(), eng, client, policyModule, l, flagsFromEnv(), argv, log)
}

// resolvePolicyModule reads the `module=<path>` argv convention this
// repository adds on top of spec.md's "discoverable from the hook's
// configuration arguments" requirement.
func resolvePolicyModule(argv []string) string {
	for _, a := range argv {
		if path, ok := strings.CutPrefix(a, "module="); ok {
			return path
		}
	}
	return ""
}

func flagsFromEnv() int {
	v, err := strconv.Atoi(os.Getenv(flagsEnvVar))
	if err != nil {
		return 0
	}
	return v
}

func newChildLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
