// Package hook identifies which of the six PAM entry points is being
// served and carries the fixed label -> default-error-code table.
//
// A Hook's string label is created at hook entry and consumed by the
// dispatcher; it is never persisted past a single invocation.
package hook

import "github.com/aras-services/pam-policy-bridge/internal/pamcode"

// Label is one of the six fixed hook names the host framework invokes.
type Label string

const (
	Authenticate Label = "authenticate"
	SetCred      Label = "setcred"
	AcctMgmt     Label = "acct_mgmt"
	OpenSession  Label = "open_session"
	CloseSession Label = "close_session"
	ChAuthTok    Label = "chauthtok"
)

// defaultErr is the fixed label -> default-error-code table from spec §3.
var defaultErr = map[Label]pamcode.Code{
	Authenticate: pamcode.AuthErr,
	SetCred:      pamcode.CredErr,
	AcctMgmt:     pamcode.AuthErr,
	OpenSession:  pamcode.SessionErr,
	CloseSession: pamcode.SessionErr,
	ChAuthTok:    pamcode.AuthtokErr,
}

// DefaultError returns the hook's default error code. Unknown labels
// return ABORT, per spec.
func DefaultError(l Label) pamcode.Code {
	if code, ok := defaultErr[l]; ok {
		return code
	}
	return pamcode.Abort
}

// Known reports whether l is one of the six recognized hook labels.
func Known(l Label) bool {
	_, ok := defaultErr[l]
	return ok
}

// All enumerates the six hook labels in the fixed order spec.md lists
// them, for use by anything that needs a stable iteration (tests, the
// cgo export list).
func All() []Label {
	return []Label{Authenticate, SetCred, AcctMgmt, OpenSession, CloseSession, ChAuthTok}
}
