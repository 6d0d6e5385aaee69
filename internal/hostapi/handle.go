// Package hostapi narrows the host authentication framework down to the
// handful of primitives the dispatcher needs: item access, conversation,
// fail delay, syslog, and strerror. The authentication handle itself is
// strictly parent-only — nothing in this package's interface, or any of
// its implementations, is ever reachable from the child process.
package hostapi

import (
	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
)

// Handle is implemented against the real authentication handle by
// internal/pamhost (cgo, linked against libpam) and by a fake in tests.
type Handle interface {
	GetItem(itemType hostitem.Type) (pamcode.Code, *hostitem.XAuthData, []byte, error)
	SetItem(itemType hostitem.Type, val *hostitem.XAuthData, bytes []byte) (pamcode.Code, error)
	GetUser(prompt string) (pamcode.Code, string, error)
	// Converse invokes the currently installed PAM_CONV callback. A
	// missing callback is reported as (code, nil, nil) with code holding
	// the host's "no such item" retval — not a Go error, since it is a
	// normal, spec-anticipated outcome (spec.md §4.3).
	Converse(msgs []hostitem.Message) (pamcode.Code, []hostitem.Response, error)
	FailDelay(usec int) (pamcode.Code, error)
	StrError(errnum int) string
	Syslog(priority int, msg string)
}
