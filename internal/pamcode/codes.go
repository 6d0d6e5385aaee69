// Package pamcode defines the host return-code constants every hook must
// draw its result from, independent of any particular host binding.
// Numeric values follow the standard PAM result enumeration.
package pamcode

import "strconv"

// Code is a host (PAM) return code: what a hook ultimately hands back to
// the framework that invoked it.
type Code int

const (
	Success             Code = 0
	OpenErr             Code = 1
	SymbolErr           Code = 2
	ServiceErr          Code = 3
	SystemErr           Code = 4
	BufErr              Code = 5
	PermDenied          Code = 6
	AuthErr             Code = 7
	CredInsufficient    Code = 8
	AuthinfoUnavail     Code = 9
	UserUnknown         Code = 10
	MaxTries            Code = 11
	NewAuthtokReqd      Code = 12
	AcctExpired         Code = 13
	SessionErr          Code = 14
	CredUnavail         Code = 15
	CredExpired         Code = 16
	CredErr             Code = 17
	NoModuleData        Code = 18
	ConvErr             Code = 19
	AuthtokErr          Code = 20
	AuthtokRecoveryErr  Code = 21
	AuthtokLockBusy     Code = 22
	AuthtokDisableAging Code = 23
	TryAgain            Code = 24
	Ignore              Code = 25
	Abort               Code = 26
	AuthtokExpired      Code = 27
	ModuleUnknown       Code = 28
	BadItem             Code = 29
	ConvAgain           Code = 30
	Incomplete          Code = 31
)

func (c Code) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case AuthErr:
		return "AUTH_ERR"
	case CredErr:
		return "CRED_ERR"
	case SessionErr:
		return "SESSION_ERR"
	case AuthtokErr:
		return "AUTHTOK_ERR"
	case Abort:
		return "ABORT"
	case ConvErr:
		return "CONV_ERR"
	case BufErr:
		return "BUF_ERR"
	default:
		return "CODE_" + strconv.Itoa(int(c))
	}
}
