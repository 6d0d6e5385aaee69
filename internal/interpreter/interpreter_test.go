package interpreter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicyErrorWrapsCause(t *testing.T) {
	cause := errors.New("wasm trap: out of bounds memory access")
	err := &PolicyError{HookFn: "authenticate", Text: "guest trapped", Cause: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "authenticate")
	require.Contains(t, err.Error(), "guest trapped")
}

func TestPolicyErrorWithoutCause(t *testing.T) {
	err := &PolicyError{HookFn: "acct_mgmt", Text: "missing export"}
	require.Nil(t, err.Unwrap())
	require.Contains(t, err.Error(), "acct_mgmt")
	require.Contains(t, err.Error(), "missing export")
}
