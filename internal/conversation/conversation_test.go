package conversation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
)

func TestConverseEchoOnReadsLine(t *testing.T) {
	d := Default{
		In:     strings.NewReader("ken\n"),
		Out:    &bytes.Buffer{},
		ErrOut: &bytes.Buffer{},
	}
	code, resps, err := d.Converse([]hostitem.Message{{Style: hostitem.PromptEchoOn, Text: "login: "}})
	require.NoError(t, err)
	require.Equal(t, pamcode.Success, code)
	require.Equal(t, "ken", string(resps[0].Text))
}

func TestConverseErrorMsgAndTextInfoHaveNoResponse(t *testing.T) {
	var out, errOut bytes.Buffer
	d := Default{In: strings.NewReader(""), Out: &out, ErrOut: &errOut}
	code, resps, err := d.Converse([]hostitem.Message{
		{Style: hostitem.ErrorMsg, Text: "bad attempt"},
		{Style: hostitem.TextInfo, Text: "welcome"},
	})
	require.NoError(t, err)
	require.Equal(t, pamcode.Success, code)
	require.Len(t, resps, 2)
	require.False(t, resps[0].HasText)
	require.False(t, resps[1].HasText)
	require.Contains(t, errOut.String(), "bad attempt")
	require.Contains(t, out.String(), "welcome")
}

func TestConverseUnknownStyleFailsWholeExchange(t *testing.T) {
	d := Default{In: strings.NewReader(""), Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	code, resps, err := d.Converse([]hostitem.Message{{Style: hostitem.MessageStyle(99), Text: "?"}})
	require.NoError(t, err)
	require.Equal(t, pamcode.ConvErr, code)
	require.Nil(t, resps)
}

func TestConverseFailureAfterPriorResponseReturnsNoResponses(t *testing.T) {
	d := Default{In: strings.NewReader("ken\n"), Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	// first message succeeds and produces a response; the second message
	// fails the exchange, so no responses are handed back at all.
	_, resps, _ := d.Converse([]hostitem.Message{
		{Style: hostitem.PromptEchoOn, Text: "login: "},
		{Style: hostitem.MessageStyle(42), Text: "?"},
	})
	require.Nil(t, resps)
}
