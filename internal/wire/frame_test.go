package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 12345, -98765, 1 << 20, -(1 << 20)} {
		var buf bytes.Buffer
		require.NoError(t, WriteInt(&buf, n))
		got, err := ReadInt(&buf)
		require.NoError(t, err)
		require.Equal(t, n, got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "hunter2", "with\x00null", "denis"} {
		var buf bytes.Buffer
		require.NoError(t, WriteInt(&buf, len(s)))
		require.NoError(t, WriteString(&buf, []byte(s)))

		n, err := ReadInt(&buf)
		require.NoError(t, err)
		require.Equal(t, len(s), n)

		got, err := ReadString(&buf, n)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestReadBytesEmptyReaderIsEOF(t *testing.T) {
	var buf bytes.Buffer
	_, err := ReadBytes(&buf, 4)
	require.Equal(t, ReadEOF, err)
}

func TestReadBytesShortReadIsReadErr(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2})
	_, err := ReadBytes(buf, 4)
	require.Equal(t, ReadErr, err)
}

func TestReadBytesZeroLength(t *testing.T) {
	var buf bytes.Buffer
	got, err := ReadBytes(&buf, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}
