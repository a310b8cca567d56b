package natdetect

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsPrivateRFC1918(t *testing.T) {
	require.True(t, isPrivate(net.ParseIP("10.1.2.3")))
	require.True(t, isPrivate(net.ParseIP("172.16.0.1")))
	require.True(t, isPrivate(net.ParseIP("192.168.1.1")))
}

func TestIsPrivateLoopback(t *testing.T) {
	require.True(t, isPrivate(net.ParseIP("127.0.0.1")))
	require.True(t, isPrivate(net.ParseIP("::1")))
}

func TestIsPrivateGlobal(t *testing.T) {
	require.False(t, isPrivate(net.ParseIP("8.8.8.8")))
	require.False(t, isPrivate(net.ParseIP("203.0.113.5")))
}

func TestIsPrivateNilIsTreatedAsPrivate(t *testing.T) {
	require.True(t, isPrivate(nil))
}

func TestDetectorIsGlobalDefaultsFalse(t *testing.T) {
	d := New(nil, "", 0)
	require.False(t, d.IsGlobal())
}
