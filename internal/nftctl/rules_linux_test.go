//go:build linux
// +build linux

package nftctl

import (
	"net"
	"testing"

	"github.com/google/nftables/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIfnameBytes(t *testing.T) {
	b := ifnameBytes("br-alpha")
	require.Len(t, b, 16)
	assert.Equal(t, "br-alpha", string(b[:8]))
	assert.Equal(t, byte(0), b[8])
}

func TestMatchNetMasksNonHostPrefixes(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("10.0.1.0/24")
	require.NoError(t, err)

	exprs := matchNet(ipNet, true)
	require.Len(t, exprs, 3)

	payload, ok := exprs[0].(*expr.Payload)
	require.True(t, ok)
	assert.Equal(t, uint32(ipv4SrcOffset), payload.Offset)

	_, ok = exprs[1].(*expr.Bitwise)
	assert.True(t, ok)

	cmp, ok := exprs[2].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{10, 0, 1, 0}, cmp.Data)
}

func TestMatchNetHostAddressSkipsBitwise(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("10.0.1.5/32")
	require.NoError(t, err)

	exprs := matchNet(ipNet, false)
	require.Len(t, exprs, 2)

	payload, ok := exprs[0].(*expr.Payload)
	require.True(t, ok)
	assert.Equal(t, uint32(ipv4DstOffset), payload.Offset)
}

func TestMatchTransportDport(t *testing.T) {
	exprs, err := matchTransportDport("tcp", 22)
	require.NoError(t, err)
	require.Len(t, exprs, 4)

	cmpProto, ok := exprs[1].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{6}, cmpProto.Data)

	cmpPort, ok := exprs[3].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 22}, cmpPort.Data)

	exprs, err = matchTransportDport("udp", 53)
	require.NoError(t, err)
	cmpProto = exprs[1].(*expr.Cmp)
	assert.Equal(t, []byte{17}, cmpProto.Data)

	_, err = matchTransportDport("sctp", 22)
	assert.Error(t, err)
}

func TestPeerEndpoints(t *testing.T) {
	from, to, ok := peerEndpoints("vpcctl:peer:br-alpha>br-beta")
	require.True(t, ok)
	assert.Equal(t, "br-alpha", from)
	assert.Equal(t, "br-beta", to)

	_, _, ok = peerEndpoints("vpcctl:vpc:br-alpha:intra")
	assert.False(t, ok)

	_, _, ok = peerEndpoints("vpcctl:peer:broken")
	assert.False(t, ok)
}
