package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/vpcctl/internal/netops"
)

func TestBridgeExists(t *testing.T) {
	nl := new(netops.MockNetlinker)
	insp := NewInspector(nl, nil)

	bridge := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br-alpha"}}
	nl.On("LinkByName", "br-alpha").Return(bridge, nil).Once()
	nl.On("LinkByName", "br-ghost").Return(nil, netlink.LinkNotFoundError{}).Once()

	ok, err := insp.BridgeExists("br-alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = insp.BridgeExists("br-ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	nl.AssertExpectations(t)
}

func TestAddressPresent(t *testing.T) {
	nl := new(netops.MockNetlinker)
	insp := NewInspector(nl, nil)

	bridge := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br-alpha"}}
	gw, err := netlink.ParseAddr("10.0.1.1/24")
	require.NoError(t, err)

	nl.On("LinkByName", "br-alpha").Return(bridge, nil)
	nl.On("ParseAddr", "10.0.1.1/24").Return(gw, nil)
	nl.On("AddrList", bridge, unix.AF_INET).Return([]netlink.Addr{*gw}, nil).Once()

	ok, err := insp.AddressPresent("br-alpha", "10.0.1.1/24")
	require.NoError(t, err)
	assert.True(t, ok)

	other, err := netlink.ParseAddr("10.0.2.1/24")
	require.NoError(t, err)
	nl.On("AddrList", bridge, unix.AF_INET).Return([]netlink.Addr{*other}, nil).Once()

	ok, err = insp.AddressPresent("br-alpha", "10.0.1.1/24")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddressPresentMissingInterface(t *testing.T) {
	nl := new(netops.MockNetlinker)
	insp := NewInspector(nl, nil)

	nl.On("LinkByName", "br-ghost").Return(nil, netlink.LinkNotFoundError{}).Once()

	ok, err := insp.AddressPresent("br-ghost", "10.0.1.1/24")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamespacesWithPrefix(t *testing.T) {
	ns := new(netops.MockNamespaceManager)
	insp := NewInspector(nil, ns)

	ns.On("List").Return([]string{"ns-alpha-web", "ns-beta-db", "ns-alpha-db", "unrelated"}, nil).Once()

	got, err := insp.NamespacesWithPrefix("ns-alpha-")
	require.NoError(t, err)
	assert.Equal(t, []string{"ns-alpha-db", "ns-alpha-web"}, got)
}

func TestBridges(t *testing.T) {
	nl := new(netops.MockNetlinker)
	insp := NewInspector(nl, nil)

	links := []netlink.Link{
		&netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br-beta"}},
		&netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br-alpha"}},
		&netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "docker0"}},
		&netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth0"}},
	}
	nl.On("LinkList").Return(links, nil).Once()

	got, err := insp.Bridges()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}
