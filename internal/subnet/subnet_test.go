package subnet

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/netops"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

type harness struct {
	nl *netops.MockNetlinker
	ns *netops.MockNamespaceManager
	fw *nftctl.MockRuleManager
	lc *Lifecycle

	bridge *netlink.Bridge
	nsVeth *netlink.Veth
	brVeth *netlink.Veth
	lo     *netlink.Device
}

func newHarness() *harness {
	h := &harness{
		nl:     new(netops.MockNetlinker),
		ns:     new(netops.MockNamespaceManager),
		fw:     new(nftctl.MockRuleManager),
		bridge: &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: "br-alpha"}},
		nsVeth: &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "veth-web-ns"}},
		brVeth: &netlink.Veth{LinkAttrs: netlink.LinkAttrs{Name: "veth-web-br"}},
		lo:     &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "lo"}},
	}
	h.lc = NewLifecycle(h.nl, h.ns, h.fw, topology.NewInspector(h.nl, h.ns))
	return h
}

// expectCreate scripts the full happy path for alpha/web 10.0.1.0/24 up to
// but not including the firewall and NAT steps.
func (h *harness) expectCreate(t *testing.T) {
	t.Helper()
	gw, err := netlink.ParseAddr("10.0.1.1/24")
	require.NoError(t, err)
	host, err := netlink.ParseAddr("10.0.1.2/24")
	require.NoError(t, err)

	h.nl.On("LinkByName", "br-alpha").Return(h.bridge, nil)
	h.ns.On("Exists", "ns-alpha-web").Return(false, nil).Once()
	h.ns.On("Create", "ns-alpha-web").Return(nil).Once()
	h.nl.On("LinkAdd", mock.MatchedBy(func(l netlink.Link) bool {
		v, ok := l.(*netlink.Veth)
		return ok && v.Name == "veth-web-br" && v.PeerName == "veth-web-ns"
	})).Return(nil).Once()
	h.nl.On("LinkByName", "veth-web-ns").Return(h.nsVeth, nil)
	h.nl.On("LinkSetNsName", h.nsVeth, "ns-alpha-web").Return(nil).Once()
	h.nl.On("LinkByName", "veth-web-br").Return(h.brVeth, nil)
	h.nl.On("LinkSetMaster", h.brVeth, h.bridge).Return(nil).Once()
	h.nl.On("LinkSetUp", h.brVeth).Return(nil).Once()

	h.nl.On("ParseAddr", "10.0.1.1/24").Return(gw, nil)
	h.nl.On("AddrList", h.bridge, unix.AF_INET).Return([]netlink.Addr{}, nil).Once()
	h.nl.On("AddrAdd", h.bridge, gw).Return(nil).Once()

	h.ns.On("RunIn", "ns-alpha-web").Return(nil).Once()
	h.nl.On("LinkByName", "lo").Return(h.lo, nil).Once()
	h.nl.On("LinkSetUp", h.lo).Return(nil).Once()
	h.nl.On("ParseAddr", "10.0.1.2/24").Return(host, nil).Once()
	h.nl.On("AddrAdd", h.nsVeth, host).Return(nil).Once()
	h.nl.On("LinkSetUp", h.nsVeth).Return(nil).Once()
	h.nl.On("RouteAdd", mock.MatchedBy(func(r *netlink.Route) bool {
		return r.Gw.Equal(net.IPv4(10, 0, 1, 1))
	})).Return(nil).Once()
}

func TestCreatePrivate(t *testing.T) {
	h := newHarness()
	h.expectCreate(t)
	h.fw.On("SetupNamespaceDefaults", "ns-alpha-web").Return(nil).Once()

	require.NoError(t, h.lc.Create("alpha", "web", "10.0.1.0/24", false, ""))

	h.nl.AssertExpectations(t)
	h.ns.AssertExpectations(t)
	h.fw.AssertExpectations(t)
	h.fw.AssertNotCalled(t, "AddSubnetNAT", mock.Anything, mock.Anything)
}

func TestCreatePublicAddsNAT(t *testing.T) {
	h := newHarness()
	h.expectCreate(t)
	h.fw.On("SetupNamespaceDefaults", "ns-alpha-web").Return(nil).Once()
	h.fw.On("AddSubnetNAT", "10.0.1.0/24", "eth0").Return(nil).Once()

	require.NoError(t, h.lc.Create("alpha", "web", "10.0.1.0/24", true, "eth0"))
	h.fw.AssertExpectations(t)
}

func TestCreatePublicRequiresInterface(t *testing.T) {
	h := newHarness()

	err := h.lc.Create("alpha", "web", "10.0.1.0/24", true, "")
	assert.True(t, errors.Is(err, fault.ErrMissingParameter))

	// Validation fails before anything touches the kernel.
	assert.Empty(t, h.nl.Calls)
	assert.Empty(t, h.ns.Calls)
	assert.Empty(t, h.fw.Calls)
}

func TestCreateRejectsBadBlock(t *testing.T) {
	h := newHarness()

	err := h.lc.Create("alpha", "web", "10.0.1.0/31", false, "")
	assert.True(t, errors.Is(err, fault.ErrInvalidAddressBlock))
	assert.Empty(t, h.nl.Calls)
}

func TestCreateRequiresVPC(t *testing.T) {
	h := newHarness()
	h.nl.On("LinkByName", "br-alpha").Return(nil, netlink.LinkNotFoundError{}).Once()

	err := h.lc.Create("alpha", "web", "10.0.1.0/24", false, "")
	assert.True(t, errors.Is(err, fault.ErrNotFound))
	assert.Empty(t, h.ns.Calls)
}

func TestCreateExistingNamespaceIsNoOp(t *testing.T) {
	h := newHarness()
	h.nl.On("LinkByName", "br-alpha").Return(h.bridge, nil).Once()
	h.ns.On("Exists", "ns-alpha-web").Return(true, nil).Once()

	require.NoError(t, h.lc.Create("alpha", "web", "10.0.1.0/24", false, ""))

	// Only the two probes ran.
	assert.Len(t, h.nl.Calls, 1)
	assert.Len(t, h.ns.Calls, 1)
	assert.Empty(t, h.fw.Calls)
}

func TestCreateRollsBackOnFirewallFailure(t *testing.T) {
	h := newHarness()
	h.expectCreate(t)
	h.fw.On("SetupNamespaceDefaults", "ns-alpha-web").Return(errors.New("nft: netlink receive")).Once()

	gw, err := netlink.ParseAddr("10.0.1.1/24")
	require.NoError(t, err)
	h.nl.On("AddrDel", h.bridge, gw).Return(nil).Once()
	h.nl.On("LinkDel", h.brVeth).Return(nil).Once()
	h.ns.On("Delete", "ns-alpha-web").Return(nil).Once()

	err = h.lc.Create("alpha", "web", "10.0.1.0/24", false, "")
	require.Error(t, err)

	var pf *fault.PartialFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "create-subnet", pf.Op)

	// Rollback runs in reverse build order.
	cleanupNames := make([]string, 0, len(pf.Cleanup))
	for _, s := range pf.Cleanup {
		cleanupNames = append(cleanupNames, s.Name)
	}
	assert.Equal(t, []string{"remove gateway address", "delete veth pair", "delete namespace"}, cleanupNames)
	h.nl.AssertExpectations(t)
	h.ns.AssertExpectations(t)
}

func TestCreateRollsBackNamespaceOnVethFailure(t *testing.T) {
	h := newHarness()
	h.nl.On("LinkByName", "br-alpha").Return(h.bridge, nil).Once()
	h.ns.On("Exists", "ns-alpha-web").Return(false, nil).Once()
	h.ns.On("Create", "ns-alpha-web").Return(nil).Once()
	h.nl.On("LinkAdd", mock.Anything).Return(errors.New("file exists")).Once()
	h.ns.On("Delete", "ns-alpha-web").Return(nil).Once()

	err := h.lc.Create("alpha", "web", "10.0.1.0/24", false, "")

	var pf *fault.PartialFailure
	require.True(t, errors.As(err, &pf))
	require.Len(t, pf.Cleanup, 1)
	assert.Equal(t, "delete namespace", pf.Cleanup[0].Name)
	h.ns.AssertExpectations(t)
}

func TestDelete(t *testing.T) {
	h := newHarness()
	gw, err := netlink.ParseAddr("10.0.1.1/24")
	require.NoError(t, err)

	h.fw.On("RemoveSubnetNAT", "10.0.1.0/24", "eth0").Return(nil).Once()
	h.nl.On("LinkByName", "br-alpha").Return(h.bridge, nil).Once()
	h.nl.On("ParseAddr", "10.0.1.1/24").Return(gw, nil).Once()
	h.nl.On("AddrDel", h.bridge, gw).Return(nil).Once()
	h.nl.On("LinkByName", "veth-web-br").Return(h.brVeth, nil).Once()
	h.nl.On("LinkDel", h.brVeth).Return(nil).Once()
	h.ns.On("Exists", "ns-alpha-web").Return(true, nil).Once()
	h.ns.On("Delete", "ns-alpha-web").Return(nil).Once()

	require.NoError(t, h.lc.Delete("alpha", "web", "10.0.1.0/24", "eth0"))
	h.nl.AssertExpectations(t)
	h.ns.AssertExpectations(t)
	h.fw.AssertExpectations(t)
}

func TestDeleteWithoutCIDRSkipsAddressCleanup(t *testing.T) {
	h := newHarness()

	h.nl.On("LinkByName", "veth-web-br").Return(h.brVeth, nil).Once()
	h.nl.On("LinkDel", h.brVeth).Return(nil).Once()
	h.ns.On("Exists", "ns-alpha-web").Return(true, nil).Once()
	h.ns.On("Delete", "ns-alpha-web").Return(nil).Once()

	require.NoError(t, h.lc.Delete("alpha", "web", "", ""))

	assert.Empty(t, h.fw.Calls)
	h.nl.AssertNotCalled(t, "AddrDel", mock.Anything, mock.Anything)
}

func TestDeleteEverythingAlreadyGone(t *testing.T) {
	h := newHarness()

	h.fw.On("RemoveSubnetNAT", "10.0.1.0/24", "eth0").Return(nil).Once()
	h.nl.On("LinkByName", "br-alpha").Return(nil, netlink.LinkNotFoundError{}).Once()
	h.nl.On("LinkByName", "veth-web-br").Return(nil, netlink.LinkNotFoundError{}).Once()
	h.ns.On("Exists", "ns-alpha-web").Return(false, nil).Once()

	require.NoError(t, h.lc.Delete("alpha", "web", "10.0.1.0/24", "eth0"))
	h.ns.AssertNotCalled(t, "Delete", mock.Anything)
}
