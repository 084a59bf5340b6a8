// Package ipam derives the gateway and host addresses a subnet uses from
// its CIDR block. Pure arithmetic, no kernel access; it runs before any
// mutation so a bad block never leaves partial state behind.
package ipam

import (
	"fmt"
	"net/netip"

	"grimm.is/vpcctl/internal/fault"
)

// Plan holds the addressing derived from a subnet CIDR: the gateway is the
// address directly after the network address, the host the one after that.
// For 10.0.1.0/24 that is 10.0.1.1 and 10.0.1.2.
type Plan struct {
	Network netip.Prefix
	Gateway netip.Addr
	Host    netip.Addr
}

// GatewayCIDR returns the gateway address with the block's prefix length,
// the form it is installed with on the bridge.
func (p Plan) GatewayCIDR() string {
	return fmt.Sprintf("%s/%d", p.Gateway, p.Network.Bits())
}

// HostCIDR returns the host address with the block's prefix length, the
// form it is installed with on the namespace-side veth endpoint.
func (p Plan) HostCIDR() string {
	return fmt.Sprintf("%s/%d", p.Host, p.Network.Bits())
}

// New validates the block and derives its plan. It fails with
// fault.ErrInvalidAddressBlock when the CIDR does not parse, is not IPv4,
// or cannot hold both addresses strictly inside the block: a /31 or /32
// leaves no room between network and broadcast.
func New(cidr string) (Plan, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %q: %v", fault.ErrInvalidAddressBlock, cidr, err)
	}
	if !prefix.Addr().Is4() {
		return Plan{}, fmt.Errorf("%w: %q: only IPv4 blocks are supported", fault.ErrInvalidAddressBlock, cidr)
	}
	prefix = prefix.Masked()
	if prefix.Bits() > 30 {
		return Plan{}, fmt.Errorf("%w: %q: block too small for a gateway and a host address", fault.ErrInvalidAddressBlock, cidr)
	}

	gateway := prefix.Addr().Next()
	host := gateway.Next()
	// With bits <= 30 both addresses are inside the block and below the
	// broadcast address, but keep the containment check as a guard.
	if !prefix.Contains(gateway) || !prefix.Contains(host) {
		return Plan{}, fmt.Errorf("%w: %q: derived addresses fall outside the block", fault.ErrInvalidAddressBlock, cidr)
	}

	return Plan{
		Network: prefix,
		Gateway: gateway,
		Host:    host,
	}, nil
}
