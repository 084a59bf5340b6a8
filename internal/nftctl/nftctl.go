// Package nftctl owns every netfilter object this tool installs: a host
// table with forward and postrouting chains for VPC isolation, peering and
// NAT, and a per-namespace table with a default-drop input chain for subnet
// firewalls.
//
// Every rule carries a comment in its UserData of the form
// vpcctl:<kind>:<qualifier>. Rules are located for deletion exclusively by
// that comment, which is what makes delete paths idempotent against partial
// prior state: removing a rule that is not there is a no-op, not an error.
package nftctl

import (
	"strconv"
	"strings"

	"grimm.is/vpcctl/internal/brand"
)

// RuleManager is the packet-filter surface the lifecycle components drive.
type RuleManager interface {
	// EnsureBaseTable idempotently creates the host table and its forward
	// and postrouting chains.
	EnsureBaseTable() error

	// AddVPCIsolation installs the three isolation rules for a bridge at
	// the head of the forward chain so that, in evaluation order, traffic
	// staying on the bridge is accepted before the two catch-all drops.
	AddVPCIsolation(bridge string) error

	// RemoveVPCIsolation removes the three isolation rules, ignoring any
	// that are already gone.
	RemoveVPCIsolation(bridge string) error

	// AddPeering inserts one forwarding accept per direction between two
	// bridges at the head of the forward chain, ahead of every VPC's
	// catch-all drops. If the second insertion fails the first is removed.
	AddPeering(bridgeA, bridgeB string) error

	// RemovePeering removes both directions, ignoring absence.
	RemovePeering(bridgeA, bridgeB string) error

	// RemovePeeringsFor removes every peering rule referencing the bridge
	// in either direction. Used when a VPC is deleted.
	RemovePeeringsFor(bridge string) error

	// AddSubnetNAT installs a masquerade rule for the subnet block egressing
	// through iface, plus the two forward accepts (outbound, and inbound
	// restricted to established/related) inserted ahead of the VPC drops.
	AddSubnetNAT(cidr, iface string) error

	// RemoveSubnetNAT removes all three NAT-related rules, ignoring absence.
	RemoveSubnetNAT(cidr, iface string) error

	// SetupNamespaceDefaults creates, inside the namespace, an input chain
	// with a drop policy and two accepts appended in order: loopback, then
	// established/related. Custom ingress rules are appended after these.
	SetupNamespaceDefaults(ns string) error

	// AddIngressRule appends one ingress rule to the namespace input chain,
	// after the defaults and before the terminal drop policy. Reapplying a
	// policy appends duplicates; callers must not expect idempotency.
	AddIngressRule(ns string, port uint16, protocol string, accept bool) error
}

// Comment tags. The peering tag encodes direction as <from>><to> so that
// rules referencing a bridge can be found from either side.
const (
	tagVPC     = ":vpc:"
	tagPeer    = ":peer:"
	tagNAT     = ":nat:"
	tagNS      = ":ns:"
	tagIngress = ":ingress:"
)

func vpcIntraComment(bridge string) string {
	return brand.NFTTable + tagVPC + bridge + ":intra"
}

func vpcEgressDropComment(bridge string) string {
	return brand.NFTTable + tagVPC + bridge + ":egress-drop"
}

func vpcIngressDropComment(bridge string) string {
	return brand.NFTTable + tagVPC + bridge + ":ingress-drop"
}

func vpcCommentPrefix(bridge string) string {
	return brand.NFTTable + tagVPC + bridge + ":"
}

func peerComment(from, to string) string {
	return brand.NFTTable + tagPeer + from + ">" + to
}

func peerCommentPrefix() string {
	return brand.NFTTable + tagPeer
}

// peerEndpoints parses a peering comment back into its two bridge names.
func peerEndpoints(comment string) (from, to string, ok bool) {
	rest, found := strings.CutPrefix(comment, peerCommentPrefix())
	if !found {
		return "", "", false
	}
	from, to, found = strings.Cut(rest, ">")
	if !found || from == "" || to == "" {
		return "", "", false
	}
	return from, to, true
}

func natMasqComment(cidr string) string {
	return brand.NFTTable + tagNAT + cidr + ":masq"
}

func natEgressComment(cidr string) string {
	return brand.NFTTable + tagNAT + cidr + ":egress"
}

func natIngressComment(cidr string) string {
	return brand.NFTTable + tagNAT + cidr + ":ingress"
}

func nsLoopbackComment() string {
	return brand.NFTTable + tagNS + "lo-accept"
}

func nsEstablishedComment() string {
	return brand.NFTTable + tagNS + "est-accept"
}

func ingressComment(protocol string, port uint16, accept bool) string {
	action := "deny"
	if accept {
		action = "accept"
	}
	return brand.NFTTable + tagIngress + protocol + ":" + strconv.Itoa(int(port)) + ":" + action
}
