// Package names derives the deterministic kernel object names for VPCs and
// subnets. Every name is recomputed from the VPC/subnet pair on each call;
// nothing is ever stored. Two distinct pairs that happen to derive the same
// string are not guarded against beyond the length check here.
package names

import (
	"fmt"
	"strings"

	"grimm.is/vpcctl/internal/fault"
)

// ifNameMax is IFNAMSIZ-1: the longest interface name the kernel accepts.
const ifNameMax = 15

const (
	bridgePrefix    = "br-"
	namespacePrefix = "ns-"
	vethPrefix      = "veth-"
	vethNSSuffix    = "-ns"
	vethBrSuffix    = "-br"
)

// Bridge returns the bridge device name for a VPC.
func Bridge(vpc string) string {
	return bridgePrefix + vpc
}

// VPCFromBridge inverts Bridge. The second return is false when the device
// name does not follow the convention.
func VPCFromBridge(bridge string) (string, bool) {
	if !strings.HasPrefix(bridge, bridgePrefix) || len(bridge) == len(bridgePrefix) {
		return "", false
	}
	return strings.TrimPrefix(bridge, bridgePrefix), true
}

// Namespace returns the network namespace name for a subnet.
func Namespace(vpc, subnet string) string {
	return namespacePrefix + vpc + "-" + subnet
}

// NamespacePrefix returns the prefix shared by every namespace of a VPC,
// used to enumerate its subnets since no index is persisted.
func NamespacePrefix(vpc string) string {
	return namespacePrefix + vpc + "-"
}

// VethPair returns the two veth endpoint names for a subnet: the endpoint
// that is moved into the namespace and the endpoint attached to the bridge.
func VethPair(subnet string) (nsSide, bridgeSide string) {
	return vethPrefix + subnet + vethNSSuffix, vethPrefix + subnet + vethBrSuffix
}

// Validate checks that every derived interface name for the pair fits the
// kernel's IFNAMSIZ limit. Without this, link creation fails late with an
// opaque numeric error.
func Validate(vpc, subnet string) error {
	if vpc == "" {
		return fmt.Errorf("%w: empty vpc name", fault.ErrInvalidName)
	}
	if strings.ContainsAny(vpc, " /\t") {
		return fmt.Errorf("%w: vpc name %q contains forbidden characters", fault.ErrInvalidName, vpc)
	}
	if len(Bridge(vpc)) > ifNameMax {
		return fmt.Errorf("%w: bridge name %q exceeds %d characters", fault.ErrInvalidName, Bridge(vpc), ifNameMax)
	}
	if subnet == "" {
		return nil
	}
	if strings.ContainsAny(subnet, " /\t") {
		return fmt.Errorf("%w: subnet name %q contains forbidden characters", fault.ErrInvalidName, subnet)
	}
	nsSide, brSide := VethPair(subnet)
	if len(nsSide) > ifNameMax || len(brSide) > ifNameMax {
		return fmt.Errorf("%w: veth name for subnet %q exceeds %d characters", fault.ErrInvalidName, subnet, ifNameMax)
	}
	return nil
}
