// Package topology answers read-only questions about live kernel state:
// which bridges, namespaces and addresses currently exist. The lifecycle
// components use it for idempotency checks before mutating.
//
// Nothing here is ever cached: state may still change between a check and
// the following mutation, and the tool accepts that best-effort,
// non-transactional idempotency window. Callers must not hold results
// across mutations.
package topology

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"grimm.is/vpcctl/internal/names"
	"grimm.is/vpcctl/internal/netops"
)

// Inspector queries live kernel state. It never mutates.
type Inspector struct {
	nl netops.Netlinker
	ns netops.NamespaceManager
}

// NewInspector returns an Inspector over the given kernel access layer.
func NewInspector(nl netops.Netlinker, ns netops.NamespaceManager) *Inspector {
	return &Inspector{nl: nl, ns: ns}
}

// BridgeExists reports whether a link with the given name exists.
func (i *Inspector) BridgeExists(name string) (bool, error) {
	_, err := i.nl.LinkByName(name)
	if err != nil {
		if netops.IsLinkNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query link %s: %w", name, err)
	}
	return true, nil
}

// NamespaceExists reports whether the named network namespace exists.
func (i *Inspector) NamespaceExists(name string) (bool, error) {
	return i.ns.Exists(name)
}

// AddressPresent reports whether the interface already carries the address,
// given in CIDR form. A missing interface simply means the address is not
// present.
func (i *Inspector) AddressPresent(iface, cidr string) (bool, error) {
	link, err := i.nl.LinkByName(iface)
	if err != nil {
		if netops.IsLinkNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query link %s: %w", iface, err)
	}

	want, err := i.nl.ParseAddr(cidr)
	if err != nil {
		return false, fmt.Errorf("failed to parse address %q: %w", cidr, err)
	}

	addrs, err := i.nl.AddrList(link, unix.AF_INET)
	if err != nil {
		return false, fmt.Errorf("failed to list addresses on %s: %w", iface, err)
	}
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		if a.IP.Equal(want.IP) && a.Mask.String() == want.Mask.String() {
			return true, nil
		}
	}
	return false, nil
}

// NamespacesWithPrefix returns, sorted, the namespaces whose name starts
// with prefix. This is how a VPC's subnets are enumerated: by naming
// convention, since no index is persisted anywhere.
func (i *Inspector) NamespacesWithPrefix(prefix string) ([]string, error) {
	all, err := i.ns.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range all {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Bridges returns, sorted, the VPC names derived from every bridge device
// following the naming convention.
func (i *Inspector) Bridges() ([]string, error) {
	links, err := i.nl.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	var out []string
	for _, l := range links {
		if l.Type() != "bridge" {
			continue
		}
		if vpc, ok := names.VPCFromBridge(l.Attrs().Name); ok {
			out = append(out, vpc)
		}
	}
	sort.Strings(out)
	return out, nil
}
