// Package vpc manages the lifecycle of a VPC: one bridge device plus the
// three isolation rules that keep its traffic on the bridge. A VPC exists
// exactly when its derived bridge exists; there is no other record.
package vpc

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/ipam"
	"grimm.is/vpcctl/internal/logging"
	"grimm.is/vpcctl/internal/names"
	"grimm.is/vpcctl/internal/netops"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

// Lifecycle creates and deletes VPCs.
type Lifecycle struct {
	log  *logging.Logger
	nl   netops.Netlinker
	ns   netops.NamespaceManager
	sys  netops.SystemController
	fw   nftctl.RuleManager
	topo *topology.Inspector
}

// NewLifecycle wires a Lifecycle from its dependencies.
func NewLifecycle(nl netops.Netlinker, ns netops.NamespaceManager, sys netops.SystemController, fw nftctl.RuleManager, topo *topology.Inspector) *Lifecycle {
	return &Lifecycle{
		log:  logging.WithComponent("vpc"),
		nl:   nl,
		ns:   ns,
		sys:  sys,
		fw:   fw,
		topo: topo,
	}
}

// Create builds the VPC bridge and its isolation rules. Creating a VPC
// whose bridge already exists is a warning-level no-op. On a mid-sequence
// failure the bridge is torn down again; isolation rules that were already
// inserted are left in place and reported through the PartialFailure.
func (l *Lifecycle) Create(name, cidr string) error {
	if err := names.Validate(name, ""); err != nil {
		return err
	}
	// The bridge itself carries no address, but a VPC with an unusable
	// block would only fail later at subnet creation. Reject it up front.
	if _, err := ipam.New(cidr); err != nil {
		return err
	}

	bridge := names.Bridge(name)
	exists, err := l.topo.BridgeExists(bridge)
	if err != nil {
		return err
	}
	if exists {
		l.log.Warn("bridge already exists, nothing to do", "vpc", name, "bridge", bridge)
		return nil
	}

	l.log.Info("creating vpc", "vpc", name, "cidr", cidr, "bridge", bridge)

	var steps []fault.Step
	fail := func(stepName string, cause error) error {
		steps = append(steps, fault.Step{Name: stepName, Err: cause})
		pf := &fault.PartialFailure{Op: "create-vpc", Steps: steps, Cause: cause}

		link, lookErr := l.nl.LinkByName(bridge)
		if lookErr != nil {
			pf.Cleanup = append(pf.Cleanup, fault.Step{Name: "locate bridge for rollback", Err: lookErr})
			return pf
		}
		if downErr := l.nl.LinkSetDown(link); downErr != nil {
			pf.Cleanup = append(pf.Cleanup, fault.Step{Name: "bridge down", Err: downErr})
		} else {
			pf.Cleanup = append(pf.Cleanup, fault.Step{Name: "bridge down"})
		}
		if delErr := l.nl.LinkDel(link); delErr != nil {
			pf.Cleanup = append(pf.Cleanup, fault.Step{Name: "delete bridge", Err: delErr})
		} else {
			pf.Cleanup = append(pf.Cleanup, fault.Step{Name: "delete bridge"})
		}
		return pf
	}
	ok := func(stepName string) {
		steps = append(steps, fault.Step{Name: stepName})
	}

	if err := l.nl.LinkAdd(&netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: bridge}}); err != nil {
		return fmt.Errorf("%w: create bridge %s: %v", fault.ErrKernelCommand, bridge, err)
	}
	ok("create bridge")

	link, err := l.nl.LinkByName(bridge)
	if err != nil {
		return fail("locate bridge", err)
	}
	if err := l.nl.LinkSetUp(link); err != nil {
		return fail("bridge up", err)
	}
	ok("bridge up")

	if err := l.ensureForwarding(bridge); err != nil {
		return fail("enable forwarding", err)
	}
	ok("enable forwarding")

	if err := l.fw.EnsureBaseTable(); err != nil {
		return fail("ensure filter table", err)
	}
	if err := l.fw.AddVPCIsolation(bridge); err != nil {
		return fail("isolation rules", err)
	}
	ok("isolation rules")

	l.log.Info("vpc created", "vpc", name, "bridge", bridge)
	return nil
}

// ensureForwarding turns on global IPv4 forwarding if it is off, and
// enables forwarding on the bridge interface.
func (l *Lifecycle) ensureForwarding(bridge string) error {
	val, err := l.sys.ReadSysctl(netops.SysctlIPForward)
	if err != nil {
		return fmt.Errorf("failed to read ip_forward: %w", err)
	}
	if val != "1" {
		l.log.Warn("host IP forwarding is off, enabling it")
		if err := l.sys.WriteSysctl(netops.SysctlIPForward, "1"); err != nil {
			return fmt.Errorf("failed to enable ip_forward: %w", err)
		}
	}
	if err := l.sys.WriteSysctl(netops.SysctlForwarding(bridge), "1"); err != nil {
		return fmt.Errorf("failed to enable forwarding on %s: %w", bridge, err)
	}
	return nil
}

// Delete tears a VPC down, best-effort at every step. Subnet namespaces
// are deleted directly, which atomically removes their interfaces and
// namespace-local rules but NOT their NAT, forward-accept or bridge
// address state; the per-subnet CIDR and internet interface needed for
// that cleanup are not retained anywhere. Anything already absent is
// skipped silently.
func (l *Lifecycle) Delete(name string) error {
	if err := names.Validate(name, ""); err != nil {
		return err
	}
	bridge := names.Bridge(name)
	l.log.Info("deleting vpc", "vpc", name, "bridge", bridge)

	subnets, err := l.topo.NamespacesWithPrefix(names.NamespacePrefix(name))
	if err != nil {
		l.log.Error("failed to enumerate subnet namespaces, continuing", "vpc", name, "error", err)
	}
	for _, ns := range subnets {
		l.log.Warn("deleting subnet namespace directly; its NAT, forwarding and gateway-address state may be orphaned",
			"netns", ns)
		if err := l.ns.Delete(ns); err != nil {
			l.log.Error("failed to delete namespace, continuing", "netns", ns, "error", err)
		}
	}

	if err := l.fw.RemoveVPCIsolation(bridge); err != nil {
		l.log.Error("failed to remove isolation rules, continuing", "bridge", bridge, "error", err)
	}
	if err := l.fw.RemovePeeringsFor(bridge); err != nil {
		l.log.Error("failed to remove peering rules, continuing", "bridge", bridge, "error", err)
	}

	link, err := l.nl.LinkByName(bridge)
	if err != nil {
		if netops.IsLinkNotFound(err) {
			l.log.Warn("bridge already absent", "bridge", bridge)
			return nil
		}
		return fmt.Errorf("%w: query bridge %s: %v", fault.ErrKernelCommand, bridge, err)
	}
	if err := l.nl.LinkSetDown(link); err != nil {
		l.log.Error("failed to bring bridge down, continuing", "bridge", bridge, "error", err)
	}
	if err := l.nl.LinkDel(link); err != nil {
		return fmt.Errorf("%w: delete bridge %s: %v", fault.ErrKernelCommand, bridge, err)
	}

	l.log.Info("vpc deleted", "vpc", name)
	return nil
}
