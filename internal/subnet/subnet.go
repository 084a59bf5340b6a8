// Package subnet manages subnet lifecycles: one network namespace wired to
// the VPC bridge through a veth pair, with gateway and host addressing
// derived from the subnet's CIDR block.
//
// Creation walks an explicit sequence of states and rolls back everything
// built so far when a step fails, reporting the attempt through a
// fault.PartialFailure. One known gap: the gateway-address guard only
// detects the exact same address already present on the bridge, so two
// subnets created with overlapping but non-identical blocks are not caught
// here and will misroute.
package subnet

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/ipam"
	"grimm.is/vpcctl/internal/logging"
	"grimm.is/vpcctl/internal/names"
	"grimm.is/vpcctl/internal/netops"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

// Lifecycle creates and deletes subnets.
type Lifecycle struct {
	log  *logging.Logger
	nl   netops.Netlinker
	ns   netops.NamespaceManager
	fw   nftctl.RuleManager
	topo *topology.Inspector
}

// NewLifecycle wires a Lifecycle from its dependencies.
func NewLifecycle(nl netops.Netlinker, ns netops.NamespaceManager, fw nftctl.RuleManager, topo *topology.Inspector) *Lifecycle {
	return &Lifecycle{
		log:  logging.WithComponent("subnet"),
		nl:   nl,
		ns:   ns,
		fw:   fw,
		topo: topo,
	}
}

// Create builds a subnet inside an existing VPC. For a public subnet,
// internetIface names the host interface traffic is masqueraded out of and
// must be given. Creating a subnet whose namespace already exists is a
// warning-level no-op.
//
// All input validation happens before the first kernel call; after that,
// any failed step triggers a rollback of everything built so far and the
// attempt is returned as a fault.PartialFailure.
func (l *Lifecycle) Create(vpc, subnet, cidr string, public bool, internetIface string) error {
	if err := names.Validate(vpc, subnet); err != nil {
		return err
	}
	if public && internetIface == "" {
		return fmt.Errorf("%w: public subnet requires an internet interface", fault.ErrMissingParameter)
	}
	plan, err := ipam.New(cidr)
	if err != nil {
		return err
	}

	bridge := names.Bridge(vpc)
	nsName := names.Namespace(vpc, subnet)
	nsSide, bridgeSide := names.VethPair(subnet)

	bridgeUp, err := l.topo.BridgeExists(bridge)
	if err != nil {
		return err
	}
	if !bridgeUp {
		return fmt.Errorf("%w: vpc %q has no bridge, create the vpc first", fault.ErrNotFound, vpc)
	}

	nsUp, err := l.topo.NamespaceExists(nsName)
	if err != nil {
		return err
	}
	if nsUp {
		l.log.Warn("namespace already exists, nothing to do", "vpc", vpc, "subnet", subnet, "netns", nsName)
		return nil
	}

	l.log.Info("creating subnet", "vpc", vpc, "subnet", subnet, "cidr", cidr,
		"gateway", plan.GatewayCIDR(), "host", plan.HostCIDR(), "public", public)

	var steps []fault.Step
	var undos []fault.Step
	var undoFns []func() error
	fail := func(stepName string, cause error) error {
		steps = append(steps, fault.Step{Name: stepName, Err: cause})
		pf := &fault.PartialFailure{Op: "create-subnet", Steps: steps, Cause: cause}
		for i := len(undoFns) - 1; i >= 0; i-- {
			u := fault.Step{Name: undos[i].Name}
			u.Err = undoFns[i]()
			pf.Cleanup = append(pf.Cleanup, u)
		}
		return pf
	}
	ok := func(stepName string, undoName string, undoFn func() error) {
		steps = append(steps, fault.Step{Name: stepName})
		if undoFn != nil {
			undos = append(undos, fault.Step{Name: undoName})
			undoFns = append(undoFns, undoFn)
		}
	}

	if err := l.ns.Create(nsName); err != nil {
		return fail("create namespace", err)
	}
	ok("create namespace", "delete namespace", func() error { return l.ns.Delete(nsName) })

	// The pair is created in the host namespace; deleting the bridge-side
	// endpoint removes both ends, which is what rollback relies on.
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: bridgeSide},
		PeerName:  nsSide,
	}
	if err := l.nl.LinkAdd(veth); err != nil {
		return fail("create veth pair", err)
	}
	ok("create veth pair", "delete veth pair", func() error {
		link, err := l.nl.LinkByName(bridgeSide)
		if err != nil {
			return err
		}
		return l.nl.LinkDel(link)
	})

	nsLink, err := l.nl.LinkByName(nsSide)
	if err != nil {
		return fail("locate namespace-side endpoint", err)
	}
	if err := l.nl.LinkSetNsName(nsLink, nsName); err != nil {
		return fail("move endpoint into namespace", err)
	}
	steps = append(steps, fault.Step{Name: "move endpoint into namespace"})

	brLink, err := l.nl.LinkByName(bridge)
	if err != nil {
		return fail("locate bridge", err)
	}
	vethLink, err := l.nl.LinkByName(bridgeSide)
	if err != nil {
		return fail("locate bridge-side endpoint", err)
	}
	if err := l.nl.LinkSetMaster(vethLink, brLink); err != nil {
		return fail("attach endpoint to bridge", err)
	}
	if err := l.nl.LinkSetUp(vethLink); err != nil {
		return fail("bridge-side endpoint up", err)
	}
	steps = append(steps, fault.Step{Name: "attach endpoint to bridge"})

	if err := l.installGateway(bridge, brLink, plan, &steps, &undos, &undoFns, fail); err != nil {
		return err
	}

	if err := l.configureNamespace(nsName, nsSide, plan); err != nil {
		return fail("configure namespace", err)
	}
	steps = append(steps, fault.Step{Name: "configure namespace"})

	if err := l.fw.SetupNamespaceDefaults(nsName); err != nil {
		return fail("namespace firewall defaults", err)
	}
	steps = append(steps, fault.Step{Name: "namespace firewall defaults"})

	if public {
		if err := l.fw.AddSubnetNAT(plan.Network.String(), internetIface); err != nil {
			return fail("subnet NAT", err)
		}
		steps = append(steps, fault.Step{Name: "subnet NAT"})
	}

	l.log.Info("subnet created", "vpc", vpc, "subnet", subnet, "netns", nsName)
	return nil
}

// installGateway puts the gateway address on the bridge unless it is
// already there. The exact-match guard is what makes re-runs safe; it does
// not detect overlapping blocks.
func (l *Lifecycle) installGateway(bridge string, brLink netlink.Link, plan ipam.Plan,
	steps *[]fault.Step, undos *[]fault.Step, undoFns *[]func() error,
	fail func(string, error) error) error {

	present, err := l.topo.AddressPresent(bridge, plan.GatewayCIDR())
	if err != nil {
		return fail("check gateway address", err)
	}
	if present {
		l.log.Warn("gateway address already on bridge, reusing it", "bridge", bridge, "gateway", plan.GatewayCIDR())
		*steps = append(*steps, fault.Step{Name: "gateway address (already present)"})
		return nil
	}

	addr, err := l.nl.ParseAddr(plan.GatewayCIDR())
	if err != nil {
		return fail("parse gateway address", err)
	}
	if err := l.nl.AddrAdd(brLink, addr); err != nil {
		return fail("gateway address", err)
	}
	*steps = append(*steps, fault.Step{Name: "gateway address"})
	*undos = append(*undos, fault.Step{Name: "remove gateway address"})
	*undoFns = append(*undoFns, func() error { return l.nl.AddrDel(brLink, addr) })
	return nil
}

// configureNamespace runs inside the subnet namespace: loopback up, host
// address on the veth endpoint, endpoint up, default route via the gateway.
func (l *Lifecycle) configureNamespace(nsName, nsSide string, plan ipam.Plan) error {
	return l.ns.RunIn(nsName, func() error {
		lo, err := l.nl.LinkByName("lo")
		if err != nil {
			return fmt.Errorf("failed to find loopback: %w", err)
		}
		if err := l.nl.LinkSetUp(lo); err != nil {
			return fmt.Errorf("failed to bring loopback up: %w", err)
		}

		link, err := l.nl.LinkByName(nsSide)
		if err != nil {
			return fmt.Errorf("failed to find %s inside namespace: %w", nsSide, err)
		}
		addr, err := l.nl.ParseAddr(plan.HostCIDR())
		if err != nil {
			return fmt.Errorf("failed to parse host address: %w", err)
		}
		if err := l.nl.AddrAdd(link, addr); err != nil {
			return fmt.Errorf("failed to set host address: %w", err)
		}
		if err := l.nl.LinkSetUp(link); err != nil {
			return fmt.Errorf("failed to bring %s up: %w", nsSide, err)
		}

		route := &netlink.Route{Gw: net.IP(plan.Gateway.AsSlice())}
		if err := l.nl.RouteAdd(route); err != nil {
			return fmt.Errorf("failed to add default route: %w", err)
		}
		return nil
	})
}

// Delete tears a subnet down, best-effort. The CIDR is needed to find the
// NAT rules and the gateway address; without it only the namespace and the
// veth pair are removed and the rest is left orphaned with a warning. The
// internet interface is only needed for public subnets.
func (l *Lifecycle) Delete(vpc, subnet, cidr, internetIface string) error {
	if err := names.Validate(vpc, subnet); err != nil {
		return err
	}

	bridge := names.Bridge(vpc)
	nsName := names.Namespace(vpc, subnet)
	_, bridgeSide := names.VethPair(subnet)

	l.log.Info("deleting subnet", "vpc", vpc, "subnet", subnet, "netns", nsName)

	if cidr == "" {
		l.log.Warn("no CIDR given; NAT rules and the gateway address cannot be located and are left behind",
			"vpc", vpc, "subnet", subnet)
	} else {
		plan, err := ipam.New(cidr)
		if err != nil {
			return err
		}
		if internetIface != "" {
			if err := l.fw.RemoveSubnetNAT(plan.Network.String(), internetIface); err != nil {
				l.log.Error("failed to remove NAT rules, continuing", "cidr", cidr, "error", err)
			}
		}
		l.removeGateway(bridge, plan)
	}

	if link, err := l.nl.LinkByName(bridgeSide); err == nil {
		if err := l.nl.LinkDel(link); err != nil {
			l.log.Error("failed to delete veth pair, continuing", "veth", bridgeSide, "error", err)
		}
	} else if !netops.IsLinkNotFound(err) {
		l.log.Error("failed to query veth pair, continuing", "veth", bridgeSide, "error", err)
	}

	exists, err := l.ns.Exists(nsName)
	if err != nil {
		return fmt.Errorf("%w: query namespace %s: %v", fault.ErrKernelCommand, nsName, err)
	}
	if !exists {
		l.log.Warn("namespace already absent", "netns", nsName)
		return nil
	}
	if err := l.ns.Delete(nsName); err != nil {
		return fmt.Errorf("%w: delete namespace %s: %v", fault.ErrKernelCommand, nsName, err)
	}

	l.log.Info("subnet deleted", "vpc", vpc, "subnet", subnet)
	return nil
}

// removeGateway drops the gateway address from the bridge. A missing bridge
// or address is fine during deletion.
func (l *Lifecycle) removeGateway(bridge string, plan ipam.Plan) {
	brLink, err := l.nl.LinkByName(bridge)
	if err != nil {
		if !netops.IsLinkNotFound(err) {
			l.log.Error("failed to query bridge, continuing", "bridge", bridge, "error", err)
		}
		return
	}
	addr, err := l.nl.ParseAddr(plan.GatewayCIDR())
	if err != nil {
		l.log.Error("failed to parse gateway address, continuing", "gateway", plan.GatewayCIDR(), "error", err)
		return
	}
	if err := l.nl.AddrDel(brLink, addr); err != nil {
		l.log.Warn("could not remove gateway address, it may already be gone", "gateway", plan.GatewayCIDR(), "error", err)
	}
}
