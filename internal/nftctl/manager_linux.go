//go:build linux
// +build linux

package nftctl

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"

	"grimm.is/vpcctl/internal/brand"
	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/logging"
)

const (
	forwardChain     = "forward"
	postroutingChain = "postrouting"
	inputChain       = "input"
)

// Manager implements RuleManager over google/nftables. A fresh connection
// is opened per operation; nothing is cached between calls so the manager
// always acts on live kernel state.
type Manager struct {
	log      *logging.Logger
	openHost ConnOpener
	openNS   NamespaceConnOpener
}

// NewManager returns a RuleManager bound to the real kernel.
func NewManager() *Manager {
	return NewManagerWithDeps(openHostConn, openNamespaceConn)
}

// NewManagerWithDeps allows tests to inject connection openers.
func NewManagerWithDeps(host ConnOpener, ns NamespaceConnOpener) *Manager {
	return &Manager{
		log:      logging.WithComponent("firewall"),
		openHost: host,
		openNS:   ns,
	}
}

func hostTable() *nftables.Table {
	return &nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   brand.NFTTable,
	}
}

// findChain locates one of our chains on an open connection.
func findChain(conn Conn, name string) (*nftables.Chain, error) {
	chains, err := conn.ListChainsOfTableFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	for _, c := range chains {
		if c.Table != nil && c.Table.Name == brand.NFTTable && c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: chain %s in table %s", fault.ErrNotFound, name, brand.NFTTable)
}

// EnsureBaseTable creates the host table and chains. Add operations are
// idempotent at the netlink level, so re-running is safe.
func (m *Manager) EnsureBaseTable() error {
	conn, done, err := m.openHost()
	if err != nil {
		return err
	}
	defer done()

	table := conn.AddTable(hostTable())
	conn.AddChain(&nftables.Chain{
		Name:     forwardChain,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookForward,
		Priority: nftables.ChainPriorityFilter,
	})
	conn.AddChain(&nftables.Chain{
		Name:     postroutingChain,
		Table:    table,
		Type:     nftables.ChainTypeNAT,
		Hooknum:  nftables.ChainHookPostrouting,
		Priority: nftables.ChainPriorityNATSource,
	})
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: create base table: %v", fault.ErrKernelCommand, err)
	}
	return nil
}

// AddVPCIsolation installs the three isolation rules. Each rule is inserted
// at the head and flushed individually, newest first in evaluation order,
// so the rules are inserted in reverse: both drops first, then the
// intra-VPC accept that must shadow them.
func (m *Manager) AddVPCIsolation(bridge string) error {
	conn, done, err := m.openHost()
	if err != nil {
		return err
	}
	defer done()

	chain, err := findChain(conn, forwardChain)
	if err != nil {
		return err
	}

	rules := []struct {
		exprs   []expr.Any
		comment string
	}{
		{join(matchOIFName(bridge), []expr.Any{verdictDrop()}), vpcIngressDropComment(bridge)},
		{join(matchIIFName(bridge), []expr.Any{verdictDrop()}), vpcEgressDropComment(bridge)},
		{join(matchIIFName(bridge), matchOIFName(bridge), []expr.Any{verdictAccept()}), vpcIntraComment(bridge)},
	}

	for _, r := range rules {
		conn.InsertRule(&nftables.Rule{
			Table:    chain.Table,
			Chain:    chain,
			Exprs:    r.exprs,
			UserData: []byte(r.comment),
		})
		if err := conn.Flush(); err != nil {
			return fmt.Errorf("%w: insert isolation rule %s: %v", fault.ErrKernelCommand, r.comment, err)
		}
	}

	m.log.Debug("isolation rules installed", "bridge", bridge)
	return nil
}

// RemoveVPCIsolation removes the three isolation rules by comment prefix.
func (m *Manager) RemoveVPCIsolation(bridge string) error {
	prefix := vpcCommentPrefix(bridge)
	n, err := m.deleteByComment(forwardChain, func(comment string) bool {
		return len(comment) >= len(prefix) && comment[:len(prefix)] == prefix
	})
	if err != nil {
		return err
	}
	m.log.Debug("isolation rules removed", "bridge", bridge, "count", n)
	return nil
}

// AddPeering inserts both directions at the head of the forward chain. The
// second insertion failing rolls back the first.
func (m *Manager) AddPeering(bridgeA, bridgeB string) error {
	conn, done, err := m.openHost()
	if err != nil {
		return err
	}
	defer done()

	chain, err := findChain(conn, forwardChain)
	if err != nil {
		return err
	}

	insert := func(from, to string) error {
		conn.InsertRule(&nftables.Rule{
			Table:    chain.Table,
			Chain:    chain,
			Exprs:    join(matchIIFName(from), matchOIFName(to), []expr.Any{verdictAccept()}),
			UserData: []byte(peerComment(from, to)),
		})
		if err := conn.Flush(); err != nil {
			return fmt.Errorf("%w: insert peering rule %s>%s: %v", fault.ErrKernelCommand, from, to, err)
		}
		return nil
	}

	if err := insert(bridgeA, bridgeB); err != nil {
		return err
	}
	if err := insert(bridgeB, bridgeA); err != nil {
		// Roll the first direction back; a one-way peering accept is worse
		// than no peering at all.
		if _, delErr := m.deleteByComment(forwardChain, func(c string) bool {
			return c == peerComment(bridgeA, bridgeB)
		}); delErr != nil {
			m.log.Error("rollback of peering rule failed", "rule", peerComment(bridgeA, bridgeB), "error", delErr)
		}
		return err
	}

	m.log.Debug("peering rules installed", "a", bridgeA, "b", bridgeB)
	return nil
}

// RemovePeering removes both directions, ignoring rules already gone.
func (m *Manager) RemovePeering(bridgeA, bridgeB string) error {
	ab, ba := peerComment(bridgeA, bridgeB), peerComment(bridgeB, bridgeA)
	n, err := m.deleteByComment(forwardChain, func(c string) bool {
		return c == ab || c == ba
	})
	if err != nil {
		return err
	}
	m.log.Debug("peering rules removed", "a", bridgeA, "b", bridgeB, "count", n)
	return nil
}

// RemovePeeringsFor removes every peering rule that references the bridge
// in either direction.
func (m *Manager) RemovePeeringsFor(bridge string) error {
	n, err := m.deleteByComment(forwardChain, func(c string) bool {
		from, to, ok := peerEndpoints(c)
		return ok && (from == bridge || to == bridge)
	})
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.Info("removed peering rules referencing bridge", "bridge", bridge, "count", n)
	}
	return nil
}

// AddSubnetNAT installs the masquerade and the two forward accepts for a
// public subnet. The accepts are inserted at the head of the forward chain
// so egress traffic is not caught by the VPC's own catch-all drop.
func (m *Manager) AddSubnetNAT(cidr, iface string) error {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", fault.ErrInvalidAddressBlock, cidr, err)
	}

	conn, done, err := m.openHost()
	if err != nil {
		return err
	}
	defer done()

	forward, err := findChain(conn, forwardChain)
	if err != nil {
		return err
	}
	post, err := findChain(conn, postroutingChain)
	if err != nil {
		return err
	}

	conn.AddRule(&nftables.Rule{
		Table:    post.Table,
		Chain:    post,
		Exprs:    join(matchNet(ipNet, true), matchOIFName(iface), []expr.Any{masquerade()}),
		UserData: []byte(natMasqComment(cidr)),
	})
	conn.InsertRule(&nftables.Rule{
		Table:    forward.Table,
		Chain:    forward,
		Exprs:    join(matchIIFName(iface), matchNet(ipNet, false), matchCtEstablished(), []expr.Any{verdictAccept()}),
		UserData: []byte(natIngressComment(cidr)),
	})
	conn.InsertRule(&nftables.Rule{
		Table:    forward.Table,
		Chain:    forward,
		Exprs:    join(matchNet(ipNet, true), matchOIFName(iface), []expr.Any{verdictAccept()}),
		UserData: []byte(natEgressComment(cidr)),
	})

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: install NAT rules for %s via %s: %v", fault.ErrKernelCommand, cidr, iface, err)
	}

	m.log.Debug("NAT rules installed", "cidr", cidr, "iface", iface)
	return nil
}

// RemoveSubnetNAT removes the masquerade and forward accepts by comment.
func (m *Manager) RemoveSubnetNAT(cidr, iface string) error {
	egress, ingress := natEgressComment(cidr), natIngressComment(cidr)
	if _, err := m.deleteByComment(forwardChain, func(c string) bool {
		return c == egress || c == ingress
	}); err != nil {
		return err
	}

	masq := natMasqComment(cidr)
	if _, err := m.deleteByComment(postroutingChain, func(c string) bool {
		return c == masq
	}); err != nil {
		return err
	}

	m.log.Debug("NAT rules removed", "cidr", cidr, "iface", iface)
	return nil
}

// SetupNamespaceDefaults installs the namespace-local firewall baseline:
// a default-drop input chain, then a loopback accept, then an
// established/related accept, appended in that order so later custom rules
// land after them without shadowing.
func (m *Manager) SetupNamespaceDefaults(ns string) error {
	conn, done, err := m.openNS(ns)
	if err != nil {
		return err
	}
	defer done()

	table := conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   brand.NFTTable,
	})

	policy := nftables.ChainPolicyDrop
	input := conn.AddChain(&nftables.Chain{
		Name:     inputChain,
		Table:    table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: nftables.ChainPriorityFilter,
		Policy:   &policy,
	})

	conn.AddRule(&nftables.Rule{
		Table:    table,
		Chain:    input,
		Exprs:    join(matchIIFName("lo"), []expr.Any{verdictAccept()}),
		UserData: []byte(nsLoopbackComment()),
	})
	conn.AddRule(&nftables.Rule{
		Table:    table,
		Chain:    input,
		Exprs:    join(matchCtEstablished(), []expr.Any{verdictAccept()}),
		UserData: []byte(nsEstablishedComment()),
	})

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: install firewall defaults in %s: %v", fault.ErrKernelCommand, ns, err)
	}

	m.log.Debug("namespace firewall defaults installed", "netns", ns)
	return nil
}

// AddIngressRule appends one custom ingress rule inside the namespace. An
// append lands after the two defaults and before the chain's terminal drop
// policy, which is exactly the required evaluation position.
func (m *Manager) AddIngressRule(ns string, port uint16, protocol string, accept bool) error {
	match, err := matchTransportDport(protocol, port)
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrPolicyParse, err)
	}

	verdict := verdictDrop()
	if accept {
		verdict = verdictAccept()
	}

	conn, done, err := m.openNS(ns)
	if err != nil {
		return err
	}
	defer done()

	input, err := findChain(conn, inputChain)
	if err != nil {
		return err
	}

	conn.AddRule(&nftables.Rule{
		Table:    input.Table,
		Chain:    input,
		Exprs:    join(match, []expr.Any{verdict}),
		UserData: []byte(ingressComment(protocol, port, accept)),
	})
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: append ingress rule in %s: %v", fault.ErrKernelCommand, ns, err)
	}

	m.log.Debug("ingress rule appended", "netns", ns, "protocol", protocol, "port", port, "accept", accept)
	return nil
}

// deleteByComment removes every rule in the chain whose comment satisfies
// match. A missing table or chain means there is nothing to delete.
func (m *Manager) deleteByComment(chain string, match func(string) bool) (int, error) {
	conn, done, err := m.openHost()
	if err != nil {
		return 0, err
	}
	defer done()

	c, err := findChain(conn, chain)
	if err != nil {
		// A missing chain is the normal already-deleted case. Anything else
		// still must not fail the delete path, but the operator should know
		// rules may have been left behind.
		if !errors.Is(err, fault.ErrNotFound) {
			m.log.Warn("could not locate chain for deletion, rules may be left behind",
				"chain", chain, "error", err)
		}
		return 0, nil
	}

	rules, err := conn.GetRules(c.Table, c)
	if err != nil {
		return 0, fmt.Errorf("%w: list rules in %s: %v", fault.ErrKernelCommand, chain, err)
	}

	deleted := 0
	for _, r := range rules {
		if match(string(r.UserData)) {
			if err := conn.DelRule(r); err != nil {
				return deleted, fmt.Errorf("%w: delete rule: %v", fault.ErrKernelCommand, err)
			}
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := conn.Flush(); err != nil {
		return 0, fmt.Errorf("%w: delete rules in %s: %v", fault.ErrKernelCommand, chain, err)
	}
	return deleted, nil
}
