//go:build linux
// +build linux

package nftctl

import (
	"fmt"

	"github.com/google/nftables"
	"github.com/vishvananda/netns"
)

// Conn abstracts the nftables.Conn operations this package issues, so rule
// construction can be asserted in tests without a kernel.
type Conn interface {
	AddTable(t *nftables.Table) *nftables.Table
	ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error)
	AddChain(c *nftables.Chain) *nftables.Chain
	GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error)
	AddRule(r *nftables.Rule) *nftables.Rule
	InsertRule(r *nftables.Rule) *nftables.Rule
	DelRule(r *nftables.Rule) error
	Flush() error
}

// ConnOpener opens a Conn against the host's netfilter state. The returned
// func releases whatever the connection holds open.
type ConnOpener func() (Conn, func(), error)

// NamespaceConnOpener opens a Conn against the netfilter state inside a
// named network namespace.
type NamespaceConnOpener func(ns string) (Conn, func(), error)

func openHostConn() (Conn, func(), error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open nftables connection: %w", err)
	}
	return conn, func() {}, nil
}

// openNamespaceConn opens a connection whose mutations apply inside the
// named namespace without switching the calling thread into it. The netns
// fd must stay open until the final Flush, so it is released by the
// returned cleanup func, not here.
func openNamespaceConn(ns string) (Conn, func(), error) {
	handle, err := netns.GetFromName(ns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open netns %s: %w", ns, err)
	}

	conn, err := nftables.New(nftables.WithNetNSFd(int(handle)))
	if err != nil {
		handle.Close()
		return nil, nil, fmt.Errorf("failed to open nftables connection in netns %s: %w", ns, err)
	}
	return conn, func() { handle.Close() }, nil
}
