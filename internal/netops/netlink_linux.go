//go:build linux
// +build linux

package netops

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// RealNetlinker issues the actual netlink calls.
type RealNetlinker struct{}

// LinkByName retrieves a link by name.
func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

// LinkList retrieves all links.
func (r *RealNetlinker) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

// LinkAdd adds a link.
func (r *RealNetlinker) LinkAdd(link netlink.Link) error {
	return netlink.LinkAdd(link)
}

// LinkDel deletes a link.
func (r *RealNetlinker) LinkDel(link netlink.Link) error {
	return netlink.LinkDel(link)
}

// LinkSetUp sets the link up.
func (r *RealNetlinker) LinkSetUp(link netlink.Link) error {
	return netlink.LinkSetUp(link)
}

// LinkSetDown sets the link down.
func (r *RealNetlinker) LinkSetDown(link netlink.Link) error {
	return netlink.LinkSetDown(link)
}

// LinkSetMaster sets the master of a slave link.
func (r *RealNetlinker) LinkSetMaster(slave, master netlink.Link) error {
	return netlink.LinkSetMaster(slave, master)
}

// LinkSetNsName moves a link into the named network namespace.
func (r *RealNetlinker) LinkSetNsName(link netlink.Link, nsName string) error {
	handle, err := netns.GetFromName(nsName)
	if err != nil {
		return fmt.Errorf("failed to open netns %s: %w", nsName, err)
	}
	defer handle.Close()
	return netlink.LinkSetNsFd(link, int(handle))
}

// AddrList retrieves a list of addresses for a link.
func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

// AddrAdd adds an address to a link.
func (r *RealNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrAdd(link, addr)
}

// AddrDel deletes an address from a link.
func (r *RealNetlinker) AddrDel(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrDel(link, addr)
}

// RouteAdd adds a route.
func (r *RealNetlinker) RouteAdd(route *netlink.Route) error {
	return netlink.RouteAdd(route)
}

// ParseAddr parses an address in CIDR form.
func (r *RealNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	return netlink.ParseAddr(s)
}
