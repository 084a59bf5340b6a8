//go:build !linux
// +build !linux

package netops

import (
	"errors"

	"github.com/vishvananda/netlink"
)

var errUnsupported = errors.New("netops: only supported on linux")

// RealNetlinker is a stub on non-Linux platforms so the tree still builds
// for development; every operation fails.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error)       { return nil, errUnsupported }
func (r *RealNetlinker) LinkList() ([]netlink.Link, error)                  { return nil, errUnsupported }
func (r *RealNetlinker) LinkAdd(link netlink.Link) error                    { return errUnsupported }
func (r *RealNetlinker) LinkDel(link netlink.Link) error                    { return errUnsupported }
func (r *RealNetlinker) LinkSetUp(link netlink.Link) error                  { return errUnsupported }
func (r *RealNetlinker) LinkSetDown(link netlink.Link) error                { return errUnsupported }
func (r *RealNetlinker) LinkSetMaster(slave, master netlink.Link) error     { return errUnsupported }
func (r *RealNetlinker) LinkSetNsName(link netlink.Link, ns string) error   { return errUnsupported }
func (r *RealNetlinker) AddrAdd(link netlink.Link, a *netlink.Addr) error   { return errUnsupported }
func (r *RealNetlinker) AddrDel(link netlink.Link, a *netlink.Addr) error   { return errUnsupported }
func (r *RealNetlinker) RouteAdd(route *netlink.Route) error                { return errUnsupported }
func (r *RealNetlinker) ParseAddr(s string) (*netlink.Addr, error)          { return nil, errUnsupported }
func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return nil, errUnsupported
}

// RealNamespaceManager is a stub on non-Linux platforms.
type RealNamespaceManager struct{}

func (m *RealNamespaceManager) Create(name string) error                  { return errUnsupported }
func (m *RealNamespaceManager) Delete(name string) error                  { return errUnsupported }
func (m *RealNamespaceManager) Exists(name string) (bool, error)          { return false, errUnsupported }
func (m *RealNamespaceManager) List() ([]string, error)                   { return nil, errUnsupported }
func (m *RealNamespaceManager) RunIn(name string, fn func() error) error  { return errUnsupported }
