// Package netops is the kernel access layer: link, address and route
// mutations over netlink, named network namespace management, and sysctl
// access. Everything is behind narrow interfaces so the lifecycle
// components can be unit-tested without touching the kernel.
package netops

import (
	"errors"

	"github.com/vishvananda/netlink"
)

// Netlinker abstracts the netlink operations this tool issues.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
	LinkSetMaster(slave, master netlink.Link) error
	LinkSetNsName(link netlink.Link, nsName string) error
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
	AddrDel(link netlink.Link, addr *netlink.Addr) error
	RouteAdd(route *netlink.Route) error
	ParseAddr(s string) (*netlink.Addr, error)
}

// NamespaceManager manages named network namespaces (the /var/run/netns
// registry that `ip netns` uses). Deleting a namespace atomically removes
// every interface and rule living inside it; that cascade is the only
// built-in atomic cleanup this tool relies on.
type NamespaceManager interface {
	Create(name string) error
	Delete(name string) error
	Exists(name string) (bool, error)
	List() ([]string, error)

	// RunIn executes fn with the calling goroutine's thread switched into
	// the named namespace, restoring the original namespace afterwards.
	RunIn(name string, fn func() error) error
}

// SystemController abstracts sysctl reads and writes.
type SystemController interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
}

// Well-known sysctl paths.
const (
	SysctlIPForward = "/proc/sys/net/ipv4/ip_forward"
)

// SysctlForwarding returns the per-interface IPv4 forwarding toggle path.
func SysctlForwarding(iface string) string {
	return "/proc/sys/net/ipv4/conf/" + iface + "/forwarding"
}

// IsLinkNotFound reports whether err is netlink's missing-device error.
func IsLinkNotFound(err error) bool {
	var lnf netlink.LinkNotFoundError
	return errors.As(err, &lnf)
}
