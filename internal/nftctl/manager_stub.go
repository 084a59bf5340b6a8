//go:build !linux
// +build !linux

package nftctl

import "errors"

var errUnsupported = errors.New("nftctl: only supported on linux")

// Manager is a stub on non-Linux platforms so the tree still builds for
// development; every operation fails.
type Manager struct{}

// NewManager returns the stub manager.
func NewManager() *Manager { return &Manager{} }

func (m *Manager) EnsureBaseTable() error                     { return errUnsupported }
func (m *Manager) AddVPCIsolation(bridge string) error        { return errUnsupported }
func (m *Manager) RemoveVPCIsolation(bridge string) error     { return errUnsupported }
func (m *Manager) AddPeering(a, b string) error               { return errUnsupported }
func (m *Manager) RemovePeering(a, b string) error            { return errUnsupported }
func (m *Manager) RemovePeeringsFor(bridge string) error      { return errUnsupported }
func (m *Manager) AddSubnetNAT(cidr, iface string) error      { return errUnsupported }
func (m *Manager) RemoveSubnetNAT(cidr, iface string) error   { return errUnsupported }
func (m *Manager) SetupNamespaceDefaults(ns string) error     { return errUnsupported }
func (m *Manager) AddIngressRule(ns string, port uint16, protocol string, accept bool) error {
	return errUnsupported
}
