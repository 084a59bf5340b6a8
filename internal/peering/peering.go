// Package peering connects and disconnects pairs of VPCs. A peering is
// nothing but two forwarding rules; there is no object to create or store.
package peering

import (
	"fmt"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/logging"
	"grimm.is/vpcctl/internal/names"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

// Manager creates and deletes VPC peerings.
type Manager struct {
	log  *logging.Logger
	fw   nftctl.RuleManager
	topo *topology.Inspector
}

// NewManager wires a Manager from its dependencies.
func NewManager(fw nftctl.RuleManager, topo *topology.Inspector) *Manager {
	return &Manager{
		log:  logging.WithComponent("peering"),
		fw:   fw,
		topo: topo,
	}
}

// Create allows forwarding between two existing VPCs, in both directions.
// Both VPCs must exist; a VPC cannot be peered with itself.
func (m *Manager) Create(vpcA, vpcB string) error {
	if err := m.validatePair(vpcA, vpcB); err != nil {
		return err
	}
	for _, vpc := range []string{vpcA, vpcB} {
		exists, err := m.topo.BridgeExists(names.Bridge(vpc))
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: vpc %q does not exist", fault.ErrNotFound, vpc)
		}
	}

	m.log.Info("peering vpcs", "a", vpcA, "b", vpcB)
	if err := m.fw.AddPeering(names.Bridge(vpcA), names.Bridge(vpcB)); err != nil {
		return err
	}
	m.log.Info("vpcs peered", "a", vpcA, "b", vpcB)
	return nil
}

// Delete removes the peering rules for a pair of VPCs. Removing a peering
// that does not exist is silent, and neither VPC needs to still exist.
func (m *Manager) Delete(vpcA, vpcB string) error {
	if err := m.validatePair(vpcA, vpcB); err != nil {
		return err
	}

	m.log.Info("removing peering", "a", vpcA, "b", vpcB)
	return m.fw.RemovePeering(names.Bridge(vpcA), names.Bridge(vpcB))
}

func (m *Manager) validatePair(vpcA, vpcB string) error {
	if err := names.Validate(vpcA, ""); err != nil {
		return err
	}
	if err := names.Validate(vpcB, ""); err != nil {
		return err
	}
	if vpcA == vpcB {
		return fmt.Errorf("%w: cannot peer vpc %q with itself", fault.ErrInvalidArgument, vpcA)
	}
	return nil
}
