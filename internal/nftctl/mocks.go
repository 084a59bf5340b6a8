package nftctl

import (
	"github.com/stretchr/testify/mock"
)

// MockRuleManager is a mock implementation of RuleManager for testing the
// lifecycle components.
type MockRuleManager struct {
	mock.Mock
}

func (m *MockRuleManager) EnsureBaseTable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRuleManager) AddVPCIsolation(bridge string) error {
	args := m.Called(bridge)
	return args.Error(0)
}

func (m *MockRuleManager) RemoveVPCIsolation(bridge string) error {
	args := m.Called(bridge)
	return args.Error(0)
}

func (m *MockRuleManager) AddPeering(bridgeA, bridgeB string) error {
	args := m.Called(bridgeA, bridgeB)
	return args.Error(0)
}

func (m *MockRuleManager) RemovePeering(bridgeA, bridgeB string) error {
	args := m.Called(bridgeA, bridgeB)
	return args.Error(0)
}

func (m *MockRuleManager) RemovePeeringsFor(bridge string) error {
	args := m.Called(bridge)
	return args.Error(0)
}

func (m *MockRuleManager) AddSubnetNAT(cidr, iface string) error {
	args := m.Called(cidr, iface)
	return args.Error(0)
}

func (m *MockRuleManager) RemoveSubnetNAT(cidr, iface string) error {
	args := m.Called(cidr, iface)
	return args.Error(0)
}

func (m *MockRuleManager) SetupNamespaceDefaults(ns string) error {
	args := m.Called(ns)
	return args.Error(0)
}

func (m *MockRuleManager) AddIngressRule(ns string, port uint16, protocol string, accept bool) error {
	args := m.Called(ns, port, protocol, accept)
	return args.Error(0)
}
