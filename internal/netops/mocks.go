package netops

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a mock implementation of the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

func (m *MockNetlinker) LinkList() ([]netlink.Link, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Link), args.Error(1)
}

func (m *MockNetlinker) LinkAdd(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkDel(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetUp(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetDown(link netlink.Link) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetMaster(slave, master netlink.Link) error {
	args := m.Called(slave, master)
	return args.Error(0)
}

func (m *MockNetlinker) LinkSetNsName(link netlink.Link, nsName string) error {
	args := m.Called(link, nsName)
	return args.Error(0)
}

func (m *MockNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Addr), args.Error(1)
}

func (m *MockNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	args := m.Called(link, addr)
	return args.Error(0)
}

func (m *MockNetlinker) AddrDel(link netlink.Link, addr *netlink.Addr) error {
	args := m.Called(link, addr)
	return args.Error(0)
}

func (m *MockNetlinker) RouteAdd(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) ParseAddr(s string) (*netlink.Addr, error) {
	args := m.Called(s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*netlink.Addr), args.Error(1)
}

// MockNamespaceManager is a mock implementation of NamespaceManager.
// RunIn records the call, then executes fn so in-namespace expectations on
// the other mocks still fire.
type MockNamespaceManager struct {
	mock.Mock
}

func (m *MockNamespaceManager) Create(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockNamespaceManager) Delete(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockNamespaceManager) Exists(name string) (bool, error) {
	args := m.Called(name)
	return args.Bool(0), args.Error(1)
}

func (m *MockNamespaceManager) List() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockNamespaceManager) RunIn(name string, fn func() error) error {
	args := m.Called(name)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn()
}

// MockSystemController is a mock implementation of SystemController.
type MockSystemController struct {
	mock.Mock
}

func (m *MockSystemController) ReadSysctl(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func (m *MockSystemController) WriteSysctl(path, value string) error {
	args := m.Called(path, value)
	return args.Error(0)
}
