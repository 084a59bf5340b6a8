//go:build linux
// +build linux

package netops

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/vishvananda/netns"
)

// netnsRunDir is where named namespaces are bind-mounted, shared with
// `ip netns`.
const netnsRunDir = "/var/run/netns"

// RealNamespaceManager manages named namespaces through the netns package.
type RealNamespaceManager struct{}

// Create creates a named namespace. netns.NewNamed switches the calling
// thread into the new namespace, so the thread is locked and restored.
func (m *RealNamespaceManager) Create(name string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("failed to get current netns: %w", err)
	}
	defer orig.Close()

	created, err := netns.NewNamed(name)
	if err != nil {
		return fmt.Errorf("failed to create netns %s: %w", name, err)
	}
	created.Close()

	if err := netns.Set(orig); err != nil {
		return fmt.Errorf("failed to return to original netns: %w", err)
	}
	return nil
}

// Delete removes a named namespace, cascading removal of every interface
// and rule inside it.
func (m *RealNamespaceManager) Delete(name string) error {
	return netns.DeleteNamed(name)
}

// Exists reports whether the named namespace is present.
func (m *RealNamespaceManager) Exists(name string) (bool, error) {
	handle, err := netns.GetFromName(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	handle.Close()
	return true, nil
}

// List returns the names of all named namespaces, sorted.
func (m *RealNamespaceManager) List() ([]string, error) {
	entries, err := os.ReadDir(netnsRunDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", netnsRunDir, err)
	}

	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// RunIn executes fn inside the named namespace. The OS thread is locked so
// no other goroutine observes the switched namespace, and the original
// namespace is restored before returning.
func (m *RealNamespaceManager) RunIn(name string, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return fmt.Errorf("failed to get current netns: %w", err)
	}
	defer orig.Close()

	target, err := netns.GetFromName(name)
	if err != nil {
		return fmt.Errorf("failed to open netns %s: %w", name, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return fmt.Errorf("failed to enter netns %s: %w", name, err)
	}
	defer netns.Set(orig)

	return fn()
}
