package testutil

import (
	"os"
	"testing"
)

// RequireRoot skips the test unless it runs as root with VPCCTL_ROOT_TEST
// set. Tests that mutate real kernel state (namespaces, links, nftables)
// must only run in a disposable environment.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Getenv("VPCCTL_ROOT_TEST") == "" {
		t.Skip("Skipping test: requires VPCCTL_ROOT_TEST environment")
	}
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}
