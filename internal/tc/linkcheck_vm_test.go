//go:build linux

package tc_test

import (
	"testing"

	"github.com/lqos-tc/bakery/internal/config"
	"github.com/lqos-tc/bakery/internal/tc"
	"github.com/lqos-tc/bakery/internal/testutil"
)

// TestValidateInterfaces_RealVeth exercises ValidateInterfaces against a
// real kernel interface inside an isolated network namespace, rather than a
// mock. Skipped unless BAKERY_VM_TEST is set, since it requires
// CAP_NET_ADMIN to create veths and namespaces.
func TestValidateInterfaces_RealVeth(t *testing.T) {
	testutil.RequireVM(t)

	testutil.WithVethPair(t, "bakery-vm-host", "bakery-vm-ns", func() {
		cfg := &config.Config{
			ISPInterfaceName: "bakery-vm-host",
			OnAStickMode:     true,
		}
		if err := tc.ValidateInterfaces(cfg); err != nil {
			t.Fatalf("expected veth host interface to validate, got: %v", err)
		}

		cfg.ISPInterfaceName = "bakery-vm-missing"
		if err := tc.ValidateInterfaces(cfg); err == nil {
			t.Fatal("expected validation error for nonexistent interface")
		}
	})
}
