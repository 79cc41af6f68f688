package testutil

import (
	"os"
	"testing"
)

// RequireVM skips the test if the BAKERY_VM_TEST environment variable is not
// set. This ensures that tests requiring real kernel capabilities (tc, HTB,
// netlink) are only run in the proper environment.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("BAKERY_VM_TEST") == "" {
		t.Skip("Skipping test: requires BAKERY_VM_TEST environment")
	}
}
