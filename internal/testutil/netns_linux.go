//go:build linux

package testutil

import (
	"runtime"
	"testing"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// WithVethPair creates a host-side veth interface (hostIface) whose peer
// (nsIface) lives inside a freshly created, isolated network namespace, runs
// fn with hostIface up and ready, and tears both down on return. It lets
// BAKERY_VM_TEST-gated tests drive real tc/netlink calls against an
// interface that exists without touching the host's actual network
// configuration.
func WithVethPair(t *testing.T, hostIface, nsIface string, fn func()) {
	t.Helper()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origns, err := netns.Get()
	if err != nil {
		t.Fatalf("get original netns: %v", err)
	}
	defer origns.Close()

	newns, err := netns.New()
	if err != nil {
		t.Fatalf("create isolation netns: %v", err)
	}
	defer newns.Close()
	defer netns.Set(origns)

	// netns.New() switches the calling thread into the new namespace; move
	// back to the original before creating the veth pair so the host side
	// (hostIface) is created where the test caller expects to find it.
	if err := netns.Set(origns); err != nil {
		t.Fatalf("switch back to original netns: %v", err)
	}

	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: hostIface},
		PeerName:  nsIface,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		t.Fatalf("create veth pair %s/%s: %v", hostIface, nsIface, err)
	}
	defer func() {
		if l, err := netlink.LinkByName(hostIface); err == nil {
			_ = netlink.LinkDel(l)
		}
	}()

	peer, err := netlink.LinkByName(nsIface)
	if err != nil {
		t.Fatalf("lookup veth peer %s: %v", nsIface, err)
	}
	if err := netlink.LinkSetNsFd(peer, int(newns)); err != nil {
		t.Fatalf("move %s into isolation netns: %v", nsIface, err)
	}

	hostLink, err := netlink.LinkByName(hostIface)
	if err != nil {
		t.Fatalf("lookup host veth %s: %v", hostIface, err)
	}
	if err := netlink.LinkSetUp(hostLink); err != nil {
		t.Fatalf("bring up %s: %v", hostIface, err)
	}

	fn()
}
