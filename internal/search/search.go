// Package search implements the read-only lookup the rest of the system
// uses to resolve a free-text or IP term against the device/circuit/site
// catalog: exact IP match, CIDR/prefix overlap, then substring matching over
// circuit, device, and site names. It is exposed as a plain Go function, not
// a transport; nothing here owns an HTTP surface.
package search

import (
	"fmt"
	"net/netip"
	"strings"
)

// MaxResults caps the number of results a single search returns.
const MaxResults = 50

// Device is one catalog entry a search can match by IP, circuit name, or
// device name.
type Device struct {
	CircuitID   string
	CircuitName string
	DeviceName  string
	Networks    []netip.Prefix
}

// Site is one catalog entry a search can match by name.
type Site struct {
	Name string
}

// ResultKind tags the variant of a Result.
type ResultKind int

const (
	KindCircuit ResultKind = iota
	KindDevice
	KindSite
)

// Result is a single search hit. Only the fields relevant to Kind are
// populated.
type Result struct {
	Kind ResultKind

	// KindCircuit / KindDevice
	CircuitID   string
	CircuitName string
	// KindDevice only: the matched device's display name, possibly
	// annotated with the matched network (e.g. "laptop (10.1.2.0/24)").
	DeviceName string

	// KindSite
	SiteIndex int
	SiteName  string
}

func (r Result) dedupeKey() string {
	switch r.Kind {
	case KindCircuit:
		return fmt.Sprintf("Circuit:%s", r.CircuitID)
	case KindDevice:
		return fmt.Sprintf("Device:%s:%s", r.CircuitID, r.DeviceName)
	case KindSite:
		return fmt.Sprintf("Site:%d", r.SiteIndex)
	default:
		return ""
	}
}

type catalogEntry struct {
	// prefix is the network normalized into IPv6 space (IPv4 networks get a
	// +96 prefix length), so containment and overlap checks work across an
	// index that mixes plain IPv4, IPv4-mapped, and IPv6 entries.
	prefix netip.Prefix
	// display is the network as the catalog supplied it, used for result
	// annotation and textual prefix matching.
	display   netip.Prefix
	deviceIdx int
}

// toV6Prefix maps an IPv4 network into IPv6 space with a +96 prefix length;
// IPv6 (including IPv4-mapped) networks pass through unchanged.
func toV6Prefix(p netip.Prefix) netip.Prefix {
	if a := p.Addr(); a.Is4() {
		return netip.PrefixFrom(netip.AddrFrom16(a.As16()), p.Bits()+96)
	}
	return p
}

// toV6Addr maps an IPv4 address into IPv6 space.
func toV6Addr(a netip.Addr) netip.Addr {
	if a.Is4() {
		return netip.AddrFrom16(a.As16())
	}
	return a
}

// Catalog is an indexed, read-only snapshot of the devices and sites a
// search can match against. Build a fresh one whenever the underlying
// device/site data changes; Catalog itself holds no lock.
type Catalog struct {
	devices []Device
	sites   []Site
	entries []catalogEntry
}

// NewCatalog indexes devices and sites for searching.
func NewCatalog(devices []Device, sites []Site) *Catalog {
	c := &Catalog{devices: devices, sites: sites}
	for i, d := range devices {
		for _, p := range d.Networks {
			c.entries = append(c.entries, catalogEntry{
				prefix:    toV6Prefix(p.Masked()).Masked(),
				display:   p.Masked(),
				deviceIdx: i,
			})
		}
	}
	return c
}

// Search runs the four-pass dispatch over term: exact IP, then CIDR/prefix
// overlap, then circuit/device substring, then site substring. Results are
// deduplicated and capped at MaxResults.
func (c *Catalog) Search(term string) []Result {
	var results []Result
	seen := make(map[string]struct{})

	push := func(r Result) {
		if len(results) >= MaxResults {
			return
		}
		key := r.dedupeKey()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		results = append(results, r)
	}

	rawTerm := strings.TrimSpace(term)
	termLC := strings.ToLower(rawTerm)
	looksLikeIPPrefix := strings.ContainsAny(rawTerm, ".:")

	// Pass 1: exact IP, longest prefix match.
	if addr, err := netip.ParseAddr(rawTerm); err == nil {
		if idx, net, ok := c.longestMatch(toV6Addr(addr)); ok {
			d := c.devices[idx]
			push(Result{
				Kind:        KindDevice,
				CircuitID:   d.CircuitID,
				CircuitName: d.CircuitName,
				DeviceName:  fmt.Sprintf("%s (%s)", d.DeviceName, net),
			})
		}
	}

	// Pass 2: CIDR overlap, or textual prefix fallback.
	if len(results) < MaxResults && looksLikeIPPrefix && len(termLC) >= 3 {
		if strings.Contains(rawTerm, "/") {
			if queryNet, err := netip.ParsePrefix(rawTerm); err == nil {
				queryNet = toV6Prefix(queryNet.Masked()).Masked()
				for _, e := range c.entries {
					if len(results) >= MaxResults {
						break
					}
					if e.prefix.Overlaps(queryNet) {
						d := c.devices[e.deviceIdx]
						push(Result{
							Kind:        KindDevice,
							CircuitID:   d.CircuitID,
							CircuitName: d.CircuitName,
							DeviceName:  fmt.Sprintf("%s (%s)", d.DeviceName, e.display),
						})
					}
				}
			}
		} else {
			for _, e := range c.entries {
				if len(results) >= MaxResults {
					break
				}
				if strings.HasPrefix(e.display.String(), rawTerm) {
					d := c.devices[e.deviceIdx]
					push(Result{
						Kind:        KindDevice,
						CircuitID:   d.CircuitID,
						CircuitName: d.CircuitName,
						DeviceName:  fmt.Sprintf("%s (%s)", d.DeviceName, e.display),
					})
				}
			}
		}
	}

	// Pass 3: circuit/device name substring.
	if len(results) < MaxResults && len(termLC) >= 3 {
		for _, d := range c.devices {
			if len(results) >= MaxResults {
				break
			}
			if strings.Contains(strings.ToLower(d.CircuitName), termLC) {
				push(Result{Kind: KindCircuit, CircuitID: d.CircuitID, CircuitName: d.CircuitName})
			}
			if len(results) >= MaxResults {
				break
			}
			if strings.Contains(strings.ToLower(d.DeviceName), termLC) {
				push(Result{Kind: KindDevice, CircuitID: d.CircuitID, CircuitName: d.CircuitName, DeviceName: d.DeviceName})
			}
		}
	}

	// Pass 4: site name substring.
	if len(results) < MaxResults && len(termLC) >= 3 {
		for idx, s := range c.sites {
			if len(results) >= MaxResults {
				break
			}
			if strings.Contains(strings.ToLower(s.Name), termLC) {
				push(Result{Kind: KindSite, SiteIndex: idx, SiteName: s.Name})
			}
		}
	}

	return results
}

// longestMatch returns the device index and matched network whose prefix
// contains addr with the greatest specificity (longest prefix length). addr
// must already be in IPv6 space; the returned network is the catalog's
// original (display) form.
func (c *Catalog) longestMatch(addr netip.Addr) (idx int, net netip.Prefix, ok bool) {
	best, bestBits := -1, -1
	for _, e := range c.entries {
		if !e.prefix.Contains(addr) {
			continue
		}
		if e.prefix.Bits() > bestBits {
			best = e.deviceIdx
			bestBits = e.prefix.Bits()
			net = e.display
		}
	}
	if best == -1 {
		return 0, netip.Prefix{}, false
	}
	return best, net, true
}
