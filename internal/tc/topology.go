package tc

import "fmt"

// MaterializationState tracks how much of a circuit's kernel-side shaping
// tree currently exists, independent of whether it is "intended" to exist
// at full fidelity. Transitions are driven exclusively by the lazy
// materialization policy (policy.go), never by direct writes.
type MaterializationState int

const (
	// Virtual means the circuit is known to the topology but has no HTB
	// class or SQM leaf in the kernel yet.
	Virtual MaterializationState = iota
	// HtbOnly means the HTB class exists but the SQM leaf does not.
	HtbOnly
	// Full means both the HTB class and SQM leaf exist.
	Full
)

func (s MaterializationState) String() string {
	switch s {
	case HtbOnly:
		return "htb-only"
	case Full:
		return "full"
	default:
		return "virtual"
	}
}

// SiteNode is an intermediate HTB aggregation level above circuits.
type SiteNode struct {
	SiteHash   int64
	ParentDown Handle
	ParentUp   Handle
	Minor      uint16
	DownMin    float32
	DownMax    float32
	UpMin      float32
	UpMax      float32
	// ParentSiteHash identifies the site this site is nested under, when
	// sites form more than one aggregation level. Nil means this site's
	// parent is an MQ main class directly.
	ParentSiteHash *int64
}

// CircuitNode is one subscriber's shaping entity.
type CircuitNode struct {
	CircuitHash   int64
	SiteHash      int64
	ParentDown    Handle
	ParentUp      Handle
	Minor         uint16
	ClassMajor    uint16
	UpClassMajor  uint16
	DownMin       float32
	DownMax       float32
	UpMin         float32
	UpMax         float32
	IPList        string
	State         MaterializationState
}

// Topology is the intended HTB/SQM shaping tree: MQ roots per interface,
// site classes, and circuit classes, indexed by site-hash and circuit-hash.
type Topology struct {
	Sites    map[int64]*SiteNode
	Circuits map[int64]*CircuitNode
}

// NewTopology returns an empty topology.
func NewTopology() *Topology {
	return &Topology{
		Sites:    make(map[int64]*SiteNode),
		Circuits: make(map[int64]*CircuitNode),
	}
}

// AddSite inserts or replaces a site node, validating its rate invariants.
func (t *Topology) AddSite(n SiteNode) error {
	if n.DownMin > n.DownMax {
		return fmt.Errorf("%w: site %d down_min %.2f > down_max %.2f", ErrInvalidTopology, n.SiteHash, n.DownMin, n.DownMax)
	}
	if n.UpMin > n.UpMax {
		return fmt.Errorf("%w: site %d up_min %.2f > up_max %.2f", ErrInvalidTopology, n.SiteHash, n.UpMin, n.UpMax)
	}
	cp := n
	t.Sites[n.SiteHash] = &cp
	return nil
}

// AddCircuit inserts or replaces a circuit node, validating its rate
// invariants and that its parent site exists.
func (t *Topology) AddCircuit(n CircuitNode) error {
	if n.DownMin > n.DownMax {
		return fmt.Errorf("%w: circuit %d down_min %.2f > down_max %.2f", ErrInvalidTopology, n.CircuitHash, n.DownMin, n.DownMax)
	}
	if n.UpMin > n.UpMax {
		return fmt.Errorf("%w: circuit %d up_min %.2f > up_max %.2f", ErrInvalidTopology, n.CircuitHash, n.UpMin, n.UpMax)
	}
	if _, ok := t.Sites[n.SiteHash]; !ok {
		return fmt.Errorf("%w: circuit %d references unknown site %d", ErrInvalidTopology, n.CircuitHash, n.SiteHash)
	}
	if existing, ok := t.Circuits[n.CircuitHash]; ok {
		n.State = existing.State
	}
	cp := n
	t.Circuits[n.CircuitHash] = &cp
	return nil
}

// RemoveSite deletes a site node. Callers are responsible for removing or
// reparenting its circuits first; neither RemoveSite nor the batch diff
// checks for circuits that still reference the site.
func (t *Topology) RemoveSite(siteHash int64) {
	delete(t.Sites, siteHash)
}

// RemoveCircuit deletes a circuit node.
func (t *Topology) RemoveCircuit(circuitHash int64) {
	delete(t.Circuits, circuitHash)
}

// Clone returns a deep copy, used by the batch engine to diff a pending
// topology against the last committed one without aliasing either.
func (t *Topology) Clone() *Topology {
	out := NewTopology()
	for k, v := range t.Sites {
		cp := *v
		out.Sites[k] = &cp
	}
	for k, v := range t.Circuits {
		cp := *v
		out.Circuits[k] = &cp
	}
	return out
}

// AddSiteCommand builds the AddSite Command for a site node.
func (n SiteNode) AddSiteCommand() Command {
	return Command{
		Kind:            KindAddSite,
		SiteHash:        n.SiteHash,
		ParentClassID:   n.ParentDown,
		UpParentClassID: n.ParentUp,
		ClassMinor:      n.Minor,
		DownloadMin:     n.DownMin,
		UploadMin:       n.UpMin,
		DownloadMax:     n.DownMax,
		UploadMax:       n.UpMax,
	}
}

// ChangeSiteSpeedCommand builds the ChangeSiteSpeedLive Command for a site
// whose rates changed but whose identity (handles) persists.
func (n SiteNode) ChangeSiteSpeedCommand() Command {
	cmd := n.AddSiteCommand()
	cmd.Kind = KindChangeSiteSpeedLive
	return cmd
}

// SiteDepth returns a site's nesting depth: 0 when its parent is an MQ main
// class directly, otherwise one more than its parent site's depth. The walk
// stops at a ParentSiteHash that names no site or revisits a site already
// walked, returning the steps taken so far instead of looping forever.
// AddSite does not reject dangling or cyclic ParentSiteHash chains.
func (t *Topology) SiteDepth(siteHash int64) int {
	depth := 0
	visited := map[int64]bool{}
	current := siteHash
	for {
		site, ok := t.Sites[current]
		if !ok || site.ParentSiteHash == nil || visited[current] {
			return depth
		}
		visited[current] = true
		current = *site.ParentSiteHash
		depth++
	}
}

// AddCircuitCommand builds the AddCircuit Command for a circuit node.
func (n CircuitNode) AddCircuitCommand() Command {
	return Command{
		Kind:            KindAddCircuit,
		CircuitHash:     n.CircuitHash,
		ParentClassID:   n.ParentDown,
		UpParentClassID: n.ParentUp,
		ClassMinor:      n.Minor,
		ClassMajor:      n.ClassMajor,
		UpClassMajor:    n.UpClassMajor,
		DownloadMin:     n.DownMin,
		UploadMin:       n.UpMin,
		DownloadMax:     n.DownMax,
		UploadMax:       n.UpMax,
		IPAddresses:     n.IPList,
	}
}
