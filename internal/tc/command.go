package tc

// ExecutionMode distinguishes a cold topology build from a live, incremental
// update. The lazy materialization policy (policy.go) keys its decisions on
// this in addition to the configured lazy mode.
type ExecutionMode int

const (
	// Builder constructs the tree from scratch (StartBatch/.../CommitBatch).
	Builder ExecutionMode = iota
	// LiveUpdate applies a single incremental change outside a cold build.
	LiveUpdate
)

func (m ExecutionMode) String() string {
	if m == LiveUpdate {
		return "live-update"
	}
	return "builder"
}

// CommandKind tags the variant of a Command.
type CommandKind int

const (
	KindMqSetup CommandKind = iota
	KindAddSite
	KindAddCircuit
	KindChangeSiteSpeedLive
	KindStormGuardAdjustment

	// Batch-control and activity kinds are non-emitting: ToCommands'
	// default branch returns (nil, false) for them. Engine.StartBatch/
	// CommitBatch and Executor.NotifyActivity/Tick implement that control
	// flow directly rather than routing a Command through the encoder, so
	// nothing in this tree constructs one of these kinds; they exist so the
	// variant set names every intent a producer can express.
	KindStartBatch
	KindCommitBatch
	KindOnCircuitActivity
	KindTick
)

// Command is a closed, tagged-variant description of a single intended
// mutation (or batch-control instruction). Only the fields relevant to its
// Kind are populated; the encoder dispatches purely on Kind.
type Command struct {
	Kind CommandKind

	// MqSetup
	QueuesAvailable uint64
	StickOffset     uint64

	// AddSite / AddCircuit / ChangeSiteSpeedLive
	SiteHash         int64
	CircuitHash      int64
	ParentClassID    Handle
	UpParentClassID  Handle
	ClassMinor       uint16
	ClassMajor       uint16
	UpClassMajor     uint16
	DownloadMin      float32
	UploadMin        float32
	DownloadMax      float32
	UploadMax        float32
	IPAddresses      string

	// StormGuardAdjustment
	DryRun        bool
	InterfaceName string
	ClassID       string
	NewRateMbps   uint64

	// CircuitIDs belongs to KindOnCircuitActivity. As noted above,
	// Executor.NotifyActivity takes a circuit hash directly rather than
	// building a Command, so this field is never populated in practice.
	CircuitIDs map[int64]struct{}
}

// ArgVec is a single `tc` invocation's argument list, not including the
// `tc` binary itself.
type ArgVec []string
