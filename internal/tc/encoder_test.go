package tc

import (
	"testing"

	"github.com/lqos-tc/bakery/internal/config"
)

func TestMqSetup_TwoQueuesTwoInterfaces(t *testing.T) {
	cfg := testConfig()
	cmd := Command{Kind: KindMqSetup, QueuesAvailable: 2, StickOffset: 0}

	argv, ok := ToCommands(cmd, cfg, Builder, testLogger())
	if !ok {
		t.Fatal("expected MqSetup to emit commands")
	}
	// 2 root deletes + 2 root replaces + 2 interfaces * 2 queues * 5 commands = 24.
	if got, want := len(argv), 24; got != want {
		t.Fatalf("MqSetup emitted %d argv vectors, want %d", got, want)
	}
	if !MqCreated() {
		t.Error("expected MqCreated() to be true after MqSetup")
	}

	// Each per-queue HTB qdisc attaches under its own MQ leaf, indexed by
	// queue number, never all under the same parent.
	var qdiscParents []string
	for _, a := range argv {
		if len(a) >= 8 && a[0] == "qdisc" && a[1] == "add" && a[4] == "parent" && a[6] == "handle" {
			qdiscParents = append(qdiscParents, a[5])
		}
	}
	wantParents := []string{"7FFF:0x1", "7FFF:0x2", "7FFF:0x1", "7FFF:0x2"}
	if !equalTokens(qdiscParents, wantParents) {
		t.Errorf("per-queue qdisc parents = %v, want %v", qdiscParents, wantParents)
	}
}

func TestMqSetup_OnAStick_SingleRootOps(t *testing.T) {
	cfg := testConfig()
	cfg.OnAStickMode = true
	cmd := Command{Kind: KindMqSetup, QueuesAvailable: 1, StickOffset: 1}

	argv, ok := ToCommands(cmd, cfg, Builder, testLogger())
	if !ok {
		t.Fatal("expected MqSetup to emit commands")
	}

	var rootDeletes, rootReplaces int
	for _, a := range argv {
		if len(a) >= 3 && a[0] == "qdisc" && a[1] == "del" && a[len(a)-1] == "root" {
			rootDeletes++
		}
		if len(a) >= 2 && a[0] == "qdisc" && a[1] == "replace" {
			rootReplaces++
		}
		// Every emitted command must target the single ISP interface.
		if len(a) >= 4 && a[2] == "dev" && a[3] != cfg.ISPInterface() {
			t.Errorf("on-a-stick command targeted unexpected interface: %v", a)
		}
	}
	if rootDeletes != 1 {
		t.Errorf("expected exactly 1 root delete, got %d", rootDeletes)
	}
	if rootReplaces != 1 {
		t.Errorf("expected exactly 1 mq replace, got %d", rootReplaces)
	}
}

func TestAddSite_RatesAndPrio(t *testing.T) {
	cfg := testConfig()
	cmd := Command{
		Kind:            KindAddSite,
		SiteHash:        1,
		ParentClassID:   Handle{Major: 1, Minor: 1},
		UpParentClassID: Handle{Major: 1, Minor: 1},
		ClassMinor:      0x10,
		DownloadMin:     100,
		UploadMin:       50,
		DownloadMax:     1000,
		UploadMax:       500,
	}

	argv, ok := ToCommands(cmd, cfg, Builder, testLogger())
	if !ok || len(argv) != 2 {
		t.Fatalf("expected 2 commands, got %d (ok=%v)", len(argv), ok)
	}
	assertContainsTokens(t, argv[0], "rate", "100mbit")
	assertContainsTokens(t, argv[0], "ceil", "1000mbit")
	assertContainsTokens(t, argv[0], "prio", "3")
	assertContainsTokens(t, argv[1], "rate", "50mbit")
	assertContainsTokens(t, argv[1], "ceil", "500mbit")
}

func TestAddCircuit_LiveUpdateHtb_EmitsOnlySQM(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.LazyQueues = config.LazyHtb
	cmd := circuitCommand()

	argv, ok := ToCommands(cmd, cfg, LiveUpdate, testLogger())
	if !ok {
		t.Fatal("expected commands")
	}
	if len(argv) != 2 {
		t.Fatalf("expected exactly 2 SQM commands, got %d: %v", len(argv), argv)
	}
	for _, a := range argv {
		if a[0] != "qdisc" {
			t.Errorf("expected only qdisc (SQM) commands, got %v", a)
		}
	}
}

func TestAddCircuit_BuilderFull_EmitsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.LazyQueues = config.LazyFull
	cmd := circuitCommand()

	argv, ok := ToCommands(cmd, cfg, Builder, testLogger())
	if ok {
		t.Fatalf("expected no commands, got %v", argv)
	}
	if argv != nil {
		t.Errorf("expected nil argv, got %v", argv)
	}
}

func TestAddCircuit_MonitorOnly_SuppressesSQM(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.MonitorOnly = true
	cmd := circuitCommand()

	argv, ok := ToCommands(cmd, cfg, Builder, testLogger())
	if !ok {
		t.Fatal("expected commands")
	}
	for _, a := range argv {
		if a[0] == "qdisc" {
			t.Errorf("monitor-only should suppress SQM, got %v", a)
		}
	}
	if len(argv) != 2 {
		t.Errorf("expected exactly 2 HTB commands under monitor-only, got %d", len(argv))
	}
}

func TestStormGuardAdjustment_RateWindow(t *testing.T) {
	cmd := Command{
		Kind:          KindStormGuardAdjustment,
		DryRun:        true,
		InterfaceName: "eth0",
		ClassID:       "1:2",
		NewRateMbps:   500,
	}
	argv, ok := ToCommands(cmd, testConfig(), LiveUpdate, testLogger())
	if !ok || len(argv) != 1 {
		t.Fatalf("expected 1 command, got %d (ok=%v)", len(argv), ok)
	}
	want := ArgVec{"class", "change", "dev", "eth0", "classid", "1:2", "htb", "rate", "499mbit", "ceil", "500mbit"}
	if !equalTokens(argv[0], want) {
		t.Errorf("StormGuardAdjustment argv = %v, want %v", argv[0], want)
	}
}

func TestToPrune_NonCircuitCommandIsSkipped(t *testing.T) {
	cmd := Command{Kind: KindAddSite}
	if argv, ok := ToPrune(cmd, testConfig(), true, testLogger()); ok {
		t.Errorf("expected ToPrune to skip non-circuit command, got %v", argv)
	}
}

func circuitCommand() Command {
	return Command{
		Kind:            KindAddCircuit,
		CircuitHash:     42,
		ParentClassID:   Handle{Major: 1, Minor: 1},
		UpParentClassID: Handle{Major: 1, Minor: 1},
		ClassMinor:      0x20,
		ClassMajor:      1,
		UpClassMajor:    1,
		DownloadMin:     10,
		UploadMin:       5,
		DownloadMax:     100,
		UploadMax:       50,
	}
}

func assertContainsTokens(t *testing.T, argv ArgVec, key, val string) {
	t.Helper()
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == key && argv[i+1] == val {
			return
		}
	}
	t.Errorf("argv %v missing %q %q", argv, key, val)
}
