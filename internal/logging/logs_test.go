package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseSyslogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syslog")
	content := `Dec  5 12:34:56 myhost myproc[123]: info message
Dec  5 12:35:00 myhost myproc[123]: error occurred
Dec  5 12:35:10 myhost myproc[123]: warning: disk full
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries := parseSyslogFile(path, LogFilter{})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	wantLevels := []string{"info", "error", "warn"}
	for i, want := range wantLevels {
		if entries[i].Level != want {
			t.Errorf("entry %d level = %q, want %q", i, entries[i].Level, want)
		}
	}
	if got, want := entries[0].Facility, "myproc[123]"; got != want {
		t.Errorf("facility = %q, want %q", got, want)
	}
	if entries[0].Timestamp.Year() != time.Now().Year() {
		t.Errorf("expected current year to be assumed, got %d", entries[0].Timestamp.Year())
	}
}

func TestParseSyslogFile_MissingFileIsEmpty(t *testing.T) {
	entries := parseSyslogFile("/nonexistent/syslog", LogFilter{})
	if len(entries) != 0 {
		t.Errorf("expected no entries for a missing file, got %d", len(entries))
	}
}

func TestGuessLevel(t *testing.T) {
	cases := map[string]string{
		"link up":                    "info",
		"qdisc deletion failed":      "error",
		"warning: quantum too large": "warn",
		"debug: probing interface":   "debug",
		"CRITICAL fault":             "error",
	}
	for msg, want := range cases {
		if got := guessLevel(msg); got != want {
			t.Errorf("guessLevel(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestKeep_Filters(t *testing.T) {
	base := LogEntry{
		Timestamp: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:     "error",
		Message:   "htb: quantum of class 10001 is big",
	}

	if !keep(base, LogFilter{}) {
		t.Error("empty filter should keep everything")
	}
	if keep(base, LogFilter{Level: "info"}) {
		t.Error("level mismatch should drop the entry")
	}
	if !keep(base, LogFilter{Search: "QUANTUM"}) {
		t.Error("search should be case-insensitive")
	}
	if keep(base, LogFilter{Search: "nftables"}) {
		t.Error("non-matching search should drop the entry")
	}
	if keep(base, LogFilter{Since: base.Timestamp.Add(time.Hour)}) {
		t.Error("entries older than Since should be dropped")
	}
}

func TestGetLogs_RingBackedSources(t *testing.T) {
	AppLog().Clear()
	SchedulerLog("info", "tick completed in %dms", 12)
	OverrideLog("error", "parse failed")

	r := NewLogReader()

	scheduler, err := r.GetLogs(LogFilter{Source: LogSourceScheduler})
	if err != nil {
		t.Fatal(err)
	}
	if len(scheduler) != 1 || scheduler[0].Message != "tick completed in 12ms" {
		t.Errorf("unexpected scheduler entries: %+v", scheduler)
	}

	overrides, err := r.GetLogs(LogFilter{Source: LogSourceOverrides, Level: "error"})
	if err != nil {
		t.Fatal(err)
	}
	if len(overrides) != 1 {
		t.Errorf("expected 1 override error entry, got %d", len(overrides))
	}
}

func TestGetLogs_ServiceIncludesRingHistory(t *testing.T) {
	AppLog().Clear()
	TCLog("error", "dispatch failed: exit status 2")

	r := NewLogReader()
	entries, err := r.GetLogs(LogFilter{Source: LogSourceService, Search: "dispatch"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 service entry, got %d", len(entries))
	}
	if entries[0].Facility != "tc" {
		t.Errorf("expected originating source preserved as facility, got %q", entries[0].Facility)
	}
}

func TestTail(t *testing.T) {
	entries := []LogEntry{{Message: "a"}, {Message: "b"}, {Message: "c"}}
	got := tail(entries, 2)
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Errorf("tail kept the wrong entries: %+v", got)
	}
	if len(tail(entries, 10)) != 3 {
		t.Error("tail should be a no-op when under the limit")
	}
}
