package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufLogger(json bool, level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Output: &buf, JSON: json}), &buf
}

func TestLogger_LevelsReachOutput(t *testing.T) {
	logger, buf := newBufLogger(true, LevelDebug)

	for _, msg := range []string{"debug msg", "info msg", "warn msg", "error msg"} {
		buf.Reset()
		switch msg {
		case "debug msg":
			logger.Debug(msg)
		case "info msg":
			logger.Info(msg)
		case "warn msg":
			logger.Warn(msg)
		case "error msg":
			logger.Error(msg)
		}
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("expected output to contain %q, got %q", msg, buf.String())
		}
	}
}

func TestLogger_DynamicLevel(t *testing.T) {
	logger, buf := newBufLogger(true, LevelDebug)

	logger.SetLevel(LevelError)
	if logger.GetLevel() != LevelError {
		t.Fatalf("GetLevel() = %v after SetLevel(LevelError)", logger.GetLevel())
	}

	buf.Reset()
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info line emitted despite error floor: %q", buf.String())
	}

	logger.Error("still visible")
	if !strings.Contains(buf.String(), "still visible") {
		t.Error("error line missing despite error floor")
	}
}

func TestLogger_ChildSharesLevel(t *testing.T) {
	logger, buf := newBufLogger(true, LevelInfo)
	child := logger.WithComponent("engine")

	logger.SetLevel(LevelError)
	buf.Reset()
	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("child ignored parent's level change: %q", buf.String())
	}
}

func TestLogger_WithComponentJSON(t *testing.T) {
	logger, buf := newBufLogger(true, LevelInfo)
	logger.WithComponent("batch").Info("committed")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if record["component"] != "batch" {
		t.Errorf("component = %v, want batch", record["component"])
	}
}

func TestLogger_WithFields(t *testing.T) {
	logger, buf := newBufLogger(true, LevelInfo)
	logger.WithFields(map[string]any{"circuit_hash": 42}).Info("materialized")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if record["circuit_hash"] != float64(42) {
		t.Errorf("circuit_hash = %v, want 42", record["circuit_hash"])
	}
}

func TestLogger_Audit(t *testing.T) {
	logger, buf := newBufLogger(true, LevelInfo)
	logger.Audit("commit", "batch", map[string]any{"commands": 7})

	out := buf.String()
	for _, want := range []string{"AUDIT", "commit", "batch"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit output missing %q: %q", want, out)
		}
	}
}

func TestConsoleHandler_LineShape(t *testing.T) {
	logger, buf := newBufLogger(false, LevelInfo)
	logger.WithComponent("tc").Info("dispatch failed", "argv", "qdisc del")

	line := buf.String()
	if !strings.Contains(line, "[info]") {
		t.Errorf("line missing level tag: %q", line)
	}
	if !strings.Contains(line, "tc:") {
		t.Errorf("line missing promoted component: %q", line)
	}
	if !strings.Contains(line, `argv="qdisc del"`) {
		t.Errorf("line missing quoted attribute: %q", line)
	}
}

func TestConsoleHandler_MirrorsToRingBuffer(t *testing.T) {
	AppLog().Clear()
	logger, _ := newBufLogger(false, LevelInfo)
	logger.WithComponent("overrides").Info("loaded")

	entries := AppLog().BySource("overrides", 0)
	if len(entries) == 0 {
		t.Fatal("expected console output to be mirrored into the ring buffer")
	}
	last := entries[len(entries)-1]
	if last.Message != "loaded" {
		t.Errorf("ring entry message = %q, want loaded", last.Message)
	}
}

func TestPrefix(t *testing.T) {
	old := GetPrefix()
	defer SetPrefix(old)

	SetPrefix("testproc")
	logger, buf := newBufLogger(false, LevelInfo)
	logger.Info("hello")
	if !strings.Contains(buf.String(), "testproc[") {
		t.Errorf("line missing process prefix: %q", buf.String())
	}
}
