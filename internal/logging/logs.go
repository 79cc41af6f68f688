package logging

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
)

// LogSource names one of the places the diagnostic surface can pull log
// history from.
type LogSource string

const (
	// LogSourceDmesg is the kernel ring buffer, where qdisc and netlink
	// failures surface.
	LogSourceDmesg LogSource = "dmesg"
	// LogSourceSyslog is the host's /var/log/syslog or /var/log/messages.
	LogSourceSyslog LogSource = "syslog"
	// LogSourceTC is kernel ring-buffer lines about HTB/qdisc/netlink plus
	// bakeryd's own tc dispatch entries.
	LogSourceTC LogSource = "tc"
	// LogSourceScheduler is the periodic tick and backup task history.
	LogSourceScheduler LogSource = "scheduler"
	// LogSourceOverrides is override-file load/save history.
	LogSourceOverrides LogSource = "overrides"
	// LogSourceService is bakeryd's own application log.
	LogSourceService LogSource = "service"
)

// Sources lists every queryable log source.
func Sources() []LogSource {
	return []LogSource{
		LogSourceDmesg, LogSourceSyslog, LogSourceTC,
		LogSourceScheduler, LogSourceOverrides, LogSourceService,
	}
}

// LogEntry is one line of diagnostic history, normalized across sources.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    LogSource `json:"source"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Facility  string    `json:"facility,omitempty"`
}

// LogFilter narrows a GetLogs query.
type LogFilter struct {
	Source LogSource `json:"source,omitempty"`
	Level  string    `json:"level,omitempty"`
	Search string    `json:"search,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

const defaultLogLimit = 500

// LogReader serves the log history an operator needs when a shaping tree
// misbehaves: why a batch commit changed nothing usually lives in dmesg,
// not in bakeryd's own output.
type LogReader struct {
	syslogPaths []string
}

// NewLogReader builds a reader over the standard host log locations.
func NewLogReader() *LogReader {
	return &LogReader{
		syslogPaths: []string{"/var/log/messages", "/var/log/syslog"},
	}
}

// GetLogs returns entries for the filter's source, newest last. An empty
// source merges every source.
func (r *LogReader) GetLogs(filter LogFilter) ([]LogEntry, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultLogLimit
	}

	switch filter.Source {
	case LogSourceDmesg:
		return tail(r.dmesg(filter), filter.Limit), nil
	case LogSourceSyslog:
		return tail(r.syslog(filter), filter.Limit), nil
	case LogSourceTC:
		return tail(r.tcLogs(filter), filter.Limit), nil
	case LogSourceScheduler:
		return tail(fromRing("scheduler", LogSourceScheduler, filter), filter.Limit), nil
	case LogSourceOverrides:
		return tail(fromRing("overrides", LogSourceOverrides, filter), filter.Limit), nil
	case LogSourceService:
		return tail(r.serviceLogs(filter), filter.Limit), nil
	default:
		return r.merged(filter)
	}
}

// dmesg shells out to the kernel ring buffer reader, falling back to the
// flagless form on systems whose dmesg predates -T.
func (r *LogReader) dmesg(filter LogFilter) []LogEntry {
	out, err := exec.Command("dmesg", "-T").Output()
	if err != nil {
		if out, err = exec.Command("dmesg").Output(); err != nil {
			return nil
		}
	}

	humanTS := regexp.MustCompile(`^\[([^\]]+)\]\s*(.*)$`)
	var entries []LogEntry
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		e := LogEntry{Source: LogSourceDmesg, Timestamp: clock.Now()}
		if m := humanTS.FindStringSubmatch(line); m != nil {
			if t, err := time.Parse("Mon Jan  2 15:04:05 2006", m[1]); err == nil {
				e.Timestamp = t
			}
			e.Message = m[2]
		} else {
			e.Message = line
		}
		e.Level = guessLevel(e.Message)
		if keep(e, filter) {
			entries = append(entries, e)
		}
	}
	return entries
}

func (r *LogReader) syslog(filter LogFilter) []LogEntry {
	var entries []LogEntry
	for _, path := range r.syslogPaths {
		entries = append(entries, parseSyslogFile(path, filter)...)
	}
	return entries
}

// tcLogs combines kernel lines about shaping machinery with bakeryd's own
// dispatch-failure entries.
func (r *LogReader) tcLogs(filter LogFilter) []LogEntry {
	var entries []LogEntry
	for _, e := range r.dmesg(LogFilter{Limit: filter.Limit}) {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "htb") || strings.Contains(msg, "qdisc") ||
			strings.Contains(msg, "sch_") || strings.Contains(msg, "netlink") {
			e.Source = LogSourceTC
			if keep(e, filter) {
				entries = append(entries, e)
			}
		}
	}
	entries = append(entries, fromRing("tc", LogSourceTC, filter)...)
	entries = append(entries, fromRing("batch", LogSourceTC, filter)...)
	return entries
}

// serviceLogs is bakeryd's own history: everything the console handler and
// stdio capture mirrored into the ring buffer.
func (r *LogReader) serviceLogs(filter LogFilter) []LogEntry {
	var entries []LogEntry
	for _, e := range AppLog().All() {
		le := LogEntry{
			Timestamp: e.Timestamp,
			Source:    LogSourceService,
			Level:     e.Level,
			Message:   e.Message,
			Facility:  e.Source,
		}
		if keep(le, filter) {
			entries = append(entries, le)
		}
	}
	return entries
}

func (r *LogReader) merged(filter LogFilter) ([]LogEntry, error) {
	var all []LogEntry
	for _, src := range Sources() {
		f := filter
		f.Source = src
		f.Limit = filter.Limit
		entries, err := r.GetLogs(f)
		if err != nil {
			continue
		}
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return tail(all, filter.Limit), nil
}

// fromRing adapts application-log entries of one source into LogEntry form.
func fromRing(ringSource string, as LogSource, filter LogFilter) []LogEntry {
	var entries []LogEntry
	for _, e := range AppLog().BySource(ringSource, 0) {
		le := LogEntry{
			Timestamp: e.Timestamp,
			Source:    as,
			Level:     e.Level,
			Message:   e.Message,
		}
		if keep(le, filter) {
			entries = append(entries, le)
		}
	}
	return entries
}

// syslogLineRe matches the classic "Dec  5 12:34:56 host proc[pid]: msg".
var syslogLineRe = regexp.MustCompile(`^(\w+\s+\d+\s+\d+:\d+:\d+)\s+\S+\s+([^:]+):\s*(.*)$`)

func parseSyslogFile(path string, filter LogFilter) []LogEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		e := LogEntry{Source: LogSourceSyslog, Timestamp: clock.Now()}
		if m := syslogLineRe.FindStringSubmatch(line); m != nil {
			// Syslog timestamps carry no year; assume the current one.
			stamped := fmt.Sprintf("%s %s", m[1], strconv.Itoa(clock.Now().Year()))
			if t, err := time.Parse("Jan  2 15:04:05 2006", stamped); err == nil {
				e.Timestamp = t
			}
			e.Facility = m[2]
			e.Message = m[3]
		} else {
			e.Message = line
		}
		e.Level = guessLevel(e.Message)
		if keep(e, filter) {
			entries = append(entries, e)
		}
	}
	return entries
}

func guessLevel(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "error"), strings.Contains(lower, "fail"),
		strings.Contains(lower, "crit"), strings.Contains(lower, "emerg"):
		return "error"
	case strings.Contains(lower, "warn"):
		return "warn"
	case strings.Contains(lower, "debug"):
		return "debug"
	default:
		return "info"
	}
}

func keep(e LogEntry, f LogFilter) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Search)) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

func tail(entries []LogEntry, limit int) []LogEntry {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}
	return entries[len(entries)-limit:]
}
