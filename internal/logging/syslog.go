package logging

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

const (
	defaultSyslogPort = 514
	syslogDialTimeout = 5 * time.Second
	// severityInfo is the RFC 3164 severity stamped on forwarded lines; the
	// structured level already appears in the message body.
	severityInfo = 6
)

// SyslogConfig describes a remote syslog destination.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility int
}

// DefaultSyslogConfig is UDP to port 514, facility user, tag bakeryd,
// disabled until a host is configured.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Port:     defaultSyslogPort,
		Protocol: "udp",
		Tag:      "bakeryd",
		Facility: 1,
	}
}

// SyslogWriter forwards log lines to a remote syslog server in RFC 3164
// framing. It reconnects lazily after a write failure.
type SyslogWriter struct {
	mu   sync.Mutex
	conn net.Conn
	cfg  SyslogConfig
}

// NewSyslogWriter dials the configured server and returns a writer bound to
// it.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSyslogPort
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "bakeryd"
	}

	conn, err := dialSyslog(cfg)
	if err != nil {
		return nil, err
	}
	return &SyslogWriter{conn: conn, cfg: cfg}, nil
}

func dialSyslog(cfg SyslogConfig) (net.Conn, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, err := net.DialTimeout(cfg.Protocol, addr, syslogDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to syslog server %s: %w", addr, err)
	}
	return conn, nil
}

// Write frames p as <priority>timestamp hostname tag: message and sends it;
// the hostname field is always the fixed string "bakeryd".
// On failure it drops the line, attempts one reconnect, and reports the
// original error.
func (w *SyslogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return 0, fmt.Errorf("syslog connection closed")
	}

	priority := w.cfg.Facility*8 + severityInfo
	line := fmt.Sprintf("<%d>%s %s %s: %s",
		priority, time.Now().Format(time.Stamp), "bakeryd", w.cfg.Tag, p)

	if _, err := w.conn.Write([]byte(line)); err != nil {
		w.conn.Close()
		if conn, dialErr := dialSyslog(w.cfg); dialErr == nil {
			w.conn = conn
		} else {
			log.Printf("[syslog] reconnect failed: %v", dialErr)
		}
		return 0, err
	}
	return len(p), nil
}

// Close shuts the connection down; subsequent writes fail.
func (w *SyslogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// MultiWriter fans log output to several destinations, typically stderr
// plus a SyslogWriter.
func MultiWriter(writers ...io.Writer) io.Writer {
	return io.MultiWriter(writers...)
}
