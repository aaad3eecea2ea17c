// Package eventlog writes the append-only, newline-delimited JSON business
// event stream (§6), distinct from process-lifecycle logging. Adapted from
// the teacher's rotatingWriter, generalized from timestamped-file-per-run
// rotation to the spec's numbered path -> path.1 -> path.2 -> ... scheme.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Type is one of the closed set of event kinds (§6).
type Type string

const (
	TypeStartup        Type = "startup"
	TypeScanSummary    Type = "scan_summary"
	TypeCandidate      Type = "candidate"
	TypeCandidateError Type = "candidate_error"
	TypeSkip           Type = "skip"
	TypeTriggerStart   Type = "trigger_start"
	TypeTriggerStats   Type = "trigger_stats"
	TypeTriggerArm     Type = "trigger_arm"
	TypeTriggerFire    Type = "trigger_fire"
	TypePreflight      Type = "preflight"
	TypeBuilt          Type = "built"
	TypeSimulate       Type = "simulate"
	TypeExecuted       Type = "executed"
	TypeJitoBundle     Type = "jito_bundle"
	TypeConfirmError   Type = "confirm_error"
	TypeRateLimit      Type = "rate_limit"
	TypeOpenOceanSkip  Type = "openocean_skip"
	TypeWarning        Type = "warning"
	TypeError          Type = "error"
	TypeExit           Type = "exit"
	TypeShutdown       Type = "shutdown"
)

var validTypes = map[Type]struct{}{
	TypeStartup: {}, TypeScanSummary: {}, TypeCandidate: {}, TypeCandidateError: {},
	TypeSkip: {}, TypeTriggerStart: {}, TypeTriggerStats: {}, TypeTriggerArm: {},
	TypeTriggerFire: {}, TypePreflight: {}, TypeBuilt: {}, TypeSimulate: {},
	TypeExecuted: {}, TypeJitoBundle: {}, TypeConfirmError: {}, TypeRateLimit: {},
	TypeOpenOceanSkip: {}, TypeWarning: {}, TypeError: {}, TypeExit: {}, TypeShutdown: {},
}

// Fields carries the free-form payload of one event.
type Fields map[string]any

type record struct {
	Ts     string `json:"ts"`
	Type   Type   `json:"type"`
	Fields Fields `json:"fields,omitempty"`
}

// Log is the append-only NDJSON writer with size-based rotation, serialized
// through a per-file mutex sequencer (§6).
type Log struct {
	mu            sync.Mutex
	path          string
	file          *os.File
	size          int64
	rotateEnabled bool
	maxSize       int64
	maxFiles      int
	verbose       bool
}

// Options configures rotation and verbosity.
type Options struct {
	Path          string
	RotateEnabled bool
	MaxSizeBytes  int64
	MaxFiles      int
	Verbose       bool // when false, simulate and non-profitable candidate events are dropped (§7)
}

// Open opens (creating if needed) the event log file for appending.
func Open(opts Options) (*Log, error) {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 5
	}
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = 50 * 1024 * 1024
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening %s: %w", opts.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("eventlog: stat %s: %w", opts.Path, err)
	}
	return &Log{
		path:          opts.Path,
		file:          f,
		size:          info.Size(),
		rotateEnabled: opts.RotateEnabled,
		maxSize:       opts.MaxSizeBytes,
		maxFiles:      opts.MaxFiles,
		verbose:       opts.Verbose,
	}, nil
}

// Write appends one event, rotating the file first if this write would
// exceed the configured max size (§6, §8: line ordering is preserved across
// rotated files).
func (l *Log) Write(t Type, fields Fields) error {
	if _, ok := validTypes[t]; !ok {
		return fmt.Errorf("eventlog: unknown event type %q", t)
	}
	if !l.verbose && (t == TypeSimulate || (t == TypeCandidate && !isProfitable(fields))) {
		return nil
	}

	line, err := json.Marshal(record{Ts: time.Now().UTC().Format(time.RFC3339Nano), Type: t, Fields: fields})
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotateEnabled && l.size+int64(len(line)) > l.maxSize {
		if err := l.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("eventlog: write: %w", err)
	}
	return nil
}

func isProfitable(fields Fields) bool {
	v, ok := fields["profitable"]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// rotateLocked shifts path -> path.1 -> path.2 -> ... up to maxFiles,
// dropping the oldest, then reopens path fresh. Caller holds l.mu.
func (l *Log) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("eventlog: closing before rotate: %w", err)
	}

	oldest := fmt.Sprintf("%s.%d", l.path, l.maxFiles-1)
	_ = os.Remove(oldest)
	for i := l.maxFiles - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", l.path, i-1)
		if i == 1 {
			src = l.path
		}
		dst := fmt.Sprintf("%s.%d", l.path, i)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: reopening after rotate: %w", err)
	}
	l.file = f
	l.size = 0
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
