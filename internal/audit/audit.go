package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/memview/internal/logging"
	"github.com/breeze-rmm/memview/internal/terminate"
)

var log = logging.L("audit")

// Event types for audit logging.
const (
	EventKillRequested = "kill_requested"
	EventKillOutcome   = "kill_outcome"
	EventLogRotated    = "log_rotated"
)

const genesisHash = "genesis"

// criticalEvents are event types that require fsync after writing.
var criticalEvents = map[string]bool{
	EventKillRequested: true,
	EventKillOutcome:   true,
}

// Entry is a single audit log record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"eventType"`
	PID       int32          `json:"pid,omitempty"`
	User      string         `json:"user,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prevHash"`
	EntryHash string         `json:"entryHash"`
}

// Logger writes tamper-evident JSONL audit logs with a SHA-256 hash chain.
// On rotation a sentinel entry (EventLogRotated) is written as the first
// record of the new file, with prevHash linking to the last entry of the old one.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
	prevHash   string
	user       string
	dropped    atomic.Int64
}

// NewLogger opens (or creates) the audit log at path. When the file already
// holds entries, the chain continues from its last hash.
func NewLogger(path string, maxSizeMB, maxBackups int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}

	l := &Logger{
		filePath:   path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		prevHash:   genesisHash,
		user:       currentUser(),
	}

	if last, err := lastHash(path); err != nil {
		log.Warn("could not resume audit hash chain, starting a new one", "path", path, "error", err)
	} else if last != "" {
		l.prevHash = last
	}

	if err := l.openFile(); err != nil {
		return nil, err
	}

	log.Debug("audit logger started", "path", path)
	return l, nil
}

// Log writes a single audit entry with hash chain linking.
// The chain only advances after a successful write, so a failed write leaves
// the next entry linking to the same prevHash.
// Safe to call on a nil receiver (no-op).
func (l *Logger) Log(eventType string, pid int32, details map[string]any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: eventType,
		PID:       pid,
		User:      l.user,
		Details:   details,
		PrevHash:  l.prevHash,
	}

	entryHash, err := computeHash(entry)
	if err != nil {
		log.Error("failed to compute audit entry hash", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	entry.EntryHash = entryHash

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("failed to marshal audit entry", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	if l.written+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			log.Error("audit log rotation failed", "error", err)
			l.dropped.Add(1)
			return
		}
		entry.PrevHash = l.prevHash
		if entry.EntryHash, err = computeHash(entry); err != nil {
			l.dropped.Add(1)
			return
		}
		if data, err = json.Marshal(entry); err != nil {
			l.dropped.Add(1)
			return
		}
		data = append(data, '\n')
	}

	n, err := l.file.Write(data)
	if err != nil {
		log.Error("failed to write audit entry", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	l.written += int64(n)
	l.prevHash = entry.EntryHash

	if criticalEvents[eventType] {
		if err := l.file.Sync(); err != nil {
			log.Error("failed to fsync critical audit entry", "error", err, "eventType", eventType)
		}
	}
}

// KillRequested records the intent to kill pid before any signal is sent.
func (l *Logger) KillRequested(pid int32, name string, grace time.Duration) {
	l.Log(EventKillRequested, pid, map[string]any{
		"name":        name,
		"gracePeriod": grace.String(),
	})
}

// KillOutcome records how a kill request ended.
func (l *Logger) KillOutcome(o terminate.Outcome) {
	details := map[string]any{
		"outcome":   string(o.Kind),
		"escalated": o.Escalated,
	}
	if o.Detail != "" {
		details["detail"] = o.Detail
	}
	l.Log(EventKillOutcome, o.PID, details)
}

// Close flushes and closes the audit log file.
// Safe to call on a nil receiver (no-op).
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// DroppedCount returns the number of audit entries that failed to write.
// Returns -1 if the logger is nil, distinguishing "logger not available"
// from "logger working with zero drops".
func (l *Logger) DroppedCount() int64 {
	if l == nil {
		return -1
	}
	return l.dropped.Load()
}

// Verify re-hashes every entry of the file at path and checks the chain
// links. It returns the number of valid entries read before the first break.
func Verify(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var (
		n    int
		prev string
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		// the first entry of a rotated file links into the previous file
		if n > 0 && e.PrevHash != prev {
			return n, fmt.Errorf("line %d: chain broken, prevHash %q does not match %q", n+1, e.PrevHash, prev)
		}
		want, err := computeHash(e)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		if want != e.EntryHash {
			return n, fmt.Errorf("line %d: entry hash mismatch", n+1)
		}
		prev = e.EntryHash
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read audit log: %w", err)
	}
	return n, nil
}

// computeHash produces the SHA-256 hash for an audit entry. Fields are
// length-prefixed so that no two field combinations serialize identically.
func computeHash(entry Entry) (string, error) {
	h := sha256.New()
	pid := ""
	if entry.PID != 0 {
		pid = strconv.FormatInt(int64(entry.PID), 10)
	}
	for _, field := range []string{entry.Timestamp, entry.EventType, pid, entry.User, entry.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if entry.Details != nil {
		detailBytes, err := json.Marshal(entry.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details for hash: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(detailBytes))
		h.Write(detailBytes)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}

	l.file = f
	l.written = info.Size()
	return nil
}

func (l *Logger) rotate() error {
	prevHashBeforeRotation := l.prevHash

	if l.file != nil {
		l.file.Close()
	}

	// Shift existing backups: .3 → delete, .2 → .3, .1 → .2
	for i := l.maxBackups; i >= 2; i-- {
		src := l.backupName(i - 1)
		dst := l.backupName(i)
		if i == l.maxBackups {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Warn("audit log rotation: failed to remove oldest backup", "path", dst, "error", err)
			}
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			log.Warn("audit log rotation: failed to rename backup", "src", src, "dst", dst, "error", err)
		}
	}

	if err := os.Rename(l.filePath, l.backupName(1)); err != nil && !os.IsNotExist(err) {
		log.Warn("audit log rotation: failed to rename current log", "error", err)
	}

	if err := l.openFile(); err != nil {
		return err
	}

	sentinel := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: EventLogRotated,
		User:      l.user,
		PrevHash:  prevHashBeforeRotation,
		Details: map[string]any{
			"previousFile": l.backupName(1),
		},
	}
	sentinelHash, err := computeHash(sentinel)
	if err != nil {
		log.Error("rotation sentinel hash failed, hash chain broken", "error", err)
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	sentinel.EntryHash = sentinelHash

	data, err := json.Marshal(sentinel)
	if err != nil {
		log.Error("rotation sentinel marshal failed, hash chain broken", "error", err)
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	data = append(data, '\n')

	n, writeErr := l.file.Write(data)
	if writeErr != nil {
		log.Error("rotation sentinel write failed, hash chain broken", "error", writeErr)
		l.dropped.Add(1)
		l.prevHash = "chain-broken"
		return nil
	}
	l.written += int64(n)
	l.prevHash = sentinel.EntryHash

	return nil
}

func (l *Logger) backupName(index int) string {
	if index == 0 {
		return l.filePath
	}
	return fmt.Sprintf("%s.%d", l.filePath, index)
}

// lastHash returns the entryHash of the final line in path, or "" for a
// missing or empty file.
func lastHash(path string) (string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			last = append(last[:0], scanner.Bytes()...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if last == nil {
		return "", nil
	}
	var e Entry
	if err := json.Unmarshal(last, &e); err != nil {
		return "", err
	}
	return e.EntryHash, nil
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
