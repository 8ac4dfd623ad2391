package audit

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// genesisHash seeds the chain before the first record.
const genesisHash = "GENESIS"

// ChainLogger appends hash-chained, HMAC-sealed records to a newline-delimited
// log file. It owns the prevHash cursor for its log target: all appends to the
// same file must go through one ChainLogger instance, and the internal mutex
// guarantees at most one in-flight append at a time.
type ChainLogger struct {
	mu       sync.Mutex
	path     string
	secret   []byte
	prevHash string
	file     *os.File
}

// OpenChainLogger opens (creating if necessary) the log at path and positions
// the chain cursor. For an existing log the cursor resumes from the last
// complete record's hash so restarts keep the chain intact; a trailing partial
// line is ignored.
func OpenChainLogger(path, secret string) (*ChainLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	prev, err := lastChainHash(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &ChainLogger{
		path:     path,
		secret:   []byte(secret),
		prevHash: prev,
		file:     f,
	}, nil
}

// Record seals the event and appends it to the log. Missing defaults are
// filled: a fresh UUID id, the current unix-ms timestamp, outcome success and
// phi false. The returned Record is the exact persisted line.
func (l *ChainLogger) Record(ctx context.Context, ev Event) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := ev.Validate(); err != nil {
		return Record{}, err
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.TS == 0 {
		ev.TS = time.Now().UnixMilli()
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeSuccess
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}

	body, err := canonicalBytes(ev)
	if err != nil {
		return Record{}, fmt.Errorf("canonicalize audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		Event:    ev,
		PrevHash: l.prevHash,
	}
	rec.Hash = chainHash(l.prevHash, bodyHash(body))
	rec.HMAC = seal(l.secret, rec.Hash)

	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return Record{}, fmt.Errorf("append audit record: %w", err)
	}

	// Advance the cursor only after the line is durably handed to the OS;
	// a failed write leaves the chain positioned at the last good record.
	l.prevHash = rec.Hash
	return rec, nil
}

// Path returns the log target this logger owns.
func (l *ChainLogger) Path() string {
	return l.path
}

// Close releases the underlying file. The logger must not be used afterwards.
func (l *ChainLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// lastChainHash scans an existing log for the hash of its final complete
// record, returning the genesis sentinel for a missing or empty file.
func lastChainHash(path string) (string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return genesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	prev := genesisHash
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			// A final chunk without a newline is an in-progress append
			// from a crashed writer; it is not part of the chain.
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec Record
		if jsonErr := json.Unmarshal([]byte(line), &rec); jsonErr != nil {
			return "", fmt.Errorf("audit log %s contains an unparseable record: %w", path, jsonErr)
		}
		prev = rec.Hash
	}
	return prev, nil
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func chainHash(prev, body string) string {
	sum := sha256.Sum256([]byte(prev + body))
	return hex.EncodeToString(sum[:])
}

func seal(secret []byte, hash string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil))
}
