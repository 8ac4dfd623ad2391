package audit

import (
	"bufio"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Report summarizes a chain verification pass.
type Report struct {
	OK        bool `json:"ok"`
	Count     int  `json:"count"`
	ErrorLine int  `json:"errorLine,omitempty"` // 1-based line of the first bad record
}

// IntegrityError marks the first point in the log where the stored chain
// values no longer match recomputation. Trust in the log ends there: every
// later record is transitively unverifiable.
type IntegrityError struct {
	Line     int // 1-based line number of the first bad record
	Verified int // records verified before the failure
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit chain integrity violation at line %d (%d records verified)", e.Line, e.Verified)
}

// VerifyChain re-walks the persisted log from the genesis sentinel and checks
// every record's prevHash linkage, chain hash, and HMAC seal against
// recomputation. It shares no state with the writer: a trailing line without a
// newline is treated as an in-progress append and left unverified, not as
// corruption.
//
// On a mismatch the returned Report has OK=false and the error is an
// *IntegrityError carrying the same position. I/O failures are returned as
// plain errors with a zero Report.
func VerifyChain(path, secret string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	return verify(f, []byte(secret))
}

func verify(r io.Reader, secret []byte) (Report, error) {
	br := bufio.NewReader(r)
	prev := genesisHash
	count := 0
	line := 0

	for {
		raw, err := br.ReadString('\n')
		if err == io.EOF {
			// No trailing newline: a writer may still be mid-append.
			break
		}
		if err != nil {
			return Report{}, fmt.Errorf("read audit log: %w", err)
		}
		line++
		if strings.TrimSpace(raw) == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return failure(count, line)
		}

		body, err := canonicalBytes(rec.Event)
		if err != nil {
			return failure(count, line)
		}
		wantHash := chainHash(prev, bodyHash(body))
		wantHMAC := seal(secret, wantHash)

		if rec.PrevHash != prev || rec.Hash != wantHash || !hmac.Equal([]byte(rec.HMAC), []byte(wantHMAC)) {
			return failure(count, line)
		}

		prev = wantHash
		count++
	}

	return Report{OK: true, Count: count}, nil
}

func failure(verified, line int) (Report, error) {
	return Report{OK: false, Count: verified, ErrorLine: line},
		&IntegrityError{Line: line, Verified: verified}
}
