package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a trace trail.
type VerifyResult struct {
	EventCount int
	Valid      bool
	BrokenAt   int // -1 if no break
	Events     []Event
	Error      string
}

// VerifyFile verifies the hash chain of a trace file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify reads a trail and checks that every event names the hash of
// the line before it. A broken chain is reported in the result; only
// read failures are returned as errors.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	expected := Genesis
	res := &VerifyResult{Valid: true, BrokenAt: -1}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		res.EventCount++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			res.Valid, res.BrokenAt = false, res.EventCount
			res.Error = fmt.Sprintf("event %d: invalid JSON: %v", res.EventCount, err)
			return res, nil
		}
		if evt.PrevHash != expected {
			res.Valid, res.BrokenAt = false, res.EventCount
			res.Error = fmt.Sprintf("event %d: prev_hash mismatch (expected %s, got %q)", res.EventCount, expected[:16]+"...", evt.PrevHash)
			return res, nil
		}
		h := sha256.Sum256(line)
		expected = hex.EncodeToString(h[:])
		res.Events = append(res.Events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return res, nil
}
