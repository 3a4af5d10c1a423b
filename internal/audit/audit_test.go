package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"geovoxel.dev/internal/protocol"
)

func TestLogger_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	blocks := int64(121)
	res := protocol.CommandResult{
		Success:        true,
		RawResponse:    "Successfully filled 121 blocks",
		BlocksAffected: &blocks,
		Elapsed:        42 * time.Millisecond,
	}
	if err := l.WriteCommand("run-1", "fill 0 100 0 10 100 10 stone", res); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if err := l.WriteReport(protocol.ExecutionReport{RunID: "run-1", Success: true, CommandsExecuted: 1}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readZstdJSONL[CommandEntry](t, filepath.Join(dir, "commands"))
	if len(entries) != 1 {
		t.Fatalf("command entries = %d", len(entries))
	}
	e := entries[0]
	if e.RunID != "run-1" || !e.Success || e.BlocksAffected == nil || *e.BlocksAffected != 121 {
		t.Fatalf("entry = %+v", e)
	}
	if e.ElapsedMS != 42 {
		t.Fatalf("elapsed = %d, want 42", e.ElapsedMS)
	}

	reports := readZstdJSONL[ReportEntry](t, filepath.Join(dir, "reports"))
	if len(reports) != 1 || reports[0].Report.RunID != "run-1" {
		t.Fatalf("reports = %+v", reports)
	}
}

func readZstdJSONL[T any](t *testing.T, dir string) []T {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("glob %s: %v (%d matches)", dir, err, len(matches))
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []T
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}
