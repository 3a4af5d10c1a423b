// Package audit writes a compressed JSONL trail of executed commands and
// finished reports, one file per hour.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"geovoxel.dev/internal/protocol"
)

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// CommandEntry is one executed command.
type CommandEntry struct {
	Time           string `json:"time"`
	RunID          string `json:"run_id"`
	Command        string `json:"command"`
	Success        bool   `json:"success"`
	BlocksAffected *int64 `json:"blocks_affected,omitempty"`
	ErrKind        string `json:"error,omitempty"`
	ElapsedMS      int64  `json:"elapsed_ms"`
}

// ReportEntry is one finished batch.
type ReportEntry struct {
	Time   string                   `json:"time"`
	Report protocol.ExecutionReport `json:"report"`
}

// Logger writes command and report entries under dir/commands and
// dir/reports.
type Logger struct {
	commands *jsonlZstdWriter
	reports  *jsonlZstdWriter
}

func NewLogger(dir string) *Logger {
	return &Logger{
		commands: newJSONLZstdWriter(filepath.Join(dir, "commands"), "commands"),
		reports:  newJSONLZstdWriter(filepath.Join(dir, "reports"), "reports"),
	}
}

func (l *Logger) WriteCommand(runID, command string, res protocol.CommandResult) error {
	return l.commands.Write(CommandEntry{
		Time:           time.Now().UTC().Format(time.RFC3339Nano),
		RunID:          runID,
		Command:        command,
		Success:        res.Success,
		BlocksAffected: res.BlocksAffected,
		ErrKind:        res.ErrKind,
		ElapsedMS:      res.Elapsed.Milliseconds(),
	})
}

func (l *Logger) WriteReport(r protocol.ExecutionReport) error {
	return l.reports.Write(ReportEntry{
		Time:   time.Now().UTC().Format(time.RFC3339Nano),
		Report: r,
	})
}

func (l *Logger) Close() error {
	err1 := l.commands.Close()
	err2 := l.reports.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
