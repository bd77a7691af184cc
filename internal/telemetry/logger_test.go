package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitLogger_DefaultLevelIsInfo(t *testing.T) {
	InitLogger(false, "")
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level disabled by default")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info level enabled by default")
	}
}

func TestInitLogger_DebugEnablesDebugLevel(t *testing.T) {
	InitLogger(true, "")
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level enabled when debug=true")
	}
}

func TestInitLogger_FileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "bloom.log")

	InitLogger(false, logFile)
	slog.Info("scheduler started", "taskId", "t-1")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "scheduler started") {
		t.Errorf("expected log file to contain message, got %q", string(content))
	}
}

func TestInitLogger_MultiHandlerWritesBothStdoutAndFile(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "bloom_multi.log")

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	InitLogger(false, logFile)
	slog.Info("task completed", "taskId", "t-2")

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	if !strings.Contains(buf.String(), "task completed") {
		t.Errorf("expected stdout to contain message, got %q", buf.String())
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "task completed") {
		t.Errorf("expected log file to contain message, got %q", string(content))
	}
}

func TestInitLogger_InvalidFilePathFallsBackToStdout(t *testing.T) {
	// An unwritable log path shouldn't panic; InitLogger just logs the open
	// failure and keeps the stdout handler.
	InitLogger(false, "/invalid/path/bloom.log")
	slog.Info("still logging")
}

func TestMultiHandler(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewJSONHandler(&buf1, nil)
	h2 := slog.NewJSONHandler(&buf2, nil)

	mh := &multiHandler{handlers: []slog.Handler{h1, h2}}

	t.Run("Enabled", func(t *testing.T) {
		if !mh.Enabled(context.Background(), slog.LevelInfo) {
			t.Error("expected Enabled to return true")
		}
	})

	t.Run("Enabled_False", func(t *testing.T) {
		hError := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
		mhError := &multiHandler{handlers: []slog.Handler{hError}}
		if mhError.Enabled(context.Background(), slog.LevelInfo) {
			t.Error("expected Enabled to return false for info when the only handler is error-level")
		}
	})

	t.Run("Handle fans out to every handler", func(t *testing.T) {
		record := slog.NewRecord(time.Now(), slog.LevelInfo, "worktree created", 0)
		if err := mh.Handle(context.Background(), record); err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
		if !strings.Contains(buf1.String(), "worktree created") {
			t.Error("handler 1 missing message")
		}
		if !strings.Contains(buf2.String(), "worktree created") {
			t.Error("handler 2 missing message")
		}
	})

	t.Run("WithAttrs preserves multiHandler type", func(t *testing.T) {
		mh2 := mh.WithAttrs([]slog.Attr{slog.String("taskId", "t-3")})
		if _, ok := mh2.(*multiHandler); !ok {
			t.Error("expected WithAttrs to return *multiHandler")
		}
	})

	t.Run("WithGroup preserves multiHandler type", func(t *testing.T) {
		mh2 := mh.WithGroup("scheduler")
		if _, ok := mh2.(*multiHandler); !ok {
			t.Error("expected WithGroup to return *multiHandler")
		}
	})
}

func TestLogInfof(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	LogInfof("agent %s claimed task %s", "claude", "t-4")

	if !strings.Contains(buf.String(), "agent claude claimed task t-4") {
		t.Errorf("expected formatted message, got %s", buf.String())
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	LogError("merge failed", errors.New("conflict in main.go"), "taskId", "t-5")

	output := buf.String()
	if !strings.Contains(output, "conflict in main.go") {
		t.Errorf("expected error message in log, got %s", output)
	}
	if !strings.Contains(output, `"taskId":"t-5"`) {
		t.Errorf("expected context in log, got %s", output)
	}
	if !strings.Contains(output, `"msg":"merge failed"`) {
		t.Errorf("expected msg in log, got %s", output)
	}
}

func TestLogDebugAndLogInfoEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	LogInfo("task started", "taskId", "t-6")
	LogDebug("provider stdout chunk", "taskId", "t-6", "bytes", 128)

	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("output is not valid JSON: %v (%q)", err, line)
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if lines[0]["level"] != "INFO" {
		t.Errorf("expected first line level INFO, got %v", lines[0]["level"])
	}
	if lines[1]["level"] != "DEBUG" {
		t.Errorf("expected second line level DEBUG, got %v", lines[1]["level"])
	}
}
