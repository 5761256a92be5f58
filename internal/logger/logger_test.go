package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Info("価格チェックが完了しました",
		slog.Int64("tracker_id", 42),
		slog.String("url", "https://www.amazon.in/dp/B0TEST"),
		slog.String("platform", "amazon"),
	)

	entry := decode(t, &buf)
	if entry["msg"] != "価格チェックが完了しました" {
		t.Errorf("msg = %q", entry["msg"])
	}
	if entry["tracker_id"] != float64(42) {
		t.Errorf("tracker_id = %v, want 42", entry["tracker_id"])
	}
	if entry["platform"] != "amazon" {
		t.Errorf("platform = %v", entry["platform"])
	}
	if entry["service"] != "salescout" {
		t.Errorf("service = %v, want salescout", entry["service"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_DebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Debug("debug message")

	if buf.Len() != 0 {
		t.Errorf("INFOレベルでDEBUGが出力された: %s", buf.String())
	}
}

func TestSetupWithLevel_Debug(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWithLevel(&buf, slog.LevelDebug)

	l.Debug("debug message")

	entry := decode(t, &buf)
	if entry["level"] != "DEBUG" {
		t.Errorf("level = %q, want DEBUG", entry["level"])
	}
}

func TestSetupWithLevel_WarnFiltersInfo(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWithLevel(&buf, slog.LevelWarn)

	l.Info("info")
	l.Warn("warn")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"level":"WARN"`) {
		t.Errorf("WARNのみ出力されるべき: %s", buf.String())
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	l := SetupDefault(&buf, slog.LevelInfo)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decode(t, &buf)
	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}
