package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:    &buf,
		MinLevel:  LevelDebug,
		WithStack: true,
	})

	if logger.output != &buf {
		t.Error("expected output to be set")
	}
	if logger.minLevel != LevelDebug {
		t.Errorf("expected minLevel DEBUG, got %s", logger.minLevel)
	}
	if !logger.withStack {
		t.Error("expected withStack to be true")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if logger.minLevel != LevelInfo {
		t.Errorf("expected minLevel INFO, got %s", logger.minLevel)
	}
	if logger.withStack {
		t.Error("expected withStack to be false")
	}
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	logger.Info("info message")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelInfo {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "info message" {
		t.Errorf("expected message 'info message', got %s", entry.Message)
	}
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelError,
	})

	testErr := errors.New("test error")
	logger.Error("error message", testErr)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Level != LevelError {
		t.Errorf("expected level ERROR, got %s", entry.Level)
	}
	if entry.Error != "test error" {
		t.Errorf("expected error 'test error', got %s", entry.Error)
	}
}

func TestErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:    &buf,
		MinLevel:  LevelError,
		WithStack: true,
	})

	testErr := errors.New("test error")
	logger.Error("error with stack", testErr)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if len(entry.Stack) == 0 {
		t.Error("expected stack trace to be present")
	}
}

func TestMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelWarn,
	})

	logger.Debug("debug message")
	logger.Info("info message")

	if buf.Len() > 0 {
		t.Error("expected no output for DEBUG and INFO when minLevel is WARN")
	}

	logger.Warn("warning message")

	if buf.Len() == 0 {
		t.Error("expected output for WARN when minLevel is WARN")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	fieldLogger := logger.WithFields(map[string]interface{}{
		"provider": "tmdb",
		"media_id": "1668",
	})

	fieldLogger.Info("metadata fetched")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["provider"] != "tmdb" {
		t.Errorf("expected provider 'tmdb', got %v", entry.Context["provider"])
	}
	if entry.Context["media_id"] != "1668" {
		t.Errorf("expected media_id '1668', got %v", entry.Context["media_id"])
	}
}

func TestFieldLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	base := logger.WithFields(map[string]interface{}{
		"job_id": "job-1",
		"mode":   "new",
	})
	chained := base.WithFields(map[string]interface{}{
		"mode":     "all",
		"imported": 3,
	})

	chained.Info("import finished")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["job_id"] != "job-1" {
		t.Errorf("expected job_id from the base logger, got %v", entry.Context["job_id"])
	}
	if entry.Context["mode"] != "all" {
		t.Errorf("expected later fields to win, got %v", entry.Context["mode"])
	}
	if entry.Context["imported"] != float64(3) {
		t.Errorf("expected imported 3, got %v", entry.Context["imported"])
	}

	// The base logger keeps its own field set
	buf.Reset()
	base.Error("import failed", errors.New("boom"))

	var baseEntry Entry
	if err := json.Unmarshal(buf.Bytes(), &baseEntry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}
	if baseEntry.Context["mode"] != "new" {
		t.Errorf("expected base logger mode 'new', got %v", baseEntry.Context["mode"])
	}
	if _, ok := baseEntry.Context["imported"]; ok {
		t.Error("chained fields must not leak into the base logger")
	}
}

func TestContextWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	ctx := ContextWithRequestID(context.Background(), "req-123")
	logger.InfoContext(ctx, "request received")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Context["request_id"] != "req-123" {
		t.Errorf("expected request_id 'req-123', got %v", entry.Context["request_id"])
	}
}

func TestFieldLoggerError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelError,
	})

	fieldLogger := logger.WithFields(map[string]interface{}{
		"component": "database",
	})

	testErr := errors.New("connection failed")
	fieldLogger.Error("database error", testErr)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}

	if entry.Error != "connection failed" {
		t.Errorf("expected error 'connection failed', got %s", entry.Error)
	}
	if entry.Context["component"] != "database" {
		t.Errorf("expected component 'database', got %v", entry.Context["component"])
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Output:   &buf,
		MinLevel: LevelInfo,
	})

	logger.Info("test message")

	output := strings.TrimSpace(buf.String())

	if !json.Valid([]byte(output)) {
		t.Errorf("expected valid JSON, got: %s", output)
	}
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level         string
		expectedLevel Level
		expectStack   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewWithLevel(tt.level)
			if logger.minLevel != tt.expectedLevel {
				t.Errorf("expected level %s, got %s", tt.expectedLevel, logger.minLevel)
			}
			if logger.withStack != tt.expectStack {
				t.Errorf("expected withStack %v, got %v", tt.expectStack, logger.withStack)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if level := parseLevel(tt.input); level != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, level)
			}
		})
	}
}

func TestInitializeLoggers(t *testing.T) {
	mu.Lock()
	appLogger = nil
	providerLogger = nil
	mu.Unlock()

	InitializeLoggers("debug", "warn")

	appLog := AppLogger()
	provLog := ProviderLogger()

	if appLog.minLevel != LevelDebug {
		t.Errorf("expected app logger level DEBUG, got %s", appLog.minLevel)
	}
	if provLog.minLevel != LevelWarn {
		t.Errorf("expected provider logger level WARN, got %s", provLog.minLevel)
	}
}

func TestSetAppLogger(t *testing.T) {
	customLogger := NewWithLevel("error")
	SetAppLogger(customLogger)

	if AppLogger() != customLogger {
		t.Error("expected custom logger to be set")
	}

	mu.Lock()
	appLogger = nil
	mu.Unlock()
}

func TestAppLogger_Singleton(t *testing.T) {
	mu.Lock()
	appLogger = nil
	mu.Unlock()

	logger1 := AppLogger()
	logger2 := AppLogger()

	if logger1 != logger2 {
		t.Error("expected AppLogger to return the same instance")
	}
}

func TestProviderLogger_Singleton(t *testing.T) {
	mu.Lock()
	providerLogger = nil
	mu.Unlock()

	logger1 := ProviderLogger()
	logger2 := ProviderLogger()

	if logger1 != logger2 {
		t.Error("expected ProviderLogger to return the same instance")
	}
}
