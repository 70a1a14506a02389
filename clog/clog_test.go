package clog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoreFeatures covers config defaults, levels, fields, namespaces, trace ids and caller info
func TestCoreFeatures(t *testing.T) {
	t.Run("Environment Defaults", testEnvDefaults)
	t.Run("Validate", testValidate)
	t.Run("Log Levels", testLogLevels)
	t.Run("All Fields", testAllFields)
	t.Run("Hierarchical Namespace", testNamespace)
	t.Run("Context TraceID", testTraceID)
	t.Run("Caller Info", testCaller)
	t.Run("Fatal Exit", testFatal)
}

func testEnvDefaults(t *testing.T) {
	dev := GetDefaultConfig("development")
	assert.Equal(t, "debug", dev.Level)
	assert.Equal(t, "console", dev.Format)
	assert.True(t, dev.EnableColor)

	prod := GetDefaultConfig("production")
	assert.Equal(t, "info", prod.Level)
	assert.Equal(t, "json", prod.Format)
	assert.False(t, prod.EnableColor)
}

func testValidate(t *testing.T) {
	assert.Error(t, (&Config{Level: "verbose", Format: "json", Output: "stdout"}).Validate())
	assert.Error(t, (&Config{Level: "info", Format: "xml", Output: "stdout"}).Validate())
	assert.Error(t, (&Config{Level: "info", Format: "json"}).Validate())
	assert.Error(t, (&Config{Level: "info", Format: "json", Output: "stdout",
		Rotation: &RotationConfig{MaxSize: -1}}).Validate())
	assert.NoError(t, GetDefaultConfig("production").Validate())
}

// initFileLogger 将全局 logger 指向临时文件并返回读取函数
func initFileLogger(t *testing.T, level string, opts ...Option) func() []map[string]any {
	t.Helper()
	file := filepath.Join(t.TempDir(), "app.log")
	config := &Config{Level: level, Format: "json", Output: file, AddSource: true}
	require.NoError(t, Init(context.Background(), config, opts...))

	return func() []map[string]any {
		content, err := os.ReadFile(file)
		require.NoError(t, err)

		var entries []map[string]any
		scanner := bufio.NewScanner(bytes.NewReader(content))
		for scanner.Scan() {
			var entry map[string]any
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
			entries = append(entries, entry)
		}
		return entries
	}
}

func testLogLevels(t *testing.T) {
	read := initFileLogger(t, "info")

	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")

	entries := read()
	require.Len(t, entries, 3)
	assert.Equal(t, "info msg", entries[0]["msg"])
	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, "error msg", entries[2]["msg"])
}

func testAllFields(t *testing.T) {
	read := initFileLogger(t, "debug")

	Info("fields test",
		String("string", "hello"),
		Int("int", 42),
		Float64("float64", 3.14),
		Duration("duration", 5*time.Second),
		Err(errors.New("test err")),
		Any("ids", []int64{1000005, 1000006}),
	)

	entries := read()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "hello", entry["string"])
	assert.Equal(t, float64(42), entry["int"])
	assert.Equal(t, 3.14, entry["float64"])
	assert.Equal(t, "5s", entry["duration"])
	assert.Equal(t, "test err", entry["error"])
	assert.Equal(t, []any{float64(1000005), float64(1000006)}, entry["ids"])
}

func testNamespace(t *testing.T) {
	read := initFileLogger(t, "info", WithNamespace("root"))

	Namespace("a").Namespace("b").Namespace("c").Info("namespace test")

	entries := read()
	require.Len(t, entries, 1)
	assert.Equal(t, "root.a.b.c", entries[0]["namespace"])
}

func testTraceID(t *testing.T) {
	read := initFileLogger(t, "info")

	ctx := WithTraceID(context.Background(), "test-trace-123")
	assert.Equal(t, "test-trace-123", TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))

	WithContext(ctx).Info("traceid test")
	WithContext(ctx).Namespace("test").Info("namespaced trace test")

	entries := read()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "test-trace-123", entry["trace_id"])
	}
}

func testCaller(t *testing.T) {
	read := initFileLogger(t, "info")

	Info("caller test")

	entries := read()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0]["caller"], "clog_test.go")
}

func testFatal(t *testing.T) {
	read := initFileLogger(t, "info")

	exitCode := -1
	SetExitFunc(func(code int) { exitCode = code })
	defer SetExitFunc(os.Exit)

	WithContext(context.Background()).Fatal("fatal msg")

	assert.Equal(t, 1, exitCode)
	entries := read()
	require.Len(t, entries, 1)
	assert.Equal(t, "fatal", entries[0]["level"])
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), &Config{Level: "bogus", Format: "json", Output: "stdout"})
	assert.Error(t, err)

	logger, err := New(context.Background(), GetDefaultConfig("production"), WithNamespace("svc"))
	require.NoError(t, err)
	assert.NotNil(t, logger.Namespace("child"))

	Nop().Info("dropped")
}
