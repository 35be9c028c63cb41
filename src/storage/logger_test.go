package storage

import (
	"OnTimeDelay/src/config"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	var console bytes.Buffer
	logger.SetConsole(&console)
	return logger, path, &console
}

func TestLoggerWritesFileAndConsole(t *testing.T) {
	logger, path, console := newTestLogger(t)
	logger.SetRunID("run-1")

	logger.Info("开始下载")
	logger.Error("下载失败")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] INFO: \[run-1\] 开始下载$`, lines[0])
	assert.Contains(t, lines[1], "ERROR: [run-1] 下载失败")
	assert.Equal(t, string(data), console.String())
}

func TestLoggerLevelFilter(t *testing.T) {
	logger, path, _ := newTestLogger(t)
	logger.SetLevel(WARNING)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warning("warning")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "debug")
	assert.NotContains(t, string(data), "INFO")
	assert.Contains(t, string(data), "WARNING: warning")
}

func TestLoggerSubscribe(t *testing.T) {
	logger, _, _ := newTestLogger(t)
	ch := logger.Subscribe()

	logger.Info("hello")
	msg := <-ch
	assert.Contains(t, msg, "INFO: hello")
}

func TestLoggerUnsubscribe(t *testing.T) {
	logger, _, _ := newTestLogger(t)
	kept := logger.Subscribe()
	gone := logger.Subscribe()
	require.Len(t, logger.subscribers, 2)

	logger.Unsubscribe(gone)
	assert.Len(t, logger.subscribers, 1)
	_, ok := <-gone
	assert.False(t, ok)

	// 重复取消不会再次关闭
	assert.NotPanics(t, func() { logger.Unsubscribe(gone) })

	logger.Info("still here")
	assert.Contains(t, <-kept, "still here")
}

func TestLoggerRotate(t *testing.T) {
	logger, path, _ := newTestLogger(t)
	cfg := &config.Config{LogMaxSize: "1 * 10"}

	logger.Info("this line is longer than ten bytes")
	require.NoError(t, logger.CheckRotate(cfg))
	logger.Info("after rotation")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after rotation")
	assert.NotContains(t, string(data), "longer than ten bytes")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Info("ignored")
		logger.SetLevel(ERROR)
		_ = logger.CheckRotate(&config.Config{})
		_ = logger.Close()
	})
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "10 * 1024 * 1024", want: 10 * 1024 * 1024},
		{in: "2048", want: 2048},
		{in: "", want: 0},
		{in: "10 * x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, WARNING, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
