package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func isolate(t *testing.T) string {
	t.Helper()
	appHome := t.TempDir()
	t.Setenv("LORE_APP_HOME", appHome)
	t.Setenv("LORE_CONFIG", "")
	t.Setenv("LORE_LOG_LEVEL", "")
	t.Setenv("LORE_LOG_CALLER", "")
	Reset()
	t.Cleanup(Reset)
	return appHome
}

func TestNewLogger(t *testing.T) {
	isolate(t)

	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}
	if NewLogger("test-component") != logger {
		t.Error("Expected the same logger for the same component")
	}
}

func TestLoggerWritesDailyFile(t *testing.T) {
	isolate(t)
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	entry := newLogger("watcher", Config{Format: FormatConfig{StructuredToStderr: "never"}}, nil, now)
	entry.Info("hello file")

	path := LogFilePath("watcher", now)
	if filepath.Base(path) != "watcher-2024-03-09.log" {
		t.Fatalf("unexpected log file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("Expected log file to contain message, got: %s", data)
	}
}

func TestLoggerFileDisabled(t *testing.T) {
	isolate(t)
	now := time.Now()

	entry := newLogger("quiet", Config{
		File:   FileSinkConfig{Disabled: true},
		Format: FormatConfig{StructuredToStderr: "never"},
	}, nil, now)
	entry.Info("nowhere")

	if _, err := os.Stat(LogFilePath("quiet", now)); !os.IsNotExist(err) {
		t.Errorf("Expected no log file, got err=%v", err)
	}
}

func TestLoggerExplicitFilePath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom", "lore.log")

	entry := newLogger("custom", Config{
		File:   FileSinkConfig{Path: path},
		Format: FormatConfig{Preset: "json", StructuredToStderr: "never"},
	}, nil, time.Now())
	entry.WithField("path", "a.md").Info("json line")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"json line"`) || !strings.Contains(string(data), `"path":"a.md"`) {
		t.Errorf("Expected JSON record, got: %s", data)
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()
	if !strings.Contains(output, "[INFO]") {
		t.Errorf("Expected output to contain [INFO], got: %s", output)
	}
	if !strings.Contains(output, "test") {
		t.Errorf("Expected output to contain component, got: %s", output)
	}
	if !strings.Contains(output, "Test message") {
		t.Errorf("Expected output to contain 'Test message', got: %s", output)
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "test-component",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "test-component", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "test-component",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"test-component", "2024-"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data:    logrus.Fields{},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "test message with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			tt.entry.Time = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

			output, err := formatter.Format(tt.entry)
			if err != nil {
				t.Fatalf("Format returned error: %v", err)
			}
			outputStr := string(output)

			for _, want := range tt.want {
				if !strings.Contains(outputStr, want) {
					t.Errorf("Expected output to contain '%s', got: %s", want, outputStr)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(outputStr, notWant) {
					t.Errorf("Expected output NOT to contain '%s', got: %s", notWant, outputStr)
				}
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	output, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"b": 2, "a": 1, "c": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(output), "a=1 b=2 c=3") {
		t.Errorf("Expected sorted fields, got: %s", output)
	}
}

func TestEnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("LORE_LOG_LEVEL", "debug")
	t.Setenv("LORE_LOG_CALLER", "true")

	logger := NewLogger("env-test")

	if logger.Logger.Level != logrus.DebugLevel {
		t.Errorf("Expected debug level from env var, got %v", logger.Logger.Level)
	}
	if !logger.Logger.ReportCaller {
		t.Error("Expected caller reporting to be enabled from env var")
	}
}

func TestLoggingSectionFromConfigFile(t *testing.T) {
	appHome := isolate(t)
	configDir := filepath.Join(appHome, "config", "lore")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "logging:\n  level: warn\n  format:\n    structured_to_stderr: never\n"
	if err := os.WriteFile(filepath.Join(configDir, "lore.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	logger := NewLogger("from-config")
	if logger.Logger.Level != logrus.WarnLevel {
		t.Errorf("Expected warn level from lore.yml, got %v", logger.Logger.Level)
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	isolate(t)
	entry := newLogger("bad", Config{Level: "loud", Format: FormatConfig{StructuredToStderr: "never"}}, nil, time.Now())
	if entry.Logger.Level != logrus.InfoLevel {
		t.Errorf("Expected info level, got %v", entry.Logger.Level)
	}
}

func TestSetLevel(t *testing.T) {
	isolate(t)

	a := NewLogger("set-level-a")
	b := NewLogger("set-level-b")
	SetLevel(logrus.DebugLevel)
	if a.Logger.GetLevel() != logrus.DebugLevel || b.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level on all loggers, got %v and %v", a.Logger.GetLevel(), b.Logger.GetLevel())
	}

	t.Setenv("LORE_LOG_LEVEL", "warn")
	SetLevel(logrus.ErrorLevel)
	if a.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("LORE_LOG_LEVEL should pin the level, got %v", a.Logger.GetLevel())
	}
}
