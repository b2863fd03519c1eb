package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/grovetools/marksync/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLoggers() {
	loggersMu.Lock()
	loggers = make(map[string]*logrus.Entry)
	loggersMu.Unlock()
}

func TestNewLogger(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", t.TempDir())
	defer resetLoggers()

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "engine")
	entry.Info("Cycle fired")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "[engine]")
	assert.Contains(t, output, "Cycle fired")
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
				Message: "snapshot built",
				Data: logrus.Fields{
					"component": "snapshot",
					"resolved":  3,
				},
			},
			want: []string{"[INFO]", "[snapshot]", "snapshot built", "resolved=3"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "lookup failed",
				Data: logrus.Fields{
					"component": "snapshot",
				},
			},
			want:    []string{"[WARN]", "lookup failed"},
			notWant: []string{"[snapshot]"},
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
					Message: "with caller",
					Data:    logrus.Fields{"component": "engine"},
					Caller: &runtime.Frame{
						File:     "/path/to/engine.go",
						Line:     42,
						Function: "github.com/grovetools/marksync/internal/daemon/engine.(*Engine).fire",
					},
				}
			}(),
			want: []string{"[engine.go:42 engine.(*Engine).fire]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			tt.entry.Time = tt.entry.Time.UTC()

			output, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			for _, want := range tt.want {
				assert.Contains(t, string(output), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, string(output), notWant)
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	entry := &logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2, "mid": 3},
	}
	out, err := formatter.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[INFO] m alpha=2 mid=3 zeta=1\n", string(out))
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", t.TempDir())
	t.Setenv("MARKSYNC_LOG_LEVEL", "debug")
	t.Setenv("MARKSYNC_LOG_CALLER", "true")
	defer resetLoggers()

	logger := NewLogger("env-test")
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
	assert.True(t, logger.Logger.ReportCaller)
}

func TestLoggingSectionFromSettings(t *testing.T) {
	home := testutil.SetupHome(t)
	t.Setenv("MARKSYNC_LOG_LEVEL", "")
	defer resetLoggers()

	testutil.WriteSettings(t, home, "version: \"1\"\nlogging:\n  level: warn\n  format:\n    preset: json\n")

	logger := NewLogger("settings-test")
	assert.Equal(t, logrus.WarnLevel, logger.Logger.GetLevel())
	_, isJSON := logger.Logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestSetGlobalOutputCapturesLoggers(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", t.TempDir())
	defer resetLoggers()

	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	defer SetGlobalOutput(os.Stderr)

	NewLogger("capture").Warn("pruned selection")
	assert.True(t, strings.Contains(buf.String(), "pruned selection"))
}

func TestAddFileSink(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", t.TempDir())
	defer resetLoggers()

	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	defer SetGlobalOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "logs", "daemon.log")
	closer, err := AddFileSink(path)
	require.NoError(t, err)
	defer closer.Close()

	NewLogger("sink").Info("to both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)
	p.Success("sent 2 bookmarks")
	p.Error("send failed", assert.AnError)
	p.Field("endpoint", "https://x/y")

	out := buf.String()
	assert.Contains(t, out, "sent 2 bookmarks")
	assert.Contains(t, out, "send failed: "+assert.AnError.Error())
	assert.Contains(t, out, "endpoint")
	assert.Contains(t, out, "https://x/y")
}
