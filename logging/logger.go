package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/marksync/config"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	outputOnce sync.Once
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logCfg := loadConfig()
	logger := logrus.New()

	// Configure Level
	levelStr := "info"
	if env := os.Getenv("MARKSYNC_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("MARKSYNC_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	outputOnce.Do(func() {
		defaultGlobalWriter.Set(defaultOutput(logCfg, level))
	})
	logger.SetOutput(defaultGlobalWriter)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// loadConfig reads the logging section of the settings file. Any failure
// leaves the defaults in place.
func loadConfig() Config {
	var logCfg Config
	settings, err := config.LoadDefault()
	if err != nil {
		return logCfg
	}
	if err := settings.UnmarshalSection("logging", &logCfg); err != nil {
		logrus.Warnf("Failed to parse 'logging' settings: %v", err)
	}
	return logCfg
}

// defaultOutput builds the initial sink set: the configured file sink and,
// depending on structured_to_stderr, stderr.
func defaultOutput(logCfg Config, level logrus.Level) io.Writer {
	var writers []io.Writer

	if logCfg.File.Enabled && logCfg.File.Path != "" {
		path := expandPath(logCfg.File.Path)
		if f, err := openLogFile(path); err == nil {
			writers = append(writers, f)
		} else {
			logrus.Warnf("Failed to open log file %s: %v", path, err)
		}
	}

	stderrMode := "auto"
	if logCfg.Format.StructuredToStderr != "" {
		stderrMode = logCfg.Format.StructuredToStderr
	}

	shouldLogToStderr := false
	switch stderrMode {
	case "always":
		shouldLogToStderr = true
	case "never":
		shouldLogToStderr = false
	default:
		// Interactive CLI use stays quiet unless debugging.
		isDebug := os.Getenv("MARKSYNC_DEBUG") == "1" || level >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		shouldLogToStderr = isDebug || !isInteractive
	}
	if shouldLogToStderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

// AddFileSink tees every logger's output into the file at path, creating
// parent directories as needed. The daemon uses this for its log file.
func AddFileSink(path string) (io.Closer, error) {
	f, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	outputOnce.Do(func() {
		defaultGlobalWriter.Set(defaultOutput(loadConfig(), logrus.InfoLevel))
	})
	current := defaultGlobalWriter.Get()
	if current == io.Discard {
		defaultGlobalWriter.Set(f)
	} else {
		defaultGlobalWriter.Set(io.MultiWriter(current, f))
	}
	return f, nil
}

// SetLevel changes the level of every logger created so far and of the
// ones created later through the MARKSYNC_LOG_LEVEL override.
func SetLevel(level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	os.Setenv("MARKSYNC_LOG_LEVEL", level.String())
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
