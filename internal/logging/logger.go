package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Level      logrus.Level
	Dir        string    // Root log directory (empty = stdout only)
	MaxSize    int64     // Max size in bytes before rotation (default: 10MB)
	MaxBackups int       // Number of old log files to keep (default: 3)
	JSONFormat bool      // Use JSON format
	Console    io.Writer // Console sink (default: os.Stdout)
}

// Registry owns one logger per operation name. It is created by the top-level
// run and closed by it; nothing in this package is global.
type Registry struct {
	config Config

	mu      sync.Mutex
	loggers map[string]*logrus.Logger
	files   map[string]*os.File
}

// NewRegistry creates a registry; loggers are created lazily by For.
func NewRegistry(config Config) *Registry {
	if config.MaxSize == 0 {
		config.MaxSize = 10 * 1024 * 1024 // 10MB
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}
	if config.Console == nil {
		config.Console = os.Stdout
	}

	return &Registry{
		config:  config,
		loggers: make(map[string]*logrus.Logger),
		files:   make(map[string]*os.File),
	}
}

// For returns the log sink for an operation, creating it on first use.
// Each operation appends to <Dir>/<operation>Logs/<operation>.log, which is
// rotated to .1 through .MaxBackups once it reaches MaxSize.
func (r *Registry) For(operation string) *logrus.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if logger, ok := r.loggers[operation]; ok {
		return logger.WithField("operation", operation)
	}

	logger := logrus.New()
	logger.SetLevel(r.config.Level)
	if r.config.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	out := r.config.Console
	if r.config.Dir != "" {
		file, err := r.openFile(operation)
		if err != nil {
			// Console logging still works; report the file problem through it.
			logger.SetOutput(out)
			logger.WithError(err).Warn("Failed to open operation log file")
			r.loggers[operation] = logger
			return logger.WithField("operation", operation)
		}
		r.files[operation] = file
		out = io.MultiWriter(out, file)
	}
	logger.SetOutput(out)

	r.loggers[operation] = logger
	return logger.WithField("operation", operation)
}

// FilePath returns the log file path for an operation
func (r *Registry) FilePath(operation string) string {
	if r.config.Dir == "" {
		return ""
	}
	return filepath.Join(r.config.Dir, operation+"Logs", operation+".log")
}

func (r *Registry) openFile(operation string) (*os.File, error) {
	path := r.FilePath(operation)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	if err := rotateIfNeeded(path, r.config.MaxSize, r.config.MaxBackups); err != nil {
		return nil, fmt.Errorf("failed to rotate logs: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}

// rotateIfNeeded checks if log file needs rotation and performs it
func rotateIfNeeded(path string, maxSize int64, maxBackups int) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // File doesn't exist yet
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	if info.Size() < maxSize {
		return nil
	}

	// Shift existing backups up by one
	for i := maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", path, i)
		newPath := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath) // Ignore error, file might not exist
		}
	}

	backupPath := fmt.Sprintf("%s.1", path)
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	return nil
}

// Close closes every operation log file
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for op, file := range r.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.files, op)
	}
	return firstErr
}

// Discard returns a sink that drops everything, for tests and library callers
// that do not care about logs.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// ParseLevel maps a config string to a logrus level, defaulting to info
func ParseLevel(level string, verbose bool) logrus.Level {
	if verbose {
		return logrus.DebugLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}
