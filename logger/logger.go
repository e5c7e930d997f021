package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
)

const (
	MaxLogDirSize = 10 * 1024 * 1024 // 10MB
	LogFileName   = "gamepad-bridge.log"
)

// L is the process-wide logger. It writes to stderr until Init redirects it
// to a file.
var L = newLogger(os.Stderr)

var (
	logFile     *os.File
	logDir      string
	mu          sync.Mutex
	initialized bool
	stopCheck   chan struct{}
)

func newLogger(w io.Writer) *clog.Logger {
	return clog.NewWithOptions(w, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})
}

// Init redirects logging to dir/LogFileName and starts the size watchdog.
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	logDir = dir

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file
	L.SetOutput(file)
	initialized = true
	stopCheck = make(chan struct{})

	go checkAndRotate()
	go periodicSizeCheck(stopCheck)

	Info("Logger initialized at %s", logPath)
	return nil
}

// SetLevel sets the minimum level by name (debug, info, warn, error).
func SetLevel(name string) error {
	lvl, err := clog.ParseLevel(name)
	if err != nil {
		return err
	}
	L.SetLevel(lvl)
	return nil
}

// Close closes the log file and returns output to stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if stopCheck != nil {
		close(stopCheck)
		stopCheck = nil
	}
	if logFile != nil {
		L.SetOutput(os.Stderr)
		logFile.Close()
		logFile = nil
	}
	initialized = false
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	L.Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	L.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	L.Error(fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	L.Debug(fmt.Sprintf(format, args...))
}

// Token logs a raw protocol token at debug level.
func Token(direction, token string) {
	L.Debug("token", "dir", direction, "token", token)
}

// Button logs a button transition written to the virtual device.
func Button(name string, pressed bool, source string) {
	state := "released"
	if pressed {
		state = "pressed"
	}
	L.Info("button", "name", name, "state", state, "source", source)
}

func checkAndRotate() {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return
	}
	size, err := getDirSize(logDir)
	if err != nil {
		L.Error("checking log directory size", "err", err)
		return
	}
	if size > MaxLogDirSize {
		rotateOldLogs()
	}
}

func getDirSize(dir string) (int64, error) {
	var size int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}

// rotateOldLogs removes everything except the live log and, if that alone is
// still over the limit, truncates it. Callers hold mu.
func rotateOldLogs() {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		L.Error("reading log directory", "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == LogFileName {
			continue
		}
		if err := os.Remove(filepath.Join(logDir, e.Name())); err != nil {
			L.Error("removing old log", "file", e.Name(), "err", err)
		}
	}

	size, _ := getDirSize(logDir)
	if size <= MaxLogDirSize {
		return
	}

	currentLogPath := filepath.Join(logDir, LogFileName)
	if logFile != nil {
		logFile.Close()
	}
	file, err := os.OpenFile(currentLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		logFile = nil
		L.SetOutput(os.Stderr)
		L.Error("recreating log file", "err", err)
		return
	}
	logFile = file
	L.SetOutput(file)
	L.Info("log truncated", "limit", MaxLogDirSize)
}

func periodicSizeCheck(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			checkAndRotate()
		}
	}
}
